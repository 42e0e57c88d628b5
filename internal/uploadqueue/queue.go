// Package uploadqueue persists finished segments in the background with
// bounded retries so navigation never waits on the network.
package uploadqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var ErrClosed = errors.New("uploadqueue: closed")

type Job struct {
	UserID     string
	QuestionID int
	MIME       string
	Extension  string
	Data       []byte
}

type Uploader interface {
	Upload(ctx context.Context, job Job) error
}

type UploaderFunc func(ctx context.Context, job Job) error

func (f UploaderFunc) Upload(ctx context.Context, job Job) error { return f(ctx, job) }

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type Options struct {
	Workers    int
	Retries    int
	Backoff    time.Duration
	MaxBackoff time.Duration
	// OnFailure is called once per job that exhausted its attempts.
	OnFailure func(Job, error)
	OnSuccess func(Job)
	Logger    *zap.Logger
}

type Stats struct {
	Enqueued  int64
	Succeeded int64
	Failed    int64
	Retried   int64
	Pending   int64
}

type Queue struct {
	up     Uploader
	opts   Options
	log    *zap.Logger
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending []Job
	closed  bool
	notify  chan struct{}

	inflight   sync.WaitGroup
	dispatched chan struct{}

	enqueued, succeeded, failed, retried, waiting atomic.Int64
}

func New(up Uploader, opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		up:         up,
		opts:       opts,
		log:        logger.Named("uploadqueue"),
		sem:        semaphore.NewWeighted(int64(opts.Workers)),
		ctx:        ctx,
		cancel:     cancel,
		notify:     make(chan struct{}, 1),
		dispatched: make(chan struct{}),
	}
	go q.dispatch()
	return q
}

// Enqueue never blocks.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending = append(q.pending, job)
	q.mu.Unlock()
	q.enqueued.Add(1)
	q.waiting.Add(1)
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *Queue) next() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Job{}, false
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	return job, true
}

func (q *Queue) drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.pending) == 0
}

func (q *Queue) dispatch() {
	defer close(q.dispatched)
	for {
		for {
			job, ok := q.next()
			if !ok {
				break
			}
			if err := q.sem.Acquire(q.ctx, 1); err != nil {
				q.waiting.Add(-1)
				q.fail(job, err)
				continue
			}
			q.inflight.Add(1)
			go func(job Job) {
				defer q.inflight.Done()
				defer q.sem.Release(1)
				q.waiting.Add(-1)
				q.run(job)
			}(job)
		}
		if q.drained() {
			return
		}
		select {
		case <-q.notify:
		case <-q.ctx.Done():
			// Keep looping so remaining jobs are reported as failed.
			select {
			case <-q.notify:
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
}

func (q *Queue) run(job Job) {
	attempts := q.opts.Retries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = q.up.Upload(q.ctx, job)
		if err == nil {
			q.succeeded.Add(1)
			q.log.Debug("uploaded", zap.Int("question_id", job.QuestionID), zap.Int("attempt", attempt))
			if q.opts.OnSuccess != nil {
				q.opts.OnSuccess(job)
			}
			return
		}
		if IsPermanent(err) || attempt == attempts || q.ctx.Err() != nil {
			break
		}
		q.retried.Add(1)
		wait := q.backoff(attempt)
		q.log.Info("upload failed, retrying", zap.Int("question_id", job.QuestionID), zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		select {
		case <-time.After(wait):
		case <-q.ctx.Done():
		}
	}
	q.fail(job, err)
}

func (q *Queue) backoff(attempt int) time.Duration {
	if attempt > 30 {
		return q.opts.MaxBackoff
	}
	d := q.opts.Backoff << (attempt - 1)
	if d <= 0 || d > q.opts.MaxBackoff {
		return q.opts.MaxBackoff
	}
	return d
}

func (q *Queue) fail(job Job, err error) {
	q.failed.Add(1)
	q.log.Warn("upload dropped", zap.Int("question_id", job.QuestionID), zap.Error(err))
	if q.opts.OnFailure != nil {
		q.opts.OnFailure(job, err)
	}
}

// Close stops accepting jobs and waits for queued and in-flight uploads.
// When ctx ends first, remaining uploads are cancelled and reported through
// OnFailure.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	already := q.closed
	q.closed = true
	q.mu.Unlock()
	if !already {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}
	finished := make(chan struct{})
	go func() {
		<-q.dispatched
		q.inflight.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-finished
		return ctx.Err()
	}
}

func (q *Queue) Stats() Stats {
	return Stats{
		Enqueued:  q.enqueued.Load(),
		Succeeded: q.succeeded.Load(),
		Failed:    q.failed.Load(),
		Retried:   q.retried.Load(),
		Pending:   q.waiting.Load(),
	}
}
