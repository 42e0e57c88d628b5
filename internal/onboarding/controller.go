// Package onboarding drives a recorder across the question catalogue: one
// segment per question, uploaded when the question is left.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/soaringjerry/Vox/internal/recorder"
	"github.com/soaringjerry/Vox/internal/uploadqueue"
)

var (
	ErrComplete   = errors.New("onboarding: already complete")
	ErrNotStarted = errors.New("onboarding: recording not started")
)

// PauseMode names what the pause control does.
type PauseMode string

const (
	// PauseVisual freezes the waveform only; audio keeps being captured.
	PauseVisual PauseMode = "visual"
	// PauseCapture also suspends the recorder, so paused audio is not kept.
	PauseCapture PauseMode = "capture"
)

func ParsePauseMode(s string) (PauseMode, error) {
	switch PauseMode(s) {
	case "", PauseVisual:
		return PauseVisual, nil
	case PauseCapture:
		return PauseCapture, nil
	}
	return "", fmt.Errorf("onboarding: unknown pause mode %q", s)
}

type Recorder interface {
	Begin(ctx context.Context) error
	StartSegment() error
	StopSegment(ctx context.Context) (*recorder.Segment, error)
	Suspend()
	Resume()
	EndSession(ctx context.Context) (*recorder.Segment, error)
}

type Uploads interface {
	Enqueue(job uploadqueue.Job) error
}

type State struct {
	Index     int
	Recording bool
	Paused    bool
	Complete  bool
}

type Options struct {
	UserID        string
	Questions     int
	PauseMode     PauseMode
	CompleteDelay time.Duration
	// OnComplete fires once, CompleteDelay after the last question.
	OnComplete func()
	// OnChange and OnSegmentStart run with the controller locked. They must
	// not block or call back into the controller.
	OnChange func(State)
	// OnSegmentStart fires each time a new segment starts recording.
	OnSegmentStart func(State)
	Logger         *zap.Logger
}

type Controller struct {
	rec     Recorder
	uploads Uploads
	opts    Options
	log     *zap.Logger

	mu    sync.Mutex
	state State
	timer *time.Timer

	afterFunc func(time.Duration, func()) *time.Timer
}

func New(rec Recorder, uploads Uploads, opts Options) (*Controller, error) {
	if rec == nil || uploads == nil {
		return nil, errors.New("onboarding: recorder and uploads are required")
	}
	if opts.Questions <= 0 {
		return nil, errors.New("onboarding: empty question list")
	}
	if opts.PauseMode == "" {
		opts.PauseMode = PauseVisual
	}
	if opts.CompleteDelay < 0 {
		opts.CompleteDelay = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		rec:       rec,
		uploads:   uploads,
		opts:      opts,
		log:       logger.Named("onboarding"),
		afterFunc: time.AfterFunc,
	}, nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start acquires the microphone and, once granted, starts the first
// segment. recorder.ErrPermissionDenied is returned unchanged.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.rec.Begin(ctx); err != nil {
		return err
	}
	return c.PermissionGranted()
}

func (c *Controller) PermissionGranted() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Complete {
		return ErrComplete
	}
	if c.state.Recording {
		return nil
	}
	if err := c.rec.StartSegment(); err != nil {
		return err
	}
	c.state.Recording = true
	c.segmentStarted()
	c.changed()
	return nil
}

// Next leaves the current question. The segment is finalized and queued
// before the following one starts; on the last question the run completes.
func (c *Controller) Next(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.leave(ctx); err != nil {
		return err
	}
	if c.state.Index == c.opts.Questions-1 {
		return c.complete(ctx)
	}
	c.state.Index++
	return c.restart()
}

// Previous leaves the current question and goes back one, never below the
// first question.
func (c *Controller) Previous(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.leave(ctx); err != nil {
		return err
	}
	if c.state.Index > 0 {
		c.state.Index--
	}
	return c.restart()
}

// TogglePause flips the paused flag. In PauseCapture mode the recorder is
// suspended too.
func (c *Controller) TogglePause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Complete || !c.state.Recording {
		return c.state.Paused
	}
	c.state.Paused = !c.state.Paused
	if c.opts.PauseMode == PauseCapture {
		if c.state.Paused {
			c.rec.Suspend()
		} else {
			c.rec.Resume()
		}
	}
	c.changed()
	return c.state.Paused
}

// Close releases the recorder without completing the run. A segment in
// progress is uploaded.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.state.Complete {
		return nil
	}
	recording := c.state.Recording
	c.state.Recording = false
	seg, err := c.rec.EndSession(ctx)
	if recording && seg != nil {
		c.enqueue(c.state.Index+1, seg)
	}
	c.changed()
	return err
}

func (c *Controller) leave(ctx context.Context) error {
	if c.state.Complete {
		return ErrComplete
	}
	if !c.state.Recording {
		return ErrNotStarted
	}
	seg, err := c.rec.StopSegment(ctx)
	if err != nil {
		return fmt.Errorf("onboarding: stop segment: %w", err)
	}
	c.state.Recording = false
	c.enqueue(c.state.Index+1, seg)
	return nil
}

func (c *Controller) restart() error {
	if c.state.Paused && c.opts.PauseMode == PauseCapture {
		c.rec.Resume()
	}
	c.state.Paused = false
	if err := c.rec.StartSegment(); err != nil {
		c.changed()
		return err
	}
	c.state.Recording = true
	c.segmentStarted()
	c.changed()
	return nil
}

func (c *Controller) complete(ctx context.Context) error {
	c.state.Complete = true
	c.state.Paused = false
	if _, err := c.rec.EndSession(ctx); err != nil {
		c.log.Warn("release recorder", zap.Error(err))
	}
	c.changed()
	c.log.Info("onboarding complete", zap.String("user_id", c.opts.UserID))
	if c.opts.OnComplete != nil {
		c.timer = c.afterFunc(c.opts.CompleteDelay, c.opts.OnComplete)
	}
	return nil
}

func (c *Controller) enqueue(ordinal int, seg *recorder.Segment) {
	job := uploadqueue.Job{
		UserID:     c.opts.UserID,
		QuestionID: ordinal,
		MIME:       seg.MIME,
		Extension:  seg.Extension,
		Data:       seg.Data,
	}
	if err := c.uploads.Enqueue(job); err != nil {
		c.log.Warn("queue upload", zap.Int("question_id", ordinal), zap.Error(err))
	}
}

func (c *Controller) segmentStarted() {
	if c.opts.OnSegmentStart != nil {
		c.opts.OnSegmentStart(c.state)
	}
}

func (c *Controller) changed() {
	if c.opts.OnChange != nil {
		c.opts.OnChange(c.state)
	}
}
