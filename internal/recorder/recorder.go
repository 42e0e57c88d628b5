// Package recorder owns the capture device for an onboarding run and cuts
// the stream into one segment per question.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/soaringjerry/Vox/internal/audio"
)

var (
	ErrPermissionDenied  = errors.New("recorder: microphone permission denied")
	ErrDeviceUnavailable = errors.New("recorder: no supported recording format")
	ErrNotStarted        = errors.New("recorder: session not started")
	ErrSegmentActive     = errors.New("recorder: segment already recording")
	ErrNoSegment         = errors.New("recorder: no active segment")
	ErrClosed            = errors.New("recorder: session closed")
)

type Device interface {
	// Open acquires the device. A refusal by the user or the OS is reported
	// as ErrPermissionDenied.
	Open(ctx context.Context) (Stream, error)
}

type Stream interface {
	// Frames is closed when the stream ends.
	Frames() <-chan audio.Frame
	Params() audio.Params
	Close() error
}

// Segment is one finished recording, ready to upload.
type Segment struct {
	MIME      string
	Extension string
	Data      []byte
	Duration  time.Duration
	Chunks    int
}

type Options struct {
	// Formats is the MIME preference list handed to audio.Negotiate.
	Formats []string
	// Tap sees every frame, recording or not. It must not block.
	Tap    func(audio.Frame)
	Logger *zap.Logger
}

type Session struct {
	dev  Device
	opts Options
	log  *zap.Logger

	mu        sync.Mutex
	stream    Stream
	format    audio.Format
	chunks    [][]byte
	duration  time.Duration
	active    bool
	suspended bool
	closed    bool

	stopReq   chan chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func NewSession(dev Device, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{dev: dev, opts: opts, log: logger.Named("recorder")}
}

// Begin opens the device and starts the capture loop. Frames flow to the
// tap from here on; nothing is kept until StartSegment.
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.stream != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	stream, err := s.dev.Open(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			s.log.Warn("microphone permission denied", zap.Error(err))
			return err
		}
		return fmt.Errorf("recorder: open device: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = stream.Close()
		return ErrClosed
	}
	s.stream = stream
	s.stopReq = make(chan chan struct{})
	s.done = make(chan struct{})
	go s.capture(stream)
	s.log.Info("capture started", zap.Int("sample_rate", stream.Params().SampleRate), zap.Int("channels", stream.Params().Channels))
	return nil
}

func (s *Session) capture(stream Stream) {
	defer close(s.done)
	frames := stream.Frames()
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				s.mu.Lock()
				s.active = false
				s.mu.Unlock()
				return
			}
			s.mu.Lock()
			if s.active && !s.suspended && len(f.Data) > 0 {
				s.chunks = append(s.chunks, append([]byte(nil), f.Data...))
				s.duration += f.Duration()
			}
			s.mu.Unlock()
			if s.opts.Tap != nil {
				s.opts.Tap(f)
			}
		case ack := <-s.stopReq:
			s.mu.Lock()
			s.active = false
			s.mu.Unlock()
			close(ack)
		}
	}
}

// StartSegment picks a container for the device stream and starts keeping
// frames. ErrDeviceUnavailable means no configured format fits the device.
func (s *Session) StartSegment() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrClosed
	case s.stream == nil:
		return ErrNotStarted
	case s.active:
		return ErrSegmentActive
	}
	format, err := audio.Negotiate(s.opts.Formats, s.stream.Params())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	s.format = format
	s.chunks = nil
	s.duration = 0
	s.suspended = false
	s.active = true
	return nil
}

// StopSegment ends the current segment. It returns only after the capture
// loop has acknowledged the stop, so every frame delivered before the call
// is part of the payload.
func (s *Session) StopSegment(ctx context.Context) (*Segment, error) {
	s.mu.Lock()
	if s.stream == nil {
		s.mu.Unlock()
		return nil, ErrNotStarted
	}
	if !s.active && s.format == nil {
		s.mu.Unlock()
		return nil, ErrNoSegment
	}
	stopReq, done := s.stopReq, s.done
	s.mu.Unlock()

	ack := make(chan struct{})
	select {
	case stopReq <- ack:
		select {
		case <-ack:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	case <-done:
		// Capture loop already gone; nothing left in flight.
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.finalize()
}

func (s *Session) finalize() (*Segment, error) {
	s.mu.Lock()
	format, chunks, params, dur := s.format, s.chunks, s.stream.Params(), s.duration
	s.format, s.chunks, s.duration, s.active = nil, nil, 0, false
	s.mu.Unlock()
	if format == nil {
		return nil, ErrNoSegment
	}
	data, err := format.Encode(chunks, params)
	if err != nil {
		return nil, fmt.Errorf("recorder: encode %s: %w", format.MIME(), err)
	}
	s.log.Debug("segment finalized", zap.String("mime", format.MIME()), zap.Int("chunks", len(chunks)), zap.Int("bytes", len(data)))
	return &Segment{MIME: format.MIME(), Extension: format.Extension(), Data: data, Duration: dur, Chunks: len(chunks)}, nil
}

// Suspend drops incoming frames from the segment until Resume.
func (s *Session) Suspend() {
	s.mu.Lock()
	s.suspended = true
	s.mu.Unlock()
}

func (s *Session) Resume() {
	s.mu.Lock()
	s.suspended = false
	s.mu.Unlock()
}

func (s *Session) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && !s.suspended
}

// EndSession stops an active segment, returning it, and releases the device.
// The device is released exactly once however often EndSession is called.
func (s *Session) EndSession(ctx context.Context) (*Segment, error) {
	var seg *Segment
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active {
		var err error
		seg, err = s.StopSegment(ctx)
		if err != nil && !errors.Is(err, ErrNoSegment) {
			s.log.Warn("stop segment on end", zap.Error(err))
		}
	}
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		stream, done := s.stream, s.done
		s.mu.Unlock()
		if stream == nil {
			return
		}
		s.closeErr = stream.Close()
		select {
		case <-done:
		case <-ctx.Done():
		}
		s.log.Info("capture released")
	})
	return seg, s.closeErr
}
