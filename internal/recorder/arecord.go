package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/soaringjerry/Vox/internal/audio"
)

// ArecordDevice captures mono S16_LE PCM from ALSA through the arecord
// binary.
type ArecordDevice struct {
	Name       string // ALSA device, "default" when empty
	SampleRate int
	FrameSize  time.Duration // per-frame duration, 20ms when zero
	// StartupWait bounds how long Open waits for the first audio before
	// assuming the device is live.
	StartupWait time.Duration
	Logger      *zap.Logger

	// command builds the process; tests substitute it.
	command func(ctx context.Context, args ...string) *exec.Cmd
}

func (d *ArecordDevice) args() []string {
	name := d.Name
	if name == "" {
		name = "default"
	}
	return []string{"-q", "-D", name, "-f", "S16_LE", "-c", "1", "-r", strconv.Itoa(d.rate()), "-t", "raw"}
}

func (d *ArecordDevice) rate() int {
	if d.SampleRate <= 0 {
		return 16000
	}
	return d.SampleRate
}

func (d *ArecordDevice) Open(ctx context.Context) (Stream, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	build := d.command
	if build == nil {
		build = func(ctx context.Context, args ...string) *exec.Cmd {
			return exec.Command("arecord", args...)
		}
	}
	cmd := build(ctx, d.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("arecord stdout: %w", err)
	}
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: arecord not installed", ErrDeviceUnavailable)
		}
		return nil, fmt.Errorf("start arecord: %w", err)
	}

	frameDur := d.FrameSize
	if frameDur <= 0 {
		frameDur = 20 * time.Millisecond
	}
	frameBytes := int(time.Duration(d.rate())*frameDur/time.Second) * 2
	s := &arecordStream{
		cmd:     cmd,
		stdout:  stdout,
		params:  audio.Params{SampleRate: d.rate(), Channels: 1},
		frames:  make(chan audio.Frame, 64),
		exited:  make(chan struct{}),
		abandon: make(chan struct{}),
		logger:  logger,
	}
	first := make(chan struct{})
	// Wait closes the pipe, so it may only run once read has seen EOF.
	go func() {
		s.read(stdout, frameBytes, first)
		s.waitErr = cmd.Wait()
		close(s.exited)
	}()

	wait := d.StartupWait
	if wait <= 0 {
		wait = time.Second
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-first:
		return s, nil
	case <-s.exited:
		msg := strings.TrimSpace(stderr.String())
		if isPermissionError(msg) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, msg)
		}
		return nil, fmt.Errorf("arecord exited: %v: %s", s.waitErr, msg)
	case <-timer.C:
		// Silent devices may take a while to deliver a whole frame.
		return s, nil
	case <-ctx.Done():
		s.dropFrames()
		_ = s.Close()
		return nil, ctx.Err()
	}
}

func isPermissionError(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "permission denied") || strings.Contains(m, "operation not permitted")
}

// closeGrace is how long Close waits for arecord to flush after SIGINT.
const closeGrace = 2 * time.Second

type arecordStream struct {
	cmd     *exec.Cmd
	stdout  io.Closer
	params  audio.Params
	frames  chan audio.Frame
	exited  chan struct{} // closed after read returned and Wait finished
	waitErr error
	logger  *zap.Logger
	once    sync.Once

	abandon     chan struct{} // closed when nobody will consume frames
	abandonOnce sync.Once
}

func (s *arecordStream) dropFrames() {
	s.abandonOnce.Do(func() { close(s.abandon) })
}

func (s *arecordStream) read(r io.Reader, frameBytes int, first chan struct{}) {
	defer close(s.frames)
	var firstOnce sync.Once
	var offset time.Duration
	for {
		buf := make([]byte, frameBytes)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			f := audio.Frame{Data: buf[:n], SampleRate: s.params.SampleRate, Channels: 1, Timestamp: offset}
			offset += f.Duration()
			firstOnce.Do(func() { close(first) })
			select {
			case s.frames <- f:
			case <-s.abandon:
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, os.ErrClosed) {
				s.logger.Warn("arecord read", zap.Error(err))
			}
			return
		}
	}
}

func (s *arecordStream) Frames() <-chan audio.Frame { return s.frames }
func (s *arecordStream) Params() audio.Params       { return s.params }

// Close interrupts arecord so it flushes, and returns once every byte it
// wrote has been delivered on Frames. A process that lingers past the grace
// period is killed and its pending output dropped.
func (s *arecordStream) Close() error {
	s.once.Do(func() {
		if s.cmd.Process == nil {
			return
		}
		_ = s.cmd.Process.Signal(os.Interrupt)
		select {
		case <-s.exited:
		case <-time.After(closeGrace):
			s.dropFrames()
			_ = s.cmd.Process.Kill()
			// A child that inherited stdout would keep read from seeing EOF.
			_ = s.stdout.Close()
			<-s.exited
		}
	})
	return nil
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
