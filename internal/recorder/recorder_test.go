package recorder

import (
	"context"
	"encoding/binary"
	"errors"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/Vox/internal/audio"
)

type fakeStream struct {
	params audio.Params
	frames chan audio.Frame
	closes atomic.Int32
	once   sync.Once
}

func (s *fakeStream) Frames() <-chan audio.Frame { return s.frames }
func (s *fakeStream) Params() audio.Params       { return s.params }
func (s *fakeStream) Close() error {
	s.closes.Add(1)
	s.once.Do(func() { close(s.frames) })
	return nil
}

type fakeDevice struct {
	stream *fakeStream
	err    error
}

func (d *fakeDevice) Open(ctx context.Context) (Stream, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

func newFakeDevice(rate int) *fakeDevice {
	return &fakeDevice{stream: &fakeStream{params: audio.Params{SampleRate: rate, Channels: 1}, frames: make(chan audio.Frame)}}
}

func frame(rate int, samples ...int16) audio.Frame {
	b := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(s))
	}
	return audio.Frame{Data: b, SampleRate: rate, Channels: 1}
}

func TestEmptySegmentIsValidPayload(t *testing.T) {
	dev := newFakeDevice(16000)
	s := NewSession(dev, Options{})
	ctx := context.Background()
	require.NoError(t, s.Begin(ctx))
	require.NoError(t, s.StartSegment())
	seg, err := s.StopSegment(ctx)
	require.NoError(t, err)
	assert.Equal(t, audio.MIMEWav, seg.MIME)
	assert.Len(t, seg.Data, 44)
	assert.Zero(t, seg.Chunks)
	_, err = s.EndSession(ctx)
	require.NoError(t, err)
}

func TestFramesBeforeStopAreIncluded(t *testing.T) {
	dev := newFakeDevice(8000)
	var tapped atomic.Int32
	s := NewSession(dev, Options{Formats: []string{audio.MIMEUlaw}, Tap: func(audio.Frame) { tapped.Add(1) }})
	ctx := context.Background()
	require.NoError(t, s.Begin(ctx))

	// send returns once the capture loop has fully handled the frame.
	send := func(f audio.Frame) {
		want := tapped.Load() + 1
		dev.stream.frames <- f
		require.Eventually(t, func() bool { return tapped.Load() == want }, time.Second, time.Millisecond)
	}

	// Frames outside a segment reach the tap only.
	send(frame(8000, 1, 2))
	require.NoError(t, s.StartSegment())
	send(frame(8000, 3, 4))
	send(frame(8000, 5, 6))
	seg, err := s.StopSegment(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, seg.Chunks)
	assert.Equal(t, "au", seg.Extension)
	assert.Len(t, seg.Data, 24+4)
	assert.Equal(t, int32(3), tapped.Load())
	assert.Equal(t, 500*time.Microsecond, seg.Duration)

	require.NoError(t, s.StartSegment())
	s.Suspend()
	send(frame(8000, 7))
	s.Resume()
	send(frame(8000, 8))
	seg, err = s.StopSegment(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, seg.Chunks, "suspended frames are dropped")

	_, err = s.StopSegment(ctx)
	assert.ErrorIs(t, err, ErrNoSegment)
}

func TestPermissionDenied(t *testing.T) {
	s := NewSession(&fakeDevice{err: ErrPermissionDenied}, Options{})
	assert.ErrorIs(t, s.Begin(context.Background()), ErrPermissionDenied)
	assert.ErrorIs(t, s.StartSegment(), ErrNotStarted)
}

func TestDeviceUnavailableWhenNoFormatFits(t *testing.T) {
	dev := newFakeDevice(44100)
	s := NewSession(dev, Options{Formats: []string{audio.MIMEUlaw, audio.MIMEAlaw}})
	require.NoError(t, s.Begin(context.Background()))
	assert.ErrorIs(t, s.StartSegment(), ErrDeviceUnavailable)
	_, _ = s.EndSession(context.Background())
}

func TestSegmentRules(t *testing.T) {
	dev := newFakeDevice(16000)
	s := NewSession(dev, Options{})
	ctx := context.Background()
	_, err := s.StopSegment(ctx)
	assert.ErrorIs(t, err, ErrNotStarted)
	require.NoError(t, s.Begin(ctx))
	require.NoError(t, s.StartSegment())
	assert.ErrorIs(t, s.StartSegment(), ErrSegmentActive)
	assert.True(t, s.Recording())
}

func TestEndSessionReleasesOnce(t *testing.T) {
	dev := newFakeDevice(16000)
	s := NewSession(dev, Options{})
	ctx := context.Background()
	require.NoError(t, s.Begin(ctx))
	require.NoError(t, s.StartSegment())
	dev.stream.frames <- frame(16000, 1, 2, 3)

	seg, err := s.EndSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, seg, "the in-flight segment is handed back")
	assert.Equal(t, 1, seg.Chunks)

	_, err = s.EndSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), dev.stream.closes.Load())
	assert.ErrorIs(t, s.Begin(ctx), ErrClosed)
	assert.ErrorIs(t, s.StartSegment(), ErrClosed)
}

func TestStopAfterStreamEnds(t *testing.T) {
	dev := newFakeDevice(16000)
	s := NewSession(dev, Options{})
	ctx := context.Background()
	require.NoError(t, s.Begin(ctx))
	require.NoError(t, s.StartSegment())
	dev.stream.frames <- frame(16000, 1)
	require.NoError(t, dev.stream.Close())

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	seg, err := s.StopSegment(stopCtx)
	require.NoError(t, err)
	assert.Equal(t, 1, seg.Chunks)
}

func shAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestArecordDeviceStreamsFrames(t *testing.T) {
	shAvailable(t)
	dev := &ArecordDevice{SampleRate: 8000, FrameSize: 10 * time.Millisecond}
	dev.command = func(ctx context.Context, args ...string) *exec.Cmd {
		return exec.Command("sh", "-c", "head -c 480 /dev/zero; exec sleep 5")
	}
	stream, err := dev.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, audio.Params{SampleRate: 8000, Channels: 1}, stream.Params())
	f := <-stream.Frames()
	assert.Len(t, f.Data, 160)
	require.NoError(t, stream.Close())
}

// arecord may exit with output still buffered in the pipe; all of it must
// reach Frames.
func TestArecordDeviceDeliversOutputAfterExit(t *testing.T) {
	shAvailable(t)
	dev := &ArecordDevice{SampleRate: 8000, FrameSize: 10 * time.Millisecond}
	dev.command = func(ctx context.Context, args ...string) *exec.Cmd {
		return exec.Command("sh", "-c", "head -c 16000 /dev/zero")
	}
	stream, err := dev.Open(context.Background())
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	total := 0
	for f := range stream.Frames() {
		total += len(f.Data)
	}
	assert.Equal(t, 16000, total)
	require.NoError(t, stream.Close())
}

func TestArecordDeviceCloseWithoutConsumer(t *testing.T) {
	shAvailable(t)
	dev := &ArecordDevice{SampleRate: 8000, FrameSize: 10 * time.Millisecond}
	dev.command = func(ctx context.Context, args ...string) *exec.Cmd {
		return exec.Command("sh", "-c", "head -c 32000 /dev/zero; exec sleep 30")
	}
	stream, err := dev.Open(context.Background())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_ = stream.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestArecordDevicePermissionDenied(t *testing.T) {
	shAvailable(t)
	dev := &ArecordDevice{}
	dev.command = func(ctx context.Context, args ...string) *exec.Cmd {
		return exec.Command("sh", "-c", "echo 'arecord: main:850: audio open error: Permission denied' >&2; exit 1")
	}
	_, err := dev.Open(context.Background())
	assert.True(t, errors.Is(err, ErrPermissionDenied), "got %v", err)
}

func TestArecordArgs(t *testing.T) {
	dev := &ArecordDevice{Name: "hw:1", SampleRate: 8000}
	assert.Equal(t, []string{"-q", "-D", "hw:1", "-f", "S16_LE", "-c", "1", "-r", "8000", "-t", "raw"}, dev.args())
}
