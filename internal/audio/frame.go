// Package audio holds the PCM frame type shared by the capture pipeline and
// the container encoders used for uploaded answers.
package audio

import (
	"encoding/binary"
	"time"
)

// Frame is one block of signed 16-bit little-endian PCM.
type Frame struct {
	Data       []byte
	SampleRate int
	Channels   int
	// Timestamp is the capture offset from the start of the stream.
	Timestamp time.Duration
}

// Params describes the stream a capture device delivers.
type Params struct {
	SampleRate int
	Channels   int
}

func (f Frame) Params() Params { return Params{SampleRate: f.SampleRate, Channels: f.Channels} }

// Samples decodes the frame into normalized floats in [-1, 1). Multi-channel
// frames are averaged down to mono. A trailing odd byte is ignored.
func (f Frame) Samples() []float64 {
	ch := f.Channels
	if ch < 1 {
		ch = 1
	}
	n := len(f.Data) / 2 / ch
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < ch; c++ {
			off := (i*ch + c) * 2
			sum += float64(int16(binary.LittleEndian.Uint16(f.Data[off:]))) / 32768
		}
		out[i] = sum / float64(ch)
	}
	return out
}

// Duration is the playback length of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := len(f.Data) / 2 / f.Channels
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}
