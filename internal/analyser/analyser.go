// Package analyser computes the time-domain and frequency-domain byte
// snapshots that drive the waveform display and voice activity estimate.
//
// The byte scaling follows the Web Audio AnalyserNode: time-domain bytes are
// 128 + sample*128 and frequency bytes map [MinDecibels, MaxDecibels] onto
// [0, 255] after a Blackman window, an FFT and exponential smoothing.
package analyser

import (
	"fmt"
	"math"
	"math/bits"
	"sync"

	"github.com/soaringjerry/Vox/internal/audio"
)

const (
	DefaultFFTSize               = 2048
	DefaultSmoothingTimeConstant = 0.8
	DefaultMinDecibels           = -100.0
	DefaultMaxDecibels           = -30.0
)

type Options struct {
	FFTSize     int
	Smoothing   float64
	MinDecibels float64
	MaxDecibels float64
}

// Analyser is safe for one writer and any number of readers.
type Analyser struct {
	mu       sync.Mutex
	size     int
	ring     []float64
	pos      int
	smoothed []float64
	window   []float64
	opts     Options
}

func New(opts Options) (*Analyser, error) {
	if opts.FFTSize == 0 {
		opts.FFTSize = DefaultFFTSize
	}
	if opts.FFTSize < 32 || bits.OnesCount(uint(opts.FFTSize)) != 1 {
		return nil, fmt.Errorf("analyser: fft size %d is not a power of two >= 32", opts.FFTSize)
	}
	if opts.Smoothing == 0 {
		opts.Smoothing = DefaultSmoothingTimeConstant
	}
	if opts.Smoothing < 0 || opts.Smoothing > 1 {
		return nil, fmt.Errorf("analyser: smoothing %v out of [0, 1]", opts.Smoothing)
	}
	if opts.MinDecibels == 0 && opts.MaxDecibels == 0 {
		opts.MinDecibels, opts.MaxDecibels = DefaultMinDecibels, DefaultMaxDecibels
	}
	if opts.MinDecibels >= opts.MaxDecibels {
		return nil, fmt.Errorf("analyser: min decibels must be below max")
	}
	return &Analyser{
		size:     opts.FFTSize,
		ring:     make([]float64, opts.FFTSize),
		smoothed: make([]float64, opts.FFTSize/2),
		window:   blackman(opts.FFTSize),
		opts:     opts,
	}, nil
}

// Default returns an analyser with the standard settings.
func Default() *Analyser {
	a, _ := New(Options{})
	return a
}

func (a *Analyser) FFTSize() int { return a.size }

func (a *Analyser) FrequencyBinCount() int { return a.size / 2 }

// Write appends the frame's samples to the analysis window. It has the
// signature of a recorder tap.
func (a *Analyser) Write(f audio.Frame) {
	a.Push(f.Samples())
}

func (a *Analyser) Push(samples []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % a.size
	}
}

// ordered returns the window oldest sample first. Caller holds mu.
func (a *Analyser) ordered() []float64 {
	out := make([]float64, a.size)
	copy(out, a.ring[a.pos:])
	copy(out[a.size-a.pos:], a.ring[:a.pos])
	return out
}

// TimeDomainBytes returns FFTSize bytes, 128 being silence.
func (a *Analyser) TimeDomainBytes() []byte {
	a.mu.Lock()
	samples := a.ordered()
	a.mu.Unlock()
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = clampByte(128 * (s + 1))
	}
	return out
}

// FrequencyBytes returns FrequencyBinCount bytes. Each call advances the
// smoothing state, as the browser analyser does.
func (a *Analyser) FrequencyBytes() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	samples := a.ordered()
	re := make([]float64, a.size)
	im := make([]float64, a.size)
	for i, s := range samples {
		re[i] = s * a.window[i]
	}
	fft(re, im)

	tau := a.opts.Smoothing
	scale := 255 / (a.opts.MaxDecibels - a.opts.MinDecibels)
	out := make([]byte, a.size/2)
	for k := range out {
		mag := math.Hypot(re[k], im[k]) / float64(a.size)
		a.smoothed[k] = tau*a.smoothed[k] + (1-tau)*mag
		db := math.Inf(-1)
		if a.smoothed[k] > 0 {
			db = 20 * math.Log10(a.smoothed[k])
		}
		out[k] = clampByte(scale * (db - a.opts.MinDecibels))
	}
	return out
}

// Reset clears samples and smoothing history, e.g. between segments.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.ring {
		a.ring[i] = 0
	}
	for i := range a.smoothed {
		a.smoothed[i] = 0
	}
	a.pos = 0
}

func clampByte(v float64) byte {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return byte(v)
}

func blackman(n int) []float64 {
	const alpha = 0.16
	a0, a1, a2 := (1-alpha)/2, 0.5, alpha/2
	w := make([]float64, n)
	for i := range w {
		x := float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(2*math.Pi*x) + a2*math.Cos(4*math.Pi*x)
	}
	return w
}

// fft is an in-place iterative radix-2 transform; len(re) is a power of two.
func fft(re, im []float64) {
	n := len(re)
	shift := 64 - bits.Len(uint(n-1))
	for i := 0; i < n; i++ {
		j := int(bits.Reverse64(uint64(i)) >> shift)
		if j > i {
			re[i], re[j] = re[j], re[i]
			im[i], im[j] = im[j], im[i]
		}
	}
	for size := 2; size <= n; size <<= 1 {
		half := size / 2
		step := -2 * math.Pi / float64(size)
		for start := 0; start < n; start += size {
			for k := 0; k < half; k++ {
				wr, wi := math.Cos(step*float64(k)), math.Sin(step*float64(k))
				a, b := start+k, start+k+half
				tr := wr*re[b] - wi*im[b]
				ti := wr*im[b] + wi*re[b]
				re[b], im[b] = re[a]-tr, im[a]-ti
				re[a], im[a] = re[a]+tr, im[a]+ti
			}
		}
	}
}
