// Package vad estimates whether the speaker is talking from the analyser's
// frequency bytes.
package vad

// DefaultThreshold is the mean frequency byte above which the speaker is
// considered to be talking.
const DefaultThreshold = 20

// Estimator is a plain mean-versus-threshold test with no hysteresis.
type Estimator struct {
	Threshold float64
}

func New() Estimator { return Estimator{Threshold: DefaultThreshold} }

// Level is the mean of freq, 0 for an empty slice.
func Level(freq []byte) float64 {
	if len(freq) == 0 {
		return 0
	}
	sum := 0
	for _, b := range freq {
		sum += int(b)
	}
	return float64(sum) / float64(len(freq))
}

func (e Estimator) Speaking(freq []byte) bool {
	return Level(freq) > e.Threshold
}

