package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpeakingThreshold(t *testing.T) {
	e := New()
	assert.False(t, e.Speaking(nil))
	assert.False(t, e.Speaking([]byte{20, 20, 20}), "exactly at the threshold is silence")
	assert.True(t, e.Speaking([]byte{20, 20, 21, 20}))
	assert.True(t, e.Speaking([]byte{0, 0, 0, 100}))
	assert.InDelta(t, 25.0, Level([]byte{0, 0, 0, 100}), 1e-9)
}

