package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loudFrame(n int) []float32 {
	f := make([]float32, n)
	for i := range f {
		f[i] = 0.9
	}
	return f
}

func quietFrame(n int) []float32 {
	return make([]float32, n) // all zero: RMS 0
}

func TestGatePassesLoudAudio(t *testing.T) {
	g := NewGate(0.1, 0)

	out := g.Process(loudFrame(denoiseFrameSize))
	require.Len(t, out, denoiseFrameSize)
	assert.NotZero(t, out[0])
}

func TestGateSuppressesQuietAudioPastHold(t *testing.T) {
	g := NewGate(0.1, 0) // no hold: gates immediately once below threshold

	out := g.Process(quietFrame(denoiseFrameSize))
	require.Len(t, out, denoiseFrameSize)
	assert.Equal(t, float32(0), out[0])
}

func TestGateHoldKeepsPassingAfterLoudFrame(t *testing.T) {
	g := NewGate(0.1, 2) // hold for 2 frames after loud audio

	g.Process(loudFrame(denoiseFrameSize))

	// A soft but non-zero frame below the threshold: outside the hold
	// window it would be zeroed, inside it must pass through unchanged.
	soft := make([]float32, denoiseFrameSize)
	for i := range soft {
		soft[i] = 0.05
	}
	out := g.Process(soft)

	require.Len(t, out, denoiseFrameSize)
	assert.Equal(t, float32(0.05), out[0])
}

func TestGateDisabledPassesEverythingThrough(t *testing.T) {
	g := NewGate(0.5, 0)
	g.SetEnabled(false)

	out := g.Process(quietFrame(denoiseFrameSize))
	assert.False(t, g.Enabled())
	require.Len(t, out, denoiseFrameSize)
}

func TestGateAccumulatesPartialFramesAndFlushes(t *testing.T) {
	g := NewGate(0.1, 0)

	out := g.Process(loudFrame(denoiseFrameSize / 2))
	assert.Empty(t, out, "a half frame should be carried, not emitted")

	flushed := g.Flush()
	require.Len(t, flushed, denoiseFrameSize)
}

func TestGateSetThreshold(t *testing.T) {
	g := NewGate(0.9, 0)
	out := g.Process(loudFrame(denoiseFrameSize)) // 0.9 RMS, threshold 0.9: passes (>=)
	assert.NotZero(t, out[0])

	g.SetThreshold(0.99)
	out = g.Process(loudFrame(denoiseFrameSize)) // now below threshold: gated
	assert.Equal(t, float32(0), out[0])
}
