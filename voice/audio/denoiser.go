package audio

import (
	"math"
	"sync"
)

const denoiseFrameSize = 480 // 10ms at 48kHz mono

// Denoiser is a stateful noise suppressor over 10 ms float frames. An
// implementation that does no real suppression may satisfy this as a
// pass-through; Gate is exactly that, gated by an RMS threshold in the
// style of a hardware noise gate rather than a spectral model.
type Denoiser interface {
	Process(samples []float32) []float32
	Flush() []float32
	SetEnabled(enabled bool)
	Enabled() bool
}

// Gate is a runtime-toggleable noise gate: frames whose RMS energy
// falls below a threshold (after a short hold period) are zeroed,
// everything else passes through unchanged. It accumulates arbitrary
// input into denoiseFrameSize chunks the way the pipeline's other
// stage does, so it composes with irregular capture block sizes.
type Gate struct {
	mu sync.Mutex

	enabled   bool
	threshold float32
	holdFrames int

	remaining int
	carry     []float32
}

// NewGate returns an enabled Gate at the given RMS threshold (linear,
// not dB) and hold length in frames before the gate re-closes.
func NewGate(threshold float32, holdFrames int) *Gate {
	return &Gate{enabled: true, threshold: threshold, holdFrames: holdFrames}
}

// SetEnabled toggles suppression on or off without resetting state.
func (g *Gate) SetEnabled(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = enabled
}

// Enabled reports whether suppression is currently active.
func (g *Gate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// SetThreshold adjusts the RMS threshold at runtime.
func (g *Gate) SetThreshold(threshold float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.threshold = threshold
}

// Process accumulates samples and, for every complete 480-sample frame
// available, gates it and appends the result to the output. Leftover
// samples below one frame are carried to the next call.
func (g *Gate) Process(samples []float32) []float32 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.carry = append(g.carry, samples...)

	var out []float32
	for len(g.carry) >= denoiseFrameSize {
		frame := g.carry[:denoiseFrameSize]
		g.carry = g.carry[denoiseFrameSize:]
		out = append(out, g.processFrame(frame)...)
	}
	return out
}

// Flush zero-pads any carried partial frame and drains it.
func (g *Gate) Flush() []float32 {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.carry) == 0 {
		return nil
	}

	frame := make([]float32, denoiseFrameSize)
	copy(frame, g.carry)
	g.carry = nil

	return g.processFrame(frame)
}

func (g *Gate) processFrame(frame []float32) []float32 {
	if !g.enabled {
		return append([]float32(nil), frame...)
	}

	rms := rms(frame)
	if rms >= g.threshold {
		g.remaining = g.holdFrames
		return append([]float32(nil), frame...)
	}

	if g.remaining > 0 {
		g.remaining--
		return append([]float32(nil), frame...)
	}

	return make([]float32, len(frame))
}

func rms(frame []float32) float32 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	mean := sum / float64(len(frame))
	return float32(math.Sqrt(mean))
}
