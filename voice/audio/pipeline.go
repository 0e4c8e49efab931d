// Package audio implements the capture-side signal chain (denoise →
// encode) and the playback-side codec used by the jitter buffer
// (decode, including loss concealment).
package audio

// Pipeline re-chunks arbitrary capture blocks into the Denoiser's
// 480-sample frames and the encoder's 960-sample frames, emitting Opus
// packets as each encoder frame fills. It performs no I/O: Process is a
// pure function of its input plus internal buffering state.
type Pipeline struct {
	denoiser Denoiser
	codec    *Codec

	denoiseOut []float32 // denoised samples awaiting a full encoder frame
}

// NewPipeline builds a Pipeline over the given denoiser and codec. A nil
// denoiser makes the pipeline a pass-through into the encoder.
func NewPipeline(denoiser Denoiser, codec *Codec) *Pipeline {
	return &Pipeline{denoiser: denoiser, codec: codec}
}

// SetDenoiseEnabled toggles the denoise stage without rebuilding the
// pipeline, per the protocol's runtime-configurable denoiser.
func (p *Pipeline) SetDenoiseEnabled(enabled bool) {
	if p.denoiser != nil {
		p.denoiser.SetEnabled(enabled)
	}
}

// Process accepts an arbitrary-length capture block of float32 samples
// in [-1, 1] and returns zero or more encoded Opus packets.
func (p *Pipeline) Process(captureBlock []float32) ([][]byte, error) {
	denoised := captureBlock
	if p.denoiser != nil {
		denoised = p.denoiser.Process(captureBlock)
	}

	return p.encode(denoised)
}

// Flush zero-pads and drains both pipeline stages, returning any final
// Opus packets produced.
func (p *Pipeline) Flush() ([][]byte, error) {
	var tail []float32
	if p.denoiser != nil {
		tail = p.denoiser.Flush()
	}

	packets, err := p.encode(tail)
	if err != nil {
		return nil, err
	}

	if len(p.denoiseOut) > 0 {
		frame := make([]float32, frameSize)
		copy(frame, p.denoiseOut)
		p.denoiseOut = nil

		pkt, err := p.codec.EncodeFrame(floatsToPCM(frame))
		if err != nil {
			return nil, err
		}
		packets = append(packets, pkt)
	}

	return packets, nil
}

func (p *Pipeline) encode(samples []float32) ([][]byte, error) {
	p.denoiseOut = append(p.denoiseOut, samples...)

	var packets [][]byte
	for len(p.denoiseOut) >= frameSize {
		frame := p.denoiseOut[:frameSize]
		p.denoiseOut = p.denoiseOut[frameSize:]

		pkt, err := p.codec.EncodeFrame(floatsToPCM(frame))
		if err != nil {
			return nil, err
		}
		packets = append(packets, pkt)
	}

	return packets, nil
}

// floatsToPCM converts [-1, 1] float samples to clamped 16-bit PCM.
func floatsToPCM(samples []float32) []int16 {
	pcm := make([]int16, len(samples))
	for i, s := range samples {
		pcm[i] = clampFloat32(s)
	}
	return pcm
}

// clampFloat32 converts one [-1, 1] float sample to int16, clamping
// out-of-range input instead of wrapping.
func clampFloat32(s float32) int16 {
	v := s * 32767
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	default:
		return int16(v)
	}
}
