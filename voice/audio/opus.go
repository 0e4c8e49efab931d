package audio

import (
	"github.com/pkg/errors"
	"gopkg.in/hraban/opus.v2"
)

const (
	sampleRate  = 48000
	channels    = 1
	frameSize   = 960 // 20ms at 48kHz mono
	maxOpusBytes = 1275
)

// opusEncoder is the subset of *opus.Encoder this package drives,
// narrowed so tests can substitute a fake.
type opusEncoder interface {
	Encode(pcm []int16, data []byte) (int, error)
	SetBitrate(bitrate int) error
	SetDTX(dtx bool) error
	SetInBandFEC(fec bool) error
	SetPacketLossPerc(perc int) error
}

// opusDecoder is the subset of *opus.Decoder this package drives.
// Decode(nil, pcm) triggers Opus's own packet-loss-concealment estimate
// for the missing frame, per gopkg.in/hraban/opus.v2's convention.
type opusDecoder interface {
	Decode(data []byte, pcm []int16) (int, error)
}

// Codec wraps an Opus encoder/decoder pair tuned for 20 ms VoIP frames.
type Codec struct {
	enc opusEncoder
	dec opusDecoder
}

// NewCodec builds a Codec at the given target bitrate (bits/sec).
func NewCodec(bitrate int) (*Codec, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create opus encoder")
	}
	if err := enc.SetBitrate(bitrate); err != nil {
		return nil, errors.Wrap(err, "failed to set opus bitrate")
	}
	if err := enc.SetInBandFEC(false); err != nil {
		return nil, errors.Wrap(err, "failed to disable opus in-band FEC")
	}

	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create opus decoder")
	}

	return &Codec{enc: enc, dec: dec}, nil
}

// newCodecFrom builds a Codec directly from an encoder/decoder pair,
// bypassing NewCodec's cgo constructors. Used by tests to substitute
// fakes for the real Opus codec.
func newCodecFrom(enc opusEncoder, dec opusDecoder) *Codec {
	return &Codec{enc: enc, dec: dec}
}

// EncodeFrame encodes one 960-sample frame of 16-bit PCM into an Opus
// packet.
func (c *Codec) EncodeFrame(pcm []int16) ([]byte, error) {
	if len(pcm) != frameSize {
		return nil, errors.Errorf("opus: expected %d samples, got %d", frameSize, len(pcm))
	}

	buf := make([]byte, maxOpusBytes)
	n, err := c.enc.Encode(pcm, buf)
	if err != nil {
		return nil, errors.Wrap(err, "opus encode failed")
	}
	return buf[:n], nil
}

// DecodeFrame decodes an Opus packet into 960 samples of 16-bit PCM.
func (c *Codec) DecodeFrame(packet []byte) ([]int16, error) {
	pcm := make([]int16, frameSize)
	n, err := c.dec.Decode(packet, pcm)
	if err != nil {
		return nil, errors.Wrap(err, "opus decode failed")
	}
	return pcm[:n*channels], nil
}

// Decode implements jitter.Decoder so a Codec can back a playback
// buffer directly.
func (c *Codec) Decode(payload []byte) ([]int16, error) { return c.DecodeFrame(payload) }

// DecodeMissing returns one frame of concealment audio: Opus's own
// packet-loss-concealment estimate, falling back to silence if the
// decoder itself errors.
func (c *Codec) DecodeMissing() []int16 {
	pcm := make([]int16, frameSize)
	if _, err := c.dec.Decode(nil, pcm); err != nil {
		for i := range pcm {
			pcm[i] = 0
		}
	}
	return pcm
}
