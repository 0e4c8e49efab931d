package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEncoder struct {
	bitrate  int
	fec      bool
	lastSize int
}

func (f *fakeEncoder) Encode(pcm []int16, data []byte) (int, error) {
	f.lastSize = len(pcm)
	// Fake "encoding": a single byte holding len(pcm) truncated to a byte.
	n := copy(data, []byte{byte(len(pcm))})
	return n, nil
}
func (f *fakeEncoder) SetBitrate(b int) error        { f.bitrate = b; return nil }
func (f *fakeEncoder) SetDTX(bool) error              { return nil }
func (f *fakeEncoder) SetInBandFEC(fec bool) error    { f.fec = fec; return nil }
func (f *fakeEncoder) SetPacketLossPerc(int) error    { return nil }

type fakeDecoder struct {
	missingCalls int
}

func (f *fakeDecoder) Decode(data []byte, pcm []int16) (int, error) {
	if data == nil {
		f.missingCalls++
		return len(pcm), nil
	}
	for i := range pcm {
		pcm[i] = int16(data[0])
	}
	return len(pcm), nil
}

func TestEncodeFrameRejectsWrongSize(t *testing.T) {
	c := newCodecFrom(&fakeEncoder{}, &fakeDecoder{})

	_, err := c.EncodeFrame(make([]int16, 10))
	assert.Error(t, err)
}

func TestEncodeFrameHappyPath(t *testing.T) {
	enc := &fakeEncoder{}
	c := newCodecFrom(enc, &fakeDecoder{})

	pkt, err := c.EncodeFrame(make([]int16, frameSize))
	require.NoError(t, err)
	assert.NotEmpty(t, pkt)
	assert.Equal(t, frameSize, enc.lastSize)
}

func TestDecodeFrame(t *testing.T) {
	c := newCodecFrom(&fakeEncoder{}, &fakeDecoder{})

	pcm, err := c.DecodeFrame([]byte{42})
	require.NoError(t, err)
	require.Len(t, pcm, frameSize)
	assert.Equal(t, int16(42), pcm[0])
}

func TestDecodeMissingUsesPLCConvention(t *testing.T) {
	dec := &fakeDecoder{}
	c := newCodecFrom(&fakeEncoder{}, dec)

	pcm := c.DecodeMissing()
	require.Len(t, pcm, frameSize)
	assert.Equal(t, 1, dec.missingCalls)
}

func TestCodecImplementsJitterDecoder(t *testing.T) {
	c := newCodecFrom(&fakeEncoder{}, &fakeDecoder{})

	pcm, err := c.Decode([]byte{7})
	require.NoError(t, err)
	assert.Equal(t, int16(7), pcm[0])
}
