package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embervoice/voice/voice/jitter"
	"github.com/embervoice/voice/voice/signaling"
)

type nopDecoder struct{}

func (nopDecoder) Decode(payload []byte) ([]int16, error) { return nil, nil }
func (nopDecoder) DecodeMissing() []int16                 { return nil }

func newTestJitterBuffer() *jitter.Buffer {
	return jitter.New(nopDecoder{}, jitter.DefaultConfig())
}

func TestParticipantIndexJoinAndLookup(t *testing.T) {
	idx := newParticipantIndex()

	p := idx.join("alice", 111, newTestJitterBuffer)
	require.NotNil(t, p)
	assert.Equal(t, "alice", p.UserID)
	assert.Equal(t, uint32(111), p.SSRC)

	byUser, ok := idx.byUserID("alice")
	require.True(t, ok)
	assert.Same(t, p, byUser)

	bySSRC, ok := idx.bySsrc(111)
	require.True(t, ok)
	assert.Same(t, p, bySSRC)

	_, ok = idx.jitterFor(111)
	assert.True(t, ok, "join must provision a jitter buffer for the new ssrc")
}

func TestParticipantIndexLeaveRemovesEverything(t *testing.T) {
	idx := newParticipantIndex()
	idx.join("bob", 222, newTestJitterBuffer)

	left, ok := idx.leave("bob")
	require.True(t, ok)
	assert.Equal(t, "bob", left.UserID)

	_, ok = idx.byUserID("bob")
	assert.False(t, ok)
	_, ok = idx.bySsrc(222)
	assert.False(t, ok)
	_, ok = idx.jitterFor(222)
	assert.False(t, ok)

	_, ok = idx.leave("bob")
	assert.False(t, ok, "leaving an unknown user should report false, not panic")
}

func TestParticipantIndexSetSpeaking(t *testing.T) {
	idx := newParticipantIndex()
	idx.join("carol", 333, newTestJitterBuffer)

	p, ok := idx.setSpeaking(333, signaling.Microphone)
	require.True(t, ok)
	assert.Equal(t, signaling.Microphone, p.SpeakingFlags)

	_, ok = idx.setSpeaking(999, signaling.Microphone)
	assert.False(t, ok, "setSpeaking for an unknown ssrc should report false")
}

func TestParticipantIndexActiveSendersAndDepth(t *testing.T) {
	idx := newParticipantIndex()
	idx.join("dave", 1, newTestJitterBuffer)
	idx.join("erin", 2, newTestJitterBuffer)

	assert.Equal(t, 0, idx.activeSenders(), "no sender has pushed any packets yet")
	assert.Equal(t, 0, idx.jitterDepth())

	buf, ok := idx.jitterFor(1)
	require.True(t, ok)
	buf.Push(0, 0, []byte{1})
	buf.Push(1, 960, []byte{2})

	assert.Equal(t, 1, idx.activeSenders(), "only ssrc 1 has buffered frames")
	assert.Equal(t, 2, idx.jitterDepth())

	buf2, ok := idx.jitterFor(2)
	require.True(t, ok)
	buf2.Push(0, 0, []byte{3})

	assert.Equal(t, 2, idx.activeSenders())
	assert.Equal(t, 3, idx.jitterDepth())
}

func TestParticipantIndexAllAndReset(t *testing.T) {
	idx := newParticipantIndex()
	idx.join("dave", 1, newTestJitterBuffer)
	idx.join("erin", 2, newTestJitterBuffer)

	assert.Len(t, idx.all(), 2)

	idx.reset()
	assert.Empty(t, idx.all())
	_, ok := idx.jitterFor(1)
	assert.False(t, ok)
}
