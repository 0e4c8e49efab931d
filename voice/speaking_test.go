package voice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embervoice/voice/internal/config"
)

// mutedObserver records every OnMuted call so tests can assert both the
// final state and how many times it fired.
type mutedObserver struct {
	NopObserver
	mu     sync.Mutex
	events []bool
}

func (o *mutedObserver) OnMuted(muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, muted)
}

func (o *mutedObserver) last() (muted bool, count int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.events) == 0 {
		return false, 0
	}
	return o.events[len(o.events)-1], len(o.events)
}

func newMutedTestSession(t *testing.T, obs Observer) (*VoiceSession, *fakeTransport) {
	t.Helper()

	tr := newFakeTransport()
	creds := Credentials{WSURL: "wss://example.invalid", RoomID: "room-1", Token: "tok"}

	s, err := NewSession(creds, "user-1", config.Default(), obs, WithDialer(fakeDialer{tr: tr}))
	require.NoError(t, err)

	return s, tr
}

func TestStartSpeakingBuildsPipelineAndPushCaptureSendsFrames(t *testing.T) {
	s, tr := newTestSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	defer s.Disconnect()

	require.NoError(t, s.StartSpeaking(ctx))
	assert.True(t, s.IsSpeaking())

	require.NoError(t, s.PushCapture(make([]float32, 960)))

	tr.mu.Lock()
	sent := len(tr.binarySends)
	tr.mu.Unlock()
	assert.Equal(t, 1, sent, "one full encoder frame should emit exactly one sealed packet")
}

func TestPushCaptureIsNoopBeforeStartSpeaking(t *testing.T) {
	s, tr := newTestSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	defer s.Disconnect()

	require.NoError(t, s.PushCapture(make([]float32, 960)))

	tr.mu.Lock()
	sent := len(tr.binarySends)
	tr.mu.Unlock()
	assert.Zero(t, sent, "capture pushed before StartSpeaking must not be sent")
}

func TestStopSpeakingFlushesTrailingPartialFrame(t *testing.T) {
	s, tr := newTestSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	defer s.Disconnect()

	require.NoError(t, s.StartSpeaking(ctx))
	require.NoError(t, s.PushCapture(make([]float32, 400))) // less than one encoder frame

	tr.mu.Lock()
	beforeStop := len(tr.binarySends)
	tr.mu.Unlock()
	assert.Zero(t, beforeStop, "a partial frame shouldn't encode until flushed")

	require.NoError(t, s.StopSpeaking(ctx))
	assert.False(t, s.IsSpeaking())

	tr.mu.Lock()
	afterStop := len(tr.binarySends)
	tr.mu.Unlock()
	assert.Equal(t, 1, afterStop, "StopSpeaking should flush the trailing partial frame")
}

func TestStartSpeakingIsIdempotentWhileAlreadySpeaking(t *testing.T) {
	s, _ := newTestSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	defer s.Disconnect()

	require.NoError(t, s.StartSpeaking(ctx))
	pipelineBefore := s.pipeline

	require.NoError(t, s.StartSpeaking(ctx))
	assert.Same(t, pipelineBefore, s.pipeline, "a second StartSpeaking must not rebuild the pipeline")
}

func TestSetMutedStopsSpeakingAndNotifiesObserver(t *testing.T) {
	obs := &mutedObserver{}
	s, _ := newMutedTestSession(t, obs)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	defer s.Disconnect()

	require.NoError(t, s.StartSpeaking(ctx))
	require.True(t, s.IsSpeaking())

	require.NoError(t, s.SetMuted(ctx, true))
	assert.True(t, s.IsMuted())
	assert.False(t, s.IsSpeaking(), "muting while speaking must stop speaking")

	muted, n := obs.last()
	assert.True(t, muted)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, s.StartSpeaking(ctx), ErrMuted, "StartSpeaking must refuse while muted")

	require.NoError(t, s.SetMuted(ctx, false))
	assert.False(t, s.IsMuted())
	muted, n = obs.last()
	assert.False(t, muted)
	assert.Equal(t, 2, n)

	require.NoError(t, s.StartSpeaking(ctx), "unmuting must allow speaking again")
}

func TestSetMutedIsNoopWhenUnchanged(t *testing.T) {
	obs := &mutedObserver{}
	s, _ := newMutedTestSession(t, obs)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	defer s.Disconnect()

	require.NoError(t, s.SetMuted(ctx, false)) // already unmuted
	_, n := obs.last()
	assert.Equal(t, 0, n, "setting to the same mute state must not fire the observer")
}
