// Package backoff implements the voice session's reconnect schedule:
// exponential delay with a ceiling and a bounded number of attempts,
// perturbed by jitter so that many sessions reconnecting at once don't
// all retry in lockstep.
package backoff

import (
	"math"
	"math/rand"
	"sync/atomic"
	"time"
)

// Backoff computes the delay before reconnect attempt n as
// min(base*2^(n-1), cap), jittered by +/-10%, and reports exhaustion
// once MaxAttempts have been handed out.
type Backoff struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int

	attempt int32
}

// New returns a Backoff with the given base delay, ceiling and maximum
// attempt count. A maxAttempts <= 0 means unlimited attempts.
func New(base, cap time.Duration, maxAttempts int) *Backoff {
	return &Backoff{Base: base, Cap: cap, MaxAttempts: maxAttempts}
}

// Next returns the delay for the next attempt and whether the caller
// should still retry. Once MaxAttempts have been consumed, ok is false
// and the returned duration is zero.
func (b *Backoff) Next() (delay time.Duration, ok bool) {
	n := atomic.AddInt32(&b.attempt, 1)
	if b.MaxAttempts > 0 && int(n) > b.MaxAttempts {
		return 0, false
	}
	return b.forAttempt(n), true
}

// Reset clears the attempt counter, used once a connection succeeds.
func (b *Backoff) Reset() {
	atomic.StoreInt32(&b.attempt, 0)
}

// Attempt reports how many attempts have been handed out so far.
func (b *Backoff) Attempt() int {
	return int(atomic.LoadInt32(&b.attempt))
}

func (b *Backoff) forAttempt(attempt int32) time.Duration {
	base := b.Base
	if base <= 0 {
		base = time.Second
	}

	raw := float64(base) * math.Pow(2, float64(attempt-1))
	if b.Cap > 0 {
		if capF := float64(b.Cap); raw > capF {
			raw = capF
		}
	}

	// Jitter within +/-10% so concurrent sessions don't retry in lockstep.
	jitterSpan := raw * 0.1
	jittered := raw - jitterSpan + rand.Float64()*2*jitterSpan
	if jittered < 0 {
		jittered = 0
	}

	return time.Duration(jittered)
}
