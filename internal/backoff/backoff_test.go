package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffShapeAndCap(t *testing.T) {
	b := New(time.Second, 16*time.Second, 5)

	var delays []time.Duration
	for {
		d, ok := b.Next()
		if !ok {
			break
		}
		delays = append(delays, d)
	}

	require.Len(t, delays, 5)

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for i, d := range delays {
		lo := time.Duration(float64(want[i]) * 0.9)
		hi := time.Duration(float64(want[i]) * 1.1)
		assert.GreaterOrEqualf(t, d, lo, "attempt %d delay %v below jitter floor", i+1, d)
		assert.LessOrEqualf(t, d, hi, "attempt %d delay %v above jitter ceiling", i+1, d)
	}

	_, ok := b.Next()
	assert.False(t, ok, "backoff should be exhausted after MaxAttempts")
}

func TestBackoffReset(t *testing.T) {
	b := New(time.Second, 16*time.Second, 1)

	_, ok := b.Next()
	require.True(t, ok)

	_, ok = b.Next()
	require.False(t, ok)

	b.Reset()
	assert.Equal(t, 0, b.Attempt())

	_, ok = b.Next()
	assert.True(t, ok, "backoff should retry after Reset")
}

func TestBackoffUnlimited(t *testing.T) {
	b := New(time.Millisecond, 10*time.Millisecond, 0)

	for i := 0; i < 50; i++ {
		_, ok := b.Next()
		require.True(t, ok, "unlimited backoff should never report exhaustion")
	}
}
