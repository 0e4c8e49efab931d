package moreatomic

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoolGetSet(t *testing.T) {
	var b Bool
	assert.False(t, b.Get())

	b.Set(true)
	assert.True(t, b.Get())
}

func TestBoolCompareAndSwap(t *testing.T) {
	var b Bool

	assert.True(t, b.CompareAndSwap(false), "swap false->true should succeed when value is false")
	assert.True(t, b.Get())

	assert.False(t, b.CompareAndSwap(false), "swap false->true should fail when value is already true")
}

func TestBoolCompareAndSwapConcurrentExclusivity(t *testing.T) {
	var b Bool
	var wg sync.WaitGroup
	successes := make(chan bool, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			successes <- b.CompareAndSwap(false)
		}()
	}
	wg.Wait()
	close(successes)

	wins := 0
	for ok := range successes {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent CompareAndSwap(false) should win")
}
