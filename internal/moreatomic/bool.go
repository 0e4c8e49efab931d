// Package moreatomic provides small atomic helpers layered on top of
// go.uber.org/atomic for the flags the voice session flips from more
// than one goroutine (joining, reconnecting, closed).
package moreatomic

import "go.uber.org/atomic"

// Bool is a thread-safe boolean flag.
type Bool struct {
	val atomic.Bool
}

// Get returns the current value.
func (b *Bool) Get() bool { return b.val.Load() }

// Set stores a new value.
func (b *Bool) Set(val bool) { b.val.Store(val) }

// CompareAndSwap atomically swaps old for !old if the current value is
// old, reporting whether the swap happened.
func (b *Bool) CompareAndSwap(old bool) bool { return b.val.CAS(old, !old) }
