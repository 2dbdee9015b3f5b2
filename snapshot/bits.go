package snapshot

import "sync/atomic"

// Bits is a monotonic bit mask: bits can be set but never cleared, except by Reset.
type Bits struct {
	v atomic.Uint32
}

// Set ORs mask into the bits and reports whether any bit changed.
func (b *Bits) Set(mask uint32) bool {
	for {
		old := b.v.Load()
		next := old | mask
		if next == old {
			return false
		}
		if b.v.CompareAndSwap(old, next) {
			return true
		}
	}
}

// Has reports whether every bit in mask is set.
func (b *Bits) Has(mask uint32) bool {
	return b.v.Load()&mask == mask
}

// Any reports whether at least one bit in mask is set.
func (b *Bits) Any(mask uint32) bool {
	return b.v.Load()&mask != 0
}

func (b *Bits) Load() uint32 { return b.v.Load() }

// Reset clears every bit. Only the owner of the session lifecycle calls it.
func (b *Bits) Reset() { b.v.Store(0) }
