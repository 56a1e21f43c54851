// Package bitmask implements a dense, fixed-size set of descriptor slots
// with atomic acquire/release of individual indices.
//
// It is the Go counterpart of aos-tag's utils/aos-tag_bitmask.h: a single
// lock guards a []uint64 word array, Acquire scans for the first clear bit
// and sets it in the same critical section, and Release clears a bit with
// no validity check (the caller is trusted, same as the source's TAG_CLR).
package bitmask

import (
	"math/bits"
	"sync"
)

// Mask is a bounded set of n indices, 0..n-1.
type Mask struct {
	mu    sync.Mutex
	words []uint64
	n     int
}

// New returns a Mask capable of holding n indices, all initially clear.
func New(n int) *Mask {
	if n <= 0 {
		panic("bitmask: n must be positive")
	}
	nw := n / 64
	if n%64 != 0 {
		nw++
	}
	return &Mask{words: make([]uint64, nw), n: n}
}

// Len reports the number of indices the mask can hold.
func (m *Mask) Len() int { return m.n }

// Acquire finds the first clear bit, sets it, and returns its index. The
// second return value is false iff the mask is full, mirroring TAG_NEXT's
// full_flag.
func (m *Mask) Acquire() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for wi := range m.words {
		valid := m.n - wi*64
		if valid > 64 {
			valid = 64
		}
		var validMask uint64 = ^uint64(0)
		if valid < 64 {
			validMask = (uint64(1) << uint(valid)) - 1
		}
		avail := validMask &^ m.words[wi]
		if avail == 0 {
			continue
		}
		bit := bits.TrailingZeros64(avail)
		m.words[wi] |= uint64(1) << uint(bit)
		return wi*64 + bit, true
	}
	return 0, false
}

// Release clears bit i. No validity check is performed; the caller
// guarantees i was previously returned by Acquire and not yet released.
func (m *Mask) Release(i int) {
	m.mu.Lock()
	m.words[i/64] &^= uint64(1) << uint(i%64)
	m.mu.Unlock()
}

// InUse reports whether bit i is currently set. Used by tests; not part
// of the hot path.
func (m *Mask) InUse(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.words[i/64]&(uint64(1)<<uint(i%64)) != 0
}

// Count returns the number of set bits.
func (m *Mask) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, w := range m.words {
		n += bits.OnesCount64(w)
	}
	return n
}
