// Package epoch implements the two-phase RCU-like wait condition that
// aos-tag's utils/aos-tag_conditions.h calls tag_cond_t: an epoch
// selector, one "fired" value and one presence counter per epoch, and a
// lock that serializes epoch transitions so no registration can straddle
// two epochs.
//
// The presence-counter discipline is what the teacher's own primitives
// (tef-crow's Roundabout epoch/bitmap header, dijkstracula-go-ilock's
// atomic state word) already lean on for lock-free bookkeeping: keep a
// small piece of state behind atomics, and use a plain mutex only for the
// rare transition that must not be observed half-done. Register/Flip here
// play the part of Roundabout's push/pop against a generation counter,
// specialized to exactly two live generations instead of a 32-wide ring.
package epoch

import (
	"context"
	"sync"
	"sync/atomic"
)

// Cond is a two-epoch wait condition. The zero value is not usable; call
// New.
type Cond struct {
	mu    sync.Mutex
	epoch uint32          // current epoch selector, guarded by mu
	fired [2]bool         // per-epoch "value" bit, guarded by mu
	count [2]atomic.Int64 // per-epoch presence counters
	wake  [2]chan struct{}
}

// New returns a Cond with both epochs reset and empty.
func New() *Cond {
	c := &Cond{}
	c.wake[0] = make(chan struct{})
	c.wake[1] = make(chan struct{})
	return c
}

// Register enrolls the caller on the current epoch, atomically bumping
// its presence counter, and returns the epoch selector plus the channel
// that closes when that epoch fires. The caller must call Unregister with
// the returned epoch on every exit path, including cancellation — this is
// the invariant that lets drain loops (Count reaching zero) terminate
// regardless of how a registered party leaves.
func (c *Cond) Register() (epoch uint32, wake <-chan struct{}) {
	c.mu.Lock()
	e := c.epoch
	ch := c.wake[e]
	c.count[e].Add(1)
	c.mu.Unlock()
	return e, ch
}

// Unregister decrements the presence counter of the given epoch. It never
// blocks and takes no lock, mirroring TAG_COND_UNREG's lock-free atomic
// decrement.
func (c *Cond) Unregister(e uint32) {
	c.count[e].Add(-1)
}

// Flip swaps the active epoch, resets the new epoch's fired bit and wait
// channel, and returns the selector of the now-old epoch. Any Register
// that starts after Flip returns observes the new epoch (P1); any
// Register that is concurrent with Flip observes one or the other, never
// a torn epoch, because both operations serialize on mu.
func (c *Cond) Flip() (oldEpoch uint32) {
	c.mu.Lock()
	old := c.epoch
	next := old ^ 1
	c.epoch = next
	c.fired[next] = false
	c.wake[next] = make(chan struct{})
	c.mu.Unlock()
	return old
}

// Fire sets epoch e's value to true and wakes every waiter currently
// registered on it. Firing an already-fired epoch is a no-op.
func (c *Cond) Fire(e uint32) {
	c.mu.Lock()
	if !c.fired[e] {
		c.fired[e] = true
		close(c.wake[e])
	}
	c.mu.Unlock()
}

// Value reports epoch e's fired bit.
func (c *Cond) Value(e uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired[e]
}

// Count reports epoch e's presence counter.
func (c *Cond) Count(e uint32) int64 {
	return c.count[e].Load()
}

// Wait blocks until epoch e has fired or ctx is done. It neither
// registers nor unregisters, so the caller is not counted in epoch e's
// presence counter.
func (c *Cond) Wait(ctx context.Context, e uint32) error {
	c.mu.Lock()
	if c.fired[e] {
		c.mu.Unlock()
		return nil
	}
	ch := c.wake[e]
	c.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
