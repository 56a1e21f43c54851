package epoch

import (
	"context"
	"testing"
	"time"
)

func TestRegisterFlipFire(t *testing.T) {
	c := New()
	e, wake := c.Register()
	if c.Count(e) != 1 {
		t.Fatalf("Count(%d) = %d, want 1", e, c.Count(e))
	}
	select {
	case <-wake:
		t.Fatalf("wake channel closed before Fire")
	default:
	}

	old := c.Flip()
	if old != e {
		t.Fatalf("Flip() = %d, want %d", old, e)
	}
	c.Fire(old)
	select {
	case <-wake:
	case <-time.After(time.Second):
		t.Fatalf("wake channel not closed after Fire")
	}
	if !c.Value(old) {
		t.Fatalf("Value(%d) = false after Fire", old)
	}
	c.Unregister(old)
	if c.Count(old) != 0 {
		t.Fatalf("Count(%d) after Unregister = %d, want 0", old, c.Count(old))
	}
}

func TestFireIsIdempotent(t *testing.T) {
	c := New()
	c.Fire(0)
	c.Fire(0)
	if !c.Value(0) {
		t.Fatalf("Value(0) = false after double Fire")
	}
}

func TestWaitCancel(t *testing.T) {
	c := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Wait(ctx, 0); err == nil {
		t.Fatalf("Wait() = nil, want a context error")
	}
}

func TestWaitAlreadyFired(t *testing.T) {
	c := New()
	c.Fire(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Wait(ctx, 0); err != nil {
		t.Fatalf("Wait() on already-fired epoch = %v, want nil", err)
	}
}

func TestFlipResetsNewEpoch(t *testing.T) {
	c := New()
	c.Fire(0)
	c.Flip() // now epoch 1 is live, epoch 0 stays fired in history
	e, wake := c.Register()
	if e != 1 {
		t.Fatalf("Register() epoch = %d, want 1", e)
	}
	if c.Value(1) {
		t.Fatalf("Value(1) = true on fresh epoch, want false")
	}
	select {
	case <-wake:
		t.Fatalf("fresh epoch's wake channel already closed")
	default:
	}
}
