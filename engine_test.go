package tagengine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(Config{MaxInstances: 8})
}

func TestRoundTripOpenRemoveOpen(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	tag, err := e.Open(ctx, RootIdentity, 7, Create, PermAll)
	if err != nil {
		t.Fatalf("Open(CREATE) = %v", err)
	}
	if err := e.Control(ctx, RootIdentity, tag, Remove); err != nil {
		t.Fatalf("Control(REMOVE) = %v", err)
	}
	if _, err := e.Open(ctx, RootIdentity, 7, Open, PermAll); err != ErrNoKey {
		t.Fatalf("Open(OPEN) after remove = %v, want ErrNoKey", err)
	}
}

func TestSendThenReceiveRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	tag, err := e.Open(ctx, RootIdentity, 1, Create, PermAll)
	if err != nil {
		t.Fatalf("Open(CREATE) = %v", err)
	}

	var recvErr error
	var n int
	buf := make([]byte, 16)
	done := make(chan struct{})
	go func() {
		n, recvErr = e.Receive(ctx, RootIdentity, tag, 3, buf)
		close(done)
	}()
	waitRegistered(t, e, tag, 3, 1)

	if err := e.Send(ctx, RootIdentity, tag, 3, []byte("hi")); err != nil {
		t.Fatalf("Send() = %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Receive() never returned")
	}
	if recvErr != nil {
		t.Fatalf("Receive() = %v", recvErr)
	}
	if string(buf[:n]) != "hi" {
		t.Fatalf("Receive() buf = %q, want %q", buf[:n], "hi")
	}
}

func TestFanOut(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	tag, err := e.Open(ctx, RootIdentity, 7, Create, PermAll)
	if err != nil {
		t.Fatalf("Open(CREATE) = %v", err)
	}

	const n = 5
	results := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			buf := make([]byte, 8)
			sz, err := e.Receive(ctx, RootIdentity, tag, 12, buf)
			errs[i] = err
			results[i] = string(buf[:sz])
		}(i)
	}
	waitRegistered(t, e, tag, 12, n)

	if err := e.Send(ctx, RootIdentity, tag, 12, []byte("hi")); err != nil {
		t.Fatalf("Send() = %v", err)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("receiver %d: %v", i, errs[i])
		}
		if results[i] != "hi" {
			t.Fatalf("receiver %d: buf = %q, want %q", i, results[i], "hi")
		}
	}
	if err := e.Control(ctx, RootIdentity, tag, Remove); err != nil {
		t.Fatalf("Control(REMOVE) = %v", err)
	}
}

func TestLateReceiverBlocks(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	tag, err := e.Open(ctx, RootIdentity, PrivateKey, Create, PermAll)
	if err != nil {
		t.Fatalf("Open(CREATE) = %v", err)
	}
	if err := e.Send(ctx, RootIdentity, tag, 0, []byte("x")); err != nil {
		t.Fatalf("Send() = %v", err)
	}

	rctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	buf := make([]byte, 8)
	_, err = e.Receive(rctx, RootIdentity, tag, 0, buf)
	if err != ErrInterrupted {
		t.Fatalf("Receive() after late registration = %v, want ErrInterrupted (should have blocked)", err)
	}
}

func TestAwakeAll(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	tag, err := e.Open(ctx, RootIdentity, PrivateKey, Create, PermAll)
	if err != nil {
		t.Fatalf("Open(CREATE) = %v", err)
	}

	const onLevel0, onLevel31 = 3, 2
	errs := make(chan error, onLevel0+onLevel31)
	for i := 0; i < onLevel0; i++ {
		go func() {
			_, err := e.Receive(ctx, RootIdentity, tag, 0, make([]byte, 8))
			errs <- err
		}()
	}
	for i := 0; i < onLevel31; i++ {
		go func() {
			_, err := e.Receive(ctx, RootIdentity, tag, 31, make([]byte, 8))
			errs <- err
		}()
	}
	waitRegistered(t, e, tag, 0, onLevel0)
	waitRegistered(t, e, tag, 31, onLevel31)

	if err := e.Control(ctx, RootIdentity, tag, AwakeAll); err != nil {
		t.Fatalf("Control(AWAKE_ALL) = %v", err)
	}
	for i := 0; i < onLevel0+onLevel31; i++ {
		if err := <-errs; err != ErrCanceled {
			t.Fatalf("Receive() after awake-all = %v, want ErrCanceled", err)
		}
	}
}

func TestRemoveBusy(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	tag, err := e.Open(ctx, RootIdentity, PrivateKey, Create, PermAll)
	if err != nil {
		t.Fatalf("Open(CREATE) = %v", err)
	}
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _, _ = e.Receive(rctx, RootIdentity, tag, 5, make([]byte, 8)) }()
	waitRegistered(t, e, tag, 5, 1)

	if err := e.Control(ctx, RootIdentity, tag, Remove); err != ErrBusy {
		t.Fatalf("Control(REMOVE) while receiver active = %v, want ErrBusy", err)
	}
}

func TestSharedKeyCollision(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	s1, err := e.Open(ctx, RootIdentity, 5, Create, PermAll)
	if err != nil {
		t.Fatalf("first Open(CREATE) = %v", err)
	}
	if _, err := e.Open(ctx, RootIdentity, 5, Create, PermAll); err != ErrAlready {
		t.Fatalf("second Open(CREATE) = %v, want ErrAlready", err)
	}
	s2, err := e.Open(ctx, RootIdentity, 5, Open, PermAll)
	if err != nil {
		t.Fatalf("Open(OPEN) = %v", err)
	}
	if s1 != s2 {
		t.Fatalf("Open(OPEN) tag = %d, want %d", s2, s1)
	}
}

func TestPermissionGate(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	const creator Identity = 100
	const other Identity = 200
	tag, err := e.Open(ctx, creator, PrivateKey, Create, PermUser)
	if err != nil {
		t.Fatalf("Open(CREATE) = %v", err)
	}
	rctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := e.Receive(rctx, other, tag, 0, make([]byte, 8)); err != ErrDenied {
		t.Fatalf("Receive() by non-creator = %v, want ErrDenied", err)
	}
	rootCtx, cancel2 := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel2()
	if _, err := e.Receive(rootCtx, RootIdentity, tag, 0, make([]byte, 8)); err != ErrInterrupted {
		t.Fatalf("Receive() by root = %v, want ErrInterrupted (it should have blocked, then timed out)", err)
	}
}

func TestOpenPrivateKeyWithOpenCmdIsInvalid(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.Open(context.Background(), RootIdentity, PrivateKey, Open, PermAll); err != ErrInvalid {
		t.Fatalf("Open(OPEN, PrivateKey) = %v, want ErrInvalid", err)
	}
}

func TestNoSpace(t *testing.T) {
	e := New(Config{MaxInstances: 1})
	ctx := context.Background()
	if _, err := e.Open(ctx, RootIdentity, PrivateKey, Create, PermAll); err != nil {
		t.Fatalf("first Open(CREATE) = %v", err)
	}
	if _, err := e.Open(ctx, RootIdentity, 99, Create, PermAll); err != ErrNoSpace {
		t.Fatalf("second Open(CREATE) on full table = %v, want ErrNoSpace", err)
	}
}

func TestZeroLengthMessageDelivers(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	tag, _ := e.Open(ctx, RootIdentity, PrivateKey, Create, PermAll)
	done := make(chan struct{})
	var n int
	var recvErr error
	go func() {
		n, recvErr = e.Receive(ctx, RootIdentity, tag, 0, nil)
		close(done)
	}()
	waitRegistered(t, e, tag, 0, 1)
	if err := e.Send(ctx, RootIdentity, tag, 0, nil); err != nil {
		t.Fatalf("Send(nil) = %v", err)
	}
	<-done
	if recvErr != nil || n != 0 {
		t.Fatalf("Receive() = (%d, %v), want (0, nil)", n, recvErr)
	}
}

func TestBufferTooSmall(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	tag, _ := e.Open(ctx, RootIdentity, PrivateKey, Create, PermAll)
	done := make(chan struct{})
	var recvErr error
	buf := make([]byte, 1)
	go func() {
		_, recvErr = e.Receive(ctx, RootIdentity, tag, 0, buf)
		close(done)
	}()
	waitRegistered(t, e, tag, 0, 1)
	if err := e.Send(ctx, RootIdentity, tag, 0, []byte("ab")); err != nil {
		t.Fatalf("Send() = %v", err)
	}
	<-done
	if recvErr != ErrNoBuffer {
		t.Fatalf("Receive() with short buffer = %v, want ErrNoBuffer", recvErr)
	}
}

func TestSendWithNoReceiversIsDiscardedSuccessfully(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	tag, _ := e.Open(ctx, RootIdentity, PrivateKey, Create, PermAll)
	if err := e.Send(ctx, RootIdentity, tag, 9, []byte("nobody home")); err != nil {
		t.Fatalf("Send() with no receivers = %v, want nil", err)
	}
}

func TestKeysListsSharedInstances(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.Open(ctx, RootIdentity, 11, Create, PermAll); err != nil {
		t.Fatalf("Open(11) = %v", err)
	}
	if _, err := e.Open(ctx, RootIdentity, 22, Create, PermAll); err != nil {
		t.Fatalf("Open(22) = %v", err)
	}
	if _, err := e.Open(ctx, RootIdentity, PrivateKey, Create, PermAll); err != nil {
		t.Fatalf("Open(PrivateKey) = %v", err)
	}
	keys := e.Keys()
	if len(keys) != 2 {
		t.Fatalf("Keys() = %v, want exactly the two shared keys", keys)
	}
	if keys[0] != 11 || keys[1] != 22 {
		t.Fatalf("Keys() = %v, want [11 22]", keys)
	}
}

func TestSendStatsTracksDeliveredAndDiscarded(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	tag, err := e.Open(ctx, RootIdentity, PrivateKey, Create, PermAll)
	require.NoError(t, err)

	require.NoError(t, e.Send(ctx, RootIdentity, tag, 0, []byte("nobody")))
	delivered, discarded := e.SendStats()
	require.Equal(t, int64(0), delivered)
	require.Equal(t, int64(1), discarded)

	done := make(chan struct{})
	go func() {
		_, _ = e.Receive(ctx, RootIdentity, tag, 0, make([]byte, 8))
		close(done)
	}()
	waitRegistered(t, e, tag, 0, 1)
	require.NoError(t, e.Send(ctx, RootIdentity, tag, 0, []byte("hi")))
	<-done
	delivered, discarded = e.SendStats()
	if delivered != 1 || discarded != 1 {
		t.Fatalf("SendStats() = (%d, %d), want (1, 1)", delivered, discarded)
	}
}

// waitRegistered polls until n receivers are registered on tag's level,
// since Receive's registration happens after the goroutine is scheduled.
func waitRegistered(t *testing.T, e *Engine, tag Tag, level int, n int64) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		slot := e.table.Slot(int(tag))
		if slot.SendLock.TryRLock() {
			inst := slot.Get()
			if inst != nil {
				cond := inst.Levels[level].Cond
				count := cond.Count(0) + cond.Count(1)
				slot.SendLock.RUnlock()
				if count >= n {
					return
				}
			} else {
				slot.SendLock.RUnlock()
			}
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d registrations on level %d", n, level)
}
