package tagengine

import (
	"context"
	"runtime"
)

// Control issues an out-of-band command against tag: AwakeAll cancels
// every receiver currently waiting on any level, and Remove retires the
// instance if no receiver is active. Implements spec.md §4.5.4.
func (e *Engine) Control(ctx context.Context, caller Identity, tag Tag, cmd CtlCmd) error {
	if !validTag(tag, e.table.Len()) {
		return ErrInvalid
	}
	switch cmd {
	case AwakeAll:
		return e.controlAwakeAll(ctx, caller, tag)
	case Remove:
		return e.controlRemove(ctx, caller, tag)
	default:
		return ErrInvalid
	}
}

func (e *Engine) controlAwakeAll(ctx context.Context, caller Identity, tag Tag) error {
	slot := e.table.Slot(int(tag))
	if err := slot.SendLock.RLock(ctx); err != nil {
		return ErrInterrupted
	}
	defer slot.SendLock.RUnlock()

	inst := slot.Get()
	if inst == nil {
		return ErrGone
	}
	if err := checkPerm(inst, caller); err != nil {
		return err
	}

	if err := inst.AwakeLock.Lock(ctx); err != nil {
		return ErrInterrupted
	}
	defer inst.AwakeLock.Unlock()

	epoch := inst.GlobalCond.Flip()
	inst.GlobalCond.Fire(epoch)
	for inst.GlobalCond.Count(epoch) > 0 {
		runtime.Gosched()
	}

	e.log.Debug().Int("slot", int(tag)).Msg("control: awake-all drained")
	return nil
}

func (e *Engine) controlRemove(ctx context.Context, caller Identity, tag Tag) error {
	slot := e.table.Slot(int(tag))
	if !slot.RecvLock.TryLock() {
		return ErrBusy
	}

	if err := slot.SendLock.Lock(ctx); err != nil {
		slot.RecvLock.Unlock()
		return ErrInterrupted
	}

	inst := slot.Get()
	if inst == nil {
		slot.SendLock.Unlock()
		slot.RecvLock.Unlock()
		return ErrGone
	}
	if err := checkPerm(inst, caller); err != nil {
		slot.SendLock.Unlock()
		slot.RecvLock.Unlock()
		return err
	}

	// Zero the creator identity before unpublishing: the slot's memory
	// is about to go back to the free pool and nothing should be able to
	// read a stale creator credential out of it.
	inst.Creator = 0
	slot.Set(nil)
	slot.SendLock.Unlock()
	slot.RecvLock.Unlock()

	if inst.Key != PrivateKey {
		_, _ = e.dict.Delete(context.Background(), inst.Key)
	}
	e.mask.Release(int(tag))
	e.log.Debug().Int("slot", int(tag)).Int32("key", inst.Key).Msg("control: removed instance")
	return nil
}
