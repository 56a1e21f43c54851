package tagengine

import "context"

// Receive waits for one message on tag's level and copies it into buf,
// implementing spec.md §4.5.2. It returns the number of bytes copied.
//
// Receive registers on both the level's condition and the instance's
// global (awake-all) condition before waiting, so a concurrent
// Control(AwakeAll) can cancel it even though no message ever arrives.
// ctx cancellation unregisters both and returns ErrInterrupted; it never
// leaves a dangling registration (invariant I4).
func (e *Engine) Receive(ctx context.Context, caller Identity, tag Tag, level int, buf []byte) (int, error) {
	if !validTag(tag, e.table.Len()) || !validLevel(level) {
		return 0, ErrInvalid
	}
	slot := e.table.Slot(int(tag))
	if err := slot.RecvLock.RLock(ctx); err != nil {
		return 0, ErrInterrupted
	}
	defer slot.RecvLock.RUnlock()

	inst := slot.Get()
	if inst == nil {
		return 0, ErrGone
	}
	if err := checkPerm(inst, caller); err != nil {
		return 0, err
	}

	lvl := &inst.Levels[level]
	eLvl, wakeLvl := lvl.Cond.Register()
	eGlb, wakeGlb := inst.GlobalCond.Register()

	select {
	case <-wakeLvl:
	case <-wakeGlb:
	case <-ctx.Done():
		lvl.Cond.Unregister(eLvl)
		inst.GlobalCond.Unregister(eGlb)
		return 0, ErrInterrupted
	}

	if inst.GlobalCond.Value(eGlb) {
		lvl.Cond.Unregister(eLvl)
		inst.GlobalCond.Unregister(eGlb)
		return 0, ErrCanceled
	}

	// Unregister the global condition first so a concurrent AwakeAll's
	// drain loop does not wait on a registration this receive no longer
	// needs; level_cond stays registered until after the copy so Send's
	// drain loop (§4.5.3) only sees this receiver finish once the copy
	// is done.
	inst.GlobalCond.Unregister(eGlb)

	size := lvl.PendingSize
	if size == 0 {
		lvl.Cond.Unregister(eLvl)
		return 0, nil
	}
	if buf == nil || len(buf) < size {
		lvl.Cond.Unregister(eLvl)
		return 0, ErrNoBuffer
	}
	n := copy(buf, lvl.PendingMsg[:size])
	lvl.Cond.Unregister(eLvl)
	if n != size {
		return 0, ErrFault
	}
	return n, nil
}
