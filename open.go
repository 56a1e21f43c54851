package tagengine

import (
	"context"

	"tagengine/internal/instance"
)

// Open resolves or creates an instance, implementing spec.md §4.5.1.
//
// cmd == Create with key == PrivateKey allocates an unshared instance
// visible only through the returned Tag. cmd == Create with a non-private
// key publishes the mapping so later Open(Open, key, _) calls by any
// caller can find it. cmd == Open never creates; it fails with ErrNoKey
// if key is unpublished, and with ErrInvalid if key == PrivateKey (a
// private instance cannot be looked up, only created).
func (e *Engine) Open(ctx context.Context, caller Identity, key int32, cmd OpenCmd, perm Perm) (Tag, error) {
	switch cmd {
	case Open:
		return e.openExisting(key)
	case Create:
		return e.openCreate(ctx, caller, key, perm)
	default:
		return 0, ErrInvalid
	}
}

func (e *Engine) openExisting(key int32) (Tag, error) {
	if key == PrivateKey {
		return 0, ErrInvalid
	}
	slot, ok := e.dict.Lookup(key)
	if !ok {
		return 0, ErrNoKey
	}
	return Tag(slot), nil
}

func (e *Engine) openCreate(ctx context.Context, caller Identity, key int32, perm Perm) (Tag, error) {
	shared := key != PrivateKey
	if shared {
		if _, ok := e.dict.Lookup(key); ok {
			return 0, ErrAlready
		}
	}

	idx, ok := e.mask.Acquire()
	if !ok {
		return 0, ErrNoSpace
	}

	inst := instance.New(key, caller, perm == PermUser)

	if shared {
		inserted, err := e.dict.Insert(ctx, key, int32(idx))
		if err != nil {
			e.mask.Release(idx)
			return 0, ErrInterrupted
		}
		if !inserted {
			e.mask.Release(idx)
			return 0, ErrAlready
		}
	}

	slot := e.table.Slot(idx)
	if err := slot.RecvLock.Lock(ctx); err != nil {
		e.rollbackCreate(shared, key, idx)
		return 0, ErrInterrupted
	}
	if err := slot.SendLock.Lock(ctx); err != nil {
		slot.RecvLock.Unlock()
		e.rollbackCreate(shared, key, idx)
		return 0, ErrInterrupted
	}
	slot.Set(inst)
	slot.SendLock.Unlock()
	slot.RecvLock.Unlock()

	e.log.Debug().Int32("key", key).Int("slot", idx).Msg("open: created instance")
	return Tag(idx), nil
}

// rollbackCreate undoes the dictionary publish and slot allocation of a
// CREATE that was interrupted before the instance became receivable —
// the "non-recoverable region" spec.md §5 calls out by name.
func (e *Engine) rollbackCreate(shared bool, key int32, idx int) {
	if shared {
		_, _ = e.dict.Delete(context.Background(), key)
	}
	e.mask.Release(idx)
}
