package tagengine

import (
	"context"
	"runtime"
)

// Send publishes one message on tag's level, implementing spec.md
// §4.5.3. It returns nil both when the message was delivered to at least
// one receiver and when there were no registered receivers to deliver
// to ("discarded") — the source makes the same two outcomes
// indistinguishable to the caller; the delivered/discarded counters
// reported by SendStats are the way to observe the difference (spec.md §9's first open
// question).
func (e *Engine) Send(ctx context.Context, caller Identity, tag Tag, level int, msg []byte) error {
	if !validTag(tag, e.table.Len()) || !validLevel(level) {
		return ErrInvalid
	}
	if len(msg) > e.cfg.MaxMessageSize {
		return ErrInvalid
	}
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

	var copied []byte
	if len(msg) > 0 {
		copied = make([]byte, len(msg))
		copy(copied, msg)
	}

	lvl := &inst.Levels[level]
	if err := lvl.SendLock.Lock(ctx); err != nil {
		return ErrInterrupted
	}
	defer lvl.SendLock.Unlock()

	epoch := lvl.Cond.Flip()
	if lvl.Cond.Count(epoch) == 0 {
		e.discarded.Add(1)
		e.log.Debug().Int("slot", int(tag)).Int("level", level).Msg("send: no registered receivers, discarded")
		return nil
	}

	lvl.PendingMsg = copied
	lvl.PendingSize = len(copied)
	lvl.Cond.Fire(epoch)

	for lvl.Cond.Count(epoch) > 0 {
		runtime.Gosched()
	}

	lvl.PendingMsg = nil
	lvl.PendingSize = 0
	e.delivered.Add(1)
	return nil
}
