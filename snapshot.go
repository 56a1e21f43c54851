package tagengine

import (
	"fmt"
	"io"
)

// SnapshotRecord is one (slot, level) line of a Snapshot, per spec.md
// §4.5.5 and §6's stream format.
type SnapshotRecord struct {
	Slot             int
	Key              int32
	Creator          Identity
	Level            int
	WaitingReceivers int64
}

// Snapshot walks every slot and returns one record per level of every
// live instance it can read without blocking. A slot currently being
// mutated (Control(Remove) or Open's publication step holding the
// send-side write lock) is skipped entirely rather than waited on —
// Snapshot is documented as approximate, never linearizable, per
// spec.md §4.5.5.
func (e *Engine) Snapshot() []SnapshotRecord {
	var out []SnapshotRecord
	for i := 0; i < e.table.Len(); i++ {
		slot := e.table.Slot(i)
		if !slot.SendLock.TryRLock() {
			continue
		}
		inst := slot.Get()
		if inst == nil {
			slot.SendLock.RUnlock()
			continue
		}
		for lvl := 0; lvl < numLevels; lvl++ {
			cond := inst.Levels[lvl].Cond
			out = append(out, SnapshotRecord{
				Slot:             i,
				Key:              inst.Key,
				Creator:          inst.Creator,
				Level:            lvl,
				WaitingReceivers: cond.Count(0) + cond.Count(1),
			})
		}
		slot.SendLock.RUnlock()
	}
	return out
}

// WriteSnapshotStream renders records in the tab-separated wire format
// spec.md §6 defines: one "slot\tkey\tcreator\tlevel\twaiting\n" line per
// record, in the slot-major, level-minor order Snapshot already produces.
func WriteSnapshotStream(w io.Writer, records []SnapshotRecord) error {
	for _, r := range records {
		if _, err := fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\n", r.Slot, r.Key, r.Creator, r.Level, r.WaitingReceivers); err != nil {
			return err
		}
	}
	return nil
}
