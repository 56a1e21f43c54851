// Package instance defines the fixed slot table: each Slot may hold one
// live Instance, guarded by the two independent reader/writer locks
// aos-tag_types.h calls rcv_rwsem and snd_rwsem.
package instance

import (
	"tagengine/internal/epoch"
	"tagengine/internal/rwkill"
)

// Identity is an opaque credential, analogous to aos-tag_types.h's
// kuid_t creator_euid. The permission predicate that compares two
// Identities lives in the tagengine package as a plain same-package
// function (checkPerm) — this package never compares or interprets
// Identity values itself.
type Identity uint32

// Level holds the per-level rendezvous state described in spec.md §3:
// a sender-side mutual-exclusion lock, the epoch condition receivers and
// senders synchronize on, and the single pending message buffer that only
// the lock holder may mutate (invariant I3).
type Level struct {
	SendLock    rwkill.Mutex
	Cond        *epoch.Cond
	PendingMsg  []byte
	PendingSize int
}

// NumLevels is the fixed number of independent levels per instance (L in
// spec.md §6's configuration table).
const NumLevels = 32

// Instance is a single rendezvous object: a key (or PrivateKey if
// unshared), the identity that created it, whether permission checks are
// enforced, NumLevels independent Levels, and the instance-wide AWAKE_ALL
// machinery.
type Instance struct {
	Key        int32
	Creator    Identity
	CheckPerm  bool
	Levels     [NumLevels]Level
	AwakeLock  rwkill.Mutex
	GlobalCond *epoch.Cond
}

// New allocates and initializes an Instance, mirroring aos_tag_get's
// per-level setup loop (mutex_init/init_waitqueue_head/TAG_COND_INIT for
// every level, then the global AWAKE_ALL lock and condition).
func New(key int32, creator Identity, checkPerm bool) *Instance {
	inst := &Instance{
		Key:        key,
		Creator:    creator,
		CheckPerm:  checkPerm,
		GlobalCond: epoch.New(),
	}
	for i := range inst.Levels {
		inst.Levels[i].Cond = epoch.New()
	}
	return inst
}

// Slot is one entry of the fixed instance table. Per invariant I1, its
// inst field is written only while both RecvLock and SendLock are held
// exclusively (open's publication, control(REMOVE)'s retirement); every
// other access holds the read side of exactly one of the two locks. That
// dual-lock discipline is what makes a plain pointer field race-free here
// without any atomics: a writer cannot proceed until both locks report no
// readers of either kind, and a reader of either lock is excluded from
// any concurrent writer by its own lock alone.
type Slot struct {
	RecvLock rwkill.Mutex
	SendLock rwkill.Mutex
	inst     *Instance
}

// Get returns the slot's current instance, or nil if empty/retired. Must
// be called while holding RecvLock or SendLock for reading (or both for
// writing).
func (s *Slot) Get() *Instance { return s.inst }

// Set installs (or clears, with nil) the slot's instance. Must be called
// while holding both RecvLock and SendLock exclusively.
func (s *Slot) Set(inst *Instance) { s.inst = inst }

// Table is the fixed-size array of Slots, one per descriptor index.
type Table struct {
	slots []Slot
}

// NewTable allocates a Table with n slots, all initially empty.
func NewTable(n int) *Table {
	return &Table{slots: make([]Slot, n)}
}

// Len reports the number of slots.
func (t *Table) Len() int { return len(t.slots) }

// Slot returns a pointer to the slot at index i. Panics if i is out of
// range; callers validate the index against Len before calling.
func (t *Table) Slot(i int) *Slot {
	return &t.slots[i]
}
