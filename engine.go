package tagengine

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"tagengine/internal/bitmask"
	"tagengine/internal/dict"
	"tagengine/internal/instance"
	"tagengine/internal/logging"
)

// Engine is the tag-based rendezvous service: a fixed instance table, the
// bitmask that allocates its slots, and the dictionary that publishes
// shared keys to slot indices. It composes the four primitives of
// spec.md §2 into the Open/Receive/Send/Control operations of §4.5.
//
// An Engine is safe for concurrent use by multiple goroutines.
type Engine struct {
	cfg   Config
	table *instance.Table
	mask  *bitmask.Mask
	dict  *dict.Dict
	log   zerolog.Logger

	delivered atomic.Int64
	discarded atomic.Int64
}

// New builds an Engine from cfg, filling in spec.md §6's defaults for any
// zero field.
func New(cfg Config) *Engine {
	if cfg.MaxInstances <= 0 {
		cfg.MaxInstances = DefaultConfig().MaxInstances
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultConfig().MaxMessageSize
	}
	log := logging.Discard()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	return &Engine{
		cfg:   cfg,
		table: instance.NewTable(cfg.MaxInstances),
		mask:  bitmask.New(cfg.MaxInstances),
		dict:  dict.New(),
		log:   log,
	}
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Keys returns every currently-shared key, in ascending order. This is
// the Go counterpart of the source's splay_int_bfs bulk export, restored
// per SPEC_FULL.md §11 — the distilled spec has no equivalent operation,
// but the original driver used it for module-unload bookkeeping.
func (e *Engine) Keys() []int32 { return e.dict.Keys() }

// SendStats returns the cumulative count of Send calls that delivered to
// at least one receiver, and the count that found no registered
// receivers and discarded the message — the observability spec.md §9's
// first open question invites in place of changing Send's return value.
func (e *Engine) SendStats() (delivered, discarded int64) {
	return e.delivered.Load(), e.discarded.Load()
}

func validTag(t Tag, n int) bool {
	return t >= 0 && int(t) < n
}

func validLevel(level int) bool {
	return level >= 0 && level < numLevels
}

// checkPerm implements the creator-or-root gate shared by receive, send,
// and control, per spec.md §4.5.2's "check_permissions and caller !=
// creator and caller != root".
func checkPerm(inst *instance.Instance, caller Identity) error {
	if inst.CheckPerm && caller != inst.Creator && caller != RootIdentity {
		return ErrDenied
	}
	return nil
}
