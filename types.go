package tagengine

import (
	"github.com/rs/zerolog"

	"tagengine/internal/instance"
)

// Identity is the opaque caller credential used by permission checks,
// mirroring the source's kuid_t. The zero value is RootIdentity and
// always passes a permission check, the Go equivalent of the source's
// "caller uid 0" bypass.
type Identity = instance.Identity

// RootIdentity always satisfies a CheckPerm instance's permission gate,
// regardless of who created it.
const RootIdentity Identity = 0

// PrivateKey is the sentinel key value that marks an instance unshared:
// it is never published to the dictionary, and Open(OPEN, PrivateKey, _)
// is always ErrInvalid. The source uses the integer 0 for this purpose;
// this package keeps that literal value for the same reason the source
// gives no special named constant other meaning.
const PrivateKey int32 = 0

// OpenCmd selects Open's mode.
type OpenCmd int

const (
	// Open looks up an existing shared instance by key.
	Open OpenCmd = iota
	// Create allocates a new instance, shared (key != PrivateKey) or
	// private (key == PrivateKey).
	Create
)

// Perm selects whether an instance enforces a creator-only permission
// check.
type Perm int

const (
	// PermAll means any caller may Receive/Send/Control the instance.
	PermAll Perm = iota
	// PermUser means only the creator (or RootIdentity) may
	// Receive/Send/Control the instance.
	PermUser
)

// CtlCmd selects Control's operation.
type CtlCmd int

const (
	// AwakeAll cancels every receiver currently waiting on any level of
	// the instance.
	AwakeAll CtlCmd = iota
	// Remove retires the instance, failing with ErrBusy if any receiver
	// is currently registered.
	Remove
)

// Tag identifies a live (or once-live) instance by its slot index in the
// engine's fixed table. It is returned by Open and passed to every other
// operation.
type Tag int32

// Config holds the engine's fixed, read-only-after-init parameters.
type Config struct {
	// MaxInstances is the size of the fixed instance table (N in
	// spec.md §6). Default 256.
	MaxInstances int
	// MaxMessageSize bounds the payload Send will copy in (M in
	// spec.md §6). Default 4096.
	MaxMessageSize int
	// Logger receives per-operation debug events. The zero value
	// selects a discarding logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns the configuration spec.md §6 names as defaults.
func DefaultConfig() Config {
	return Config{
		MaxInstances:   256,
		MaxMessageSize: 4096,
	}
}

const numLevels = instance.NumLevels
