package tagengine

import "errors"

// Sentinel errors returned by Engine operations, one per outcome in
// spec.md §7's taxonomy. Callers compare with errors.Is; the engine
// itself never wraps these with additional context, matching
// aos-tag_syscalls.c's habit of returning a bare negative errno.
var (
	// ErrInvalid means the caller passed an invalid argument: a bad
	// slot, level, command, or key/command combination.
	ErrInvalid = errors.New("tagengine: invalid argument")

	// ErrNoKey means Open(OPEN, key) found no instance for key.
	ErrNoKey = errors.New("tagengine: no instance for key")

	// ErrAlready means Open(CREATE, key) found key already registered.
	ErrAlready = errors.New("tagengine: key already exists")

	// ErrNoSpace means the instance table has no free slot.
	ErrNoSpace = errors.New("tagengine: no free slot")

	// ErrNoMem means an allocation (dictionary insert, message copy)
	// failed. No Engine operation currently returns it: Go's allocator
	// does not fail synchronously, and a failed dictionary insert
	// surfaces as ErrAlready or ErrInterrupted. The error is kept so callers written against the operation surface in
	// spec.md §6 compile against every documented outcome.
	ErrNoMem = errors.New("tagengine: allocation failed")

	// ErrInterrupted means a killable wait was aborted by its context
	// before the operation completed; all locks and registrations were
	// released before returning.
	ErrInterrupted = errors.New("tagengine: interrupted")

	// ErrGone means the slot is valid but no instance is currently
	// installed there (removed, or never created).
	ErrGone = errors.New("tagengine: instance is gone")

	// ErrDenied means the caller failed the instance's permission check.
	ErrDenied = errors.New("tagengine: permission denied")

	// ErrCanceled means a Receive was woken by an AwakeAll rather than a
	// delivered message.
	ErrCanceled = errors.New("tagengine: receive canceled by awake-all")

	// ErrNoBuffer means a pending message was too large for the
	// caller-supplied buffer; the message is left untouched for no one
	// (the source never re-queues — the rendezvous is still consumed by
	// this call's registration, matching aos_tag_rcv's behavior).
	ErrNoBuffer = errors.New("tagengine: buffer too small")

	// ErrFault means a data copy into or out of a caller buffer failed.
	ErrFault = errors.New("tagengine: data copy failed")

	// ErrBusy means Control(REMOVE) found at least one active receiver
	// and declined to remove the instance.
	ErrBusy = errors.New("tagengine: instance busy")
)
