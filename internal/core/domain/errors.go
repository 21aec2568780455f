package domain

import "go.trai.ch/zerr"

var (
	// ErrNotFound is returned by the gateway when the remote store has no
	// value for a (kind, tenant) pair. Callers substitute the kind's
	// documented default; this never surfaces to the user.
	ErrNotFound = zerr.New("entity not found")

	// ErrNetwork is returned for transport failures and 5xx responses.
	ErrNetwork = zerr.New("network error")

	// ErrValidation is returned when the remote store rejects a save.
	ErrValidation = zerr.New("validation error")

	// ErrStaleGeneration marks a response discarded because a newer tenant
	// switch superseded it. It is an internal no-op, never user-visible.
	ErrStaleGeneration = zerr.New("stale generation discarded")

	// ErrNoActiveTenant is returned when an operation requires an active
	// tenant and none has been activated yet.
	ErrNoActiveTenant = zerr.New("no active tenant")

	// ErrUnknownKind is returned when an operation names a kind that was
	// never registered.
	ErrUnknownKind = zerr.New("unknown kind")

	// ErrEngineClosed is returned by operations on a closed engine.
	ErrEngineClosed = zerr.New("engine closed")
)
