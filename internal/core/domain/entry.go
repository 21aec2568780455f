package domain

import (
	"encoding/json"
	"time"
)

// Origin tags how a cache entry's current value came to be.
type Origin string

const (
	// OriginLocal marks a value written by a user edit. Any write not
	// explicitly tagged otherwise is treated as local.
	OriginLocal Origin = "local"
	// OriginSocket marks a value fetched in response to a push event.
	// The reconciler never re-saves a socket-originated write.
	OriginSocket Origin = "socket"
	// OriginInitial marks a value applied during bootstrap or warmed from
	// the durable snapshot mirror.
	OriginInitial Origin = "initial"
)

// CacheEntry is the last-known-good snapshot of one entity for one tenant.
// Entries are uniquely identified by (Kind, TenantID).
type CacheEntry struct {
	Kind         Kind
	TenantID     string
	Value        json.RawMessage
	LastSyncedAt time.Time
	Origin       Origin
}

// RefreshSignal asks the refresh dispatcher to re-fetch one kind for one
// tenant. Signals are ephemeral and consumed once; bursts for the same kind
// are coalesced.
type RefreshSignal struct {
	Kind     Kind
	TenantID string
}

// ChangeEvent is the payload of a server-pushed "data-changed" notification.
type ChangeEvent struct {
	Kind     Kind   `json:"kind"`
	TenantID string `json:"tenantId"`
}

// Bundle is a set of entity values delivered by a bootstrap call.
type Bundle struct {
	TenantID string
	Values   map[Kind]json.RawMessage
}

// Generation is the tenant-switch generation counter. Every in-flight
// response carries the generation current at request time; a response whose
// generation no longer matches the live one is discarded unapplied.
type Generation uint64
