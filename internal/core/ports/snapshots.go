package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/merchkit/storesync/internal/core/domain"
)

// SnapshotStore is the durable local mirror of last-known-good values.
// Every successful cache put is mirrored here so a restart can render from
// the last snapshot before any network round-trip completes.
//
//go:generate mockgen -source=snapshots.go -destination=mocks/mock_snapshots.go -package=mocks
type SnapshotStore interface {
	// Load returns the stored snapshot for a (kind, tenant) pair.
	// Returns domain.ErrNotFound if none exists.
	Load(ctx context.Context, kind domain.Kind, tenantID string) (json.RawMessage, time.Time, error)

	// LoadTenant returns every stored snapshot for a tenant.
	LoadTenant(ctx context.Context, tenantID string) ([]domain.CacheEntry, error)

	// Store upserts one snapshot.
	Store(ctx context.Context, kind domain.Kind, tenantID string, value json.RawMessage, syncedAt time.Time) error

	// DeleteTenant removes every snapshot for a tenant.
	DeleteTenant(ctx context.Context, tenantID string) error

	// Close releases the underlying storage.
	Close() error
}
