// Package cache holds the in-memory working set of synchronized values,
// partitioned by tenant, with a write-through mirror into the local snapshot
// store so a later session can render data before the gateway answers.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/merchkit/storesync/internal/core/domain"
	"github.com/merchkit/storesync/internal/core/ports"
)

// Store is the tenant-partitioned value cache. Reads and writes are keyed by
// (kind, tenant); a value written for one tenant is never visible to another.
type Store struct {
	mu      sync.RWMutex
	entries map[string]domain.CacheEntry

	mirror ports.SnapshotStore
	logger ports.Logger
}

func NewStore(mirror ports.SnapshotStore, logger ports.Logger) *Store {
	return &Store{
		entries: make(map[string]domain.CacheEntry),
		mirror:  mirror,
		logger:  logger,
	}
}

func key(kind domain.Kind, tenantID string) string {
	return tenantID + "::" + string(kind)
}

// Get returns the cached entry for (kind, tenant).
func (s *Store) Get(kind domain.Kind, tenantID string) (domain.CacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key(kind, tenantID)]
	return e, ok
}

// Put stores an entry and mirrors it to the snapshot store. Mirror failures
// are logged, not returned: the in-memory write already succeeded and the
// snapshot is only a warm-start optimization.
func (s *Store) Put(ctx context.Context, entry domain.CacheEntry) {
	if entry.LastSyncedAt.IsZero() {
		entry.LastSyncedAt = time.Now()
	}

	s.mu.Lock()
	s.entries[key(entry.Kind, entry.TenantID)] = entry
	s.mu.Unlock()

	if err := s.mirror.Store(ctx, entry.Kind, entry.TenantID, entry.Value, entry.LastSyncedAt); err != nil {
		s.logger.Warn("snapshot mirror write failed",
			"kind", entry.Kind, "tenant", entry.TenantID, "error", err)
	}
}

// WarmFrom loads the tenant's persisted snapshots into the cache, skipping
// kinds that already have a fresher in-memory entry. It returns the entries
// it applied.
func (s *Store) WarmFrom(ctx context.Context, tenantID string) ([]domain.CacheEntry, error) {
	persisted, err := s.mirror.LoadTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	applied := make([]domain.CacheEntry, 0, len(persisted))
	for _, e := range persisted {
		if _, ok := s.entries[key(e.Kind, e.TenantID)]; ok {
			continue
		}
		s.entries[key(e.Kind, e.TenantID)] = e
		applied = append(applied, e)
	}
	return applied, nil
}

// Tenant returns every cached entry for a tenant.
func (s *Store) Tenant(tenantID string) []domain.CacheEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.CacheEntry
	for _, e := range s.entries {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out
}

// ResetAll drops the tenant's in-memory entries. The mirrored snapshots are
// kept so switching back warm-starts from them.
func (s *Store) ResetAll(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if e.TenantID == tenantID {
			delete(s.entries, k)
		}
	}
}

// Purge removes the tenant from memory and from the snapshot mirror.
func (s *Store) Purge(ctx context.Context, tenantID string) error {
	s.ResetAll(tenantID)
	if err := s.mirror.DeleteTenant(ctx, tenantID); err != nil {
		return err
	}
	return nil
}
