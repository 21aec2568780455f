// Package localstore provides the SQLite-backed durable snapshot mirror.
// Every successful cache put lands here so a restart renders from the last
// good snapshot before any network round-trip completes.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"go.trai.ch/zerr"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/merchkit/storesync/internal/core/domain"
	"github.com/merchkit/storesync/internal/core/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	tenant_id    TEXT NOT NULL,
	kind         TEXT NOT NULL,
	value        BLOB NOT NULL,
	synced_at_ms INTEGER NOT NULL,
	PRIMARY KEY (tenant_id, kind)
);
`

// Store persists entity snapshots in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ ports.SnapshotStore = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite snapshot store and ensures the schema exists.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, zerr.New("snapshot store path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to open snapshot db")
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, zerr.Wrap(err, "failed to ping snapshot db")
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, zerr.Wrap(err, "failed to create snapshot schema")
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load returns the stored snapshot for a (kind, tenant) pair.
func (s *Store) Load(ctx context.Context, kind domain.Kind, tenantID string) (json.RawMessage, time.Time, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT value, synced_at_ms FROM snapshots WHERE tenant_id = ? AND kind = ?`,
		tenantID, string(kind),
	)

	var value []byte
	var syncedAt int64
	if err := row.Scan(&value, &syncedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, domain.ErrNotFound
		}
		return nil, time.Time{}, zerr.Wrap(err, "failed to load snapshot")
	}
	return value, fromMillis(syncedAt), nil
}

// LoadTenant returns every stored snapshot for a tenant.
func (s *Store) LoadTenant(ctx context.Context, tenantID string) ([]domain.CacheEntry, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT kind, value, synced_at_ms FROM snapshots WHERE tenant_id = ? ORDER BY kind`,
		tenantID,
	)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to query tenant snapshots")
	}
	defer rows.Close() //nolint:errcheck // Best effort close in defer

	var entries []domain.CacheEntry
	for rows.Next() {
		var kind string
		var value []byte
		var syncedAt int64
		if err := rows.Scan(&kind, &value, &syncedAt); err != nil {
			return nil, zerr.Wrap(err, "failed to scan snapshot row")
		}
		entries = append(entries, domain.CacheEntry{
			Kind:         domain.Kind(kind),
			TenantID:     tenantID,
			Value:        value,
			LastSyncedAt: fromMillis(syncedAt),
			Origin:       domain.OriginInitial,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, zerr.Wrap(err, "failed to iterate snapshot rows")
	}
	return entries, nil
}

// Store upserts one snapshot.
func (s *Store) Store(ctx context.Context, kind domain.Kind, tenantID string, value json.RawMessage, syncedAt time.Time) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO snapshots (tenant_id, kind, value, synced_at_ms) VALUES (?, ?, ?, ?)
		 ON CONFLICT (tenant_id, kind) DO UPDATE SET value = excluded.value, synced_at_ms = excluded.synced_at_ms`,
		tenantID, string(kind), []byte(value), toMillis(syncedAt),
	)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to store snapshot"), "kind", string(kind))
	}
	return nil
}

// DeleteTenant removes every snapshot for a tenant.
func (s *Store) DeleteTenant(ctx context.Context, tenantID string) error {
	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM snapshots WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to delete tenant snapshots"), "tenant", tenantID)
	}
	return nil
}
