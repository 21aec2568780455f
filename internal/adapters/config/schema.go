// Package config provides the configuration loader for storesync.
package config

import "time"

// Config holds the engine's tunables. Values come from defaults, then a
// YAML file, then environment variables, each layer overriding the last.
type Config struct {
	// APIBaseURL is the base URL of the remote data gateway.
	APIBaseURL string `env:"STORESYNC_API_BASE_URL"`

	// PushBaseURL is the base URL of the push event stream. Empty disables
	// live updates; the engine then serves from cache only.
	PushBaseURL string `env:"STORESYNC_PUSH_BASE_URL"`

	// SnapshotDBPath is the SQLite file backing the durable snapshot
	// mirror used for instant cold-start rendering.
	SnapshotDBPath string `env:"STORESYNC_SNAPSHOT_DB"`

	// RequestTimeout bounds every single gateway call.
	RequestTimeout time.Duration `env:"STORESYNC_REQUEST_TIMEOUT"`

	// RefreshDebounce is the window during which repeated refresh signals
	// for the same kind coalesce into a single fetch.
	RefreshDebounce time.Duration `env:"STORESYNC_REFRESH_DEBOUNCE"`

	// SaveDebounce is the window used for debounce-class kinds before a
	// save is pushed to the gateway.
	SaveDebounce time.Duration `env:"STORESYNC_SAVE_DEBOUNCE"`

	// JoinDelay postpones joining a tenant's push room after it becomes
	// active, avoiding join/leave churn during rapid tenant navigation.
	JoinDelay time.Duration `env:"STORESYNC_JOIN_DELAY"`

	// SocketFlagTTL expires socket-origin markers that were never consumed
	// by a reconciliation pass.
	SocketFlagTTL time.Duration `env:"STORESYNC_SOCKET_FLAG_TTL"`

	// ReconnectAttempts bounds push stream reconnection tries before the
	// engine falls back to cache-only operation.
	ReconnectAttempts uint `env:"STORESYNC_RECONNECT_ATTEMPTS"`

	// DisableRemoteSave suppresses every save to the gateway. Intended for
	// local development against shared data.
	DisableRemoteSave bool `env:"STORESYNC_DISABLE_REMOTE_SAVE"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SnapshotDBPath:    "storesync_snapshots.db",
		RequestTimeout:    15 * time.Second,
		RefreshDebounce:   500 * time.Millisecond,
		SaveDebounce:      1200 * time.Millisecond,
		JoinDelay:         3500 * time.Millisecond,
		SocketFlagTTL:     2 * time.Second,
		ReconnectAttempts: 5,
	}
}
