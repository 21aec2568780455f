package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// DefaultFilename is the config file looked up when no explicit path is given.
const DefaultFilename = "storesync.yaml"

// fileConfig is the YAML representation. Durations are strings in Go
// duration syntax ("500ms", "15s"); absent fields keep the previous layer's
// value.
type fileConfig struct {
	APIBaseURL        *string `yaml:"api_base_url"`
	PushBaseURL       *string `yaml:"push_base_url"`
	SnapshotDBPath    *string `yaml:"snapshot_db_path"`
	RequestTimeout    *string `yaml:"request_timeout"`
	RefreshDebounce   *string `yaml:"refresh_debounce"`
	SaveDebounce      *string `yaml:"save_debounce"`
	JoinDelay         *string `yaml:"join_delay"`
	SocketFlagTTL     *string `yaml:"socket_flag_ttl"`
	ReconnectAttempts *uint   `yaml:"reconnect_attempts"`
	DisableRemoteSave *bool   `yaml:"disable_remote_save"`
}

// Load builds the effective configuration: defaults, overlaid with the YAML
// file at path (a missing file is not an error), overlaid with environment
// variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultFilename
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Defaults plus env only.
	case err != nil:
		return Config{}, zerr.Wrap(err, "failed to read config file")
	default:
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, zerr.Wrap(err, "failed to parse config file")
		}
		if err := fc.apply(&cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, zerr.Wrap(err, "failed to parse environment")
	}

	return cfg, nil
}

func (fc *fileConfig) apply(cfg *Config) error {
	if fc.APIBaseURL != nil {
		cfg.APIBaseURL = *fc.APIBaseURL
	}
	if fc.PushBaseURL != nil {
		cfg.PushBaseURL = *fc.PushBaseURL
	}
	if fc.SnapshotDBPath != nil {
		cfg.SnapshotDBPath = *fc.SnapshotDBPath
	}
	if fc.ReconnectAttempts != nil {
		cfg.ReconnectAttempts = *fc.ReconnectAttempts
	}
	if fc.DisableRemoteSave != nil {
		cfg.DisableRemoteSave = *fc.DisableRemoteSave
	}

	durations := []struct {
		raw  *string
		dst  *time.Duration
		name string
	}{
		{fc.RequestTimeout, &cfg.RequestTimeout, "request_timeout"},
		{fc.RefreshDebounce, &cfg.RefreshDebounce, "refresh_debounce"},
		{fc.SaveDebounce, &cfg.SaveDebounce, "save_debounce"},
		{fc.JoinDelay, &cfg.JoinDelay, "join_delay"},
		{fc.SocketFlagTTL, &cfg.SocketFlagTTL, "socket_flag_ttl"},
	}
	for _, d := range durations {
		if d.raw == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.raw)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "invalid duration in config file"), "field", d.name)
		}
		*d.dst = parsed
	}

	return nil
}
