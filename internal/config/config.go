// Package config loads client settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/contextsync/internal/migration"
	"github.com/roach88/contextsync/internal/relay"
	"github.com/roach88/contextsync/internal/session"
)

// Config holds every tunable of the sync client.
type Config struct {
	RelayHost   string `env:"CONTEXTSYNC_RELAY_HOST"   envDefault:"localhost:1999"`
	RelaySecure bool   `env:"CONTEXTSYNC_RELAY_SECURE"`
	RoomKind    string `env:"CONTEXTSYNC_ROOM_KIND"    envDefault:"main"`

	SharedStoreURL string `env:"CONTEXTSYNC_SHARED_STORE_URL" envDefault:"http://localhost:8787"`
	DBPath         string `env:"CONTEXTSYNC_DB"               envDefault:"contextsync.db"`

	ConnectTimeout       time.Duration `env:"CONTEXTSYNC_CONNECT_TIMEOUT"        envDefault:"10s"`
	MaxReconnectAttempts int           `env:"CONTEXTSYNC_MAX_RECONNECT_ATTEMPTS" envDefault:"5"`
	CleanupDelay         time.Duration `env:"CONTEXTSYNC_CLEANUP_DELAY"          envDefault:"48h"`

	LogLevel slog.Level `env:"CONTEXTSYNC_LOG_LEVEL" envDefault:"info"`
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		RelayHost:            "localhost:1999",
		RoomKind:             relay.DefaultRoomKind,
		SharedStoreURL:       "http://localhost:8787",
		DBPath:               "contextsync.db",
		ConnectTimeout:       session.DefaultConnectTimeout,
		MaxReconnectAttempts: session.DefaultMaxReconnectAttempts,
		CleanupDelay:         migration.DefaultCleanupDelay,
		LogLevel:             slog.LevelInfo,
	}
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if err := relay.ValidateHost(c.RelayHost); err != nil {
		errs = append(errs, fmt.Errorf("CONTEXTSYNC_RELAY_HOST: %w", err))
	}
	if c.RoomKind == "" {
		errs = append(errs, errors.New("CONTEXTSYNC_ROOM_KIND: must not be empty"))
	}
	if c.SharedStoreURL == "" {
		errs = append(errs, errors.New("CONTEXTSYNC_SHARED_STORE_URL: must not be empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("CONTEXTSYNC_DB: must not be empty"))
	}
	if c.ConnectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("CONTEXTSYNC_CONNECT_TIMEOUT: must be positive, got %s", c.ConnectTimeout))
	}
	if c.MaxReconnectAttempts <= 0 {
		errs = append(errs, fmt.Errorf("CONTEXTSYNC_MAX_RECONNECT_ATTEMPTS: must be positive, got %d", c.MaxReconnectAttempts))
	}
	if c.CleanupDelay <= 0 {
		errs = append(errs, fmt.Errorf("CONTEXTSYNC_CLEANUP_DELAY: must be positive, got %s", c.CleanupDelay))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// RelayOptions returns the provider options for this configuration.
func (c Config) RelayOptions(logger *slog.Logger) []relay.Option {
	opts := []relay.Option{
		relay.WithHost(c.RelayHost),
		relay.WithRoomKind(c.RoomKind),
		relay.WithSecure(c.RelaySecure),
	}
	if logger != nil {
		opts = append(opts, relay.WithLogger(logger))
	}
	return opts
}

// SessionOptions returns the manager options for this configuration.
func (c Config) SessionOptions(logger *slog.Logger) []session.Option {
	opts := []session.Option{
		session.WithConnectTimeout(c.ConnectTimeout),
		session.WithMaxReconnectAttempts(c.MaxReconnectAttempts),
	}
	if logger != nil {
		opts = append(opts, session.WithLogger(logger))
	}
	return opts
}
