// Package config loads service configuration.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
)

// Storage backends.
const (
	StorageMemory    = "memory"
	StorageSQLite    = "sqlite"
	StorageMemcached = "memcached"
	StorageNone      = "none"
)

// Config is a service configuration, environment provides defaults for flags.
type Config struct {
	Listen       string        `env:"LISTEN" envDefault:":8080"`
	Origin       string        `env:"ORIGIN" envDefault:"http://localhost:8000/"`
	Manifest     string        `env:"MANIFEST"`
	Storage      string        `env:"STORAGE" envDefault:"memory"`
	SQLitePath   string        `env:"SQLITE_PATH" envDefault:"swcache.db"`
	Memcached    []string      `env:"MEMCACHED" envSeparator:","`
	Snapshot     string        `env:"SNAPSHOT"`
	MaxBytes     int64         `env:"MAX_BYTES"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads environment variables with SWCACHE_ prefix.
func Load() (Config, error) {
	cfg := Config{}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "SWCACHE_"}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

// Bind registers flags that override configuration values.
func (c *Config) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&c.Listen, "listen", c.Listen, "listen address")
	fs.StringVar(&c.Origin, "origin", c.Origin, "origin base URL, also used as manifest scope")
	fs.StringVar(&c.Manifest, "manifest", c.Manifest, "path to manifest YAML, compiled-in manifest is used if empty")
	fs.StringVar(&c.Storage, "storage", c.Storage, "cache storage: memory, sqlite, memcached or none")
	fs.StringVar(&c.SQLitePath, "sqlite-path", c.SQLitePath, "path to SQLite database")
	fs.StringSliceVar(&c.Memcached, "memcached", c.Memcached, "memcached servers")
	fs.StringVar(&c.Snapshot, "snapshot", c.Snapshot, "memory storage snapshot file, restored on start and saved on shutdown")
	fs.Int64Var(&c.MaxBytes, "max-bytes", c.MaxBytes, "memory storage quota of body bytes per store, 0 for unlimited")
	fs.DurationVar(&c.FetchTimeout, "fetch-timeout", c.FetchTimeout, "network request timeout")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level")
}

// Validate checks configuration consistency.
func (c Config) Validate() error {
	switch c.Storage {
	case StorageMemory, StorageSQLite, StorageNone:
	case StorageMemcached:
		if len(c.Memcached) == 0 {
			return fmt.Errorf("memcached servers are required for %s storage", c.Storage)
		}
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}

	return nil
}
