// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Yee Contributors

// Package config loads yee configuration from defaults, a YAML file and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/paeltech/yee-sub000/internal/idalloc"
)

// Session backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the full yee configuration.
type Config struct {
	Database   DatabaseConfig   `koanf:"database"`
	HTTP       HTTPConfig       `koanf:"http"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Log        LogConfig        `koanf:"log"`
	Session    SessionConfig    `koanf:"session"`
	Redis      RedisConfig      `koanf:"redis"`
	Allocator  AllocatorConfig  `koanf:"allocator"`
	TokenStore TokenStoreConfig `koanf:"token_store"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// HTTPConfig configures the web server.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// MetricsConfig configures the observability server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"` // json or text
}

// SessionConfig configures session issuing and storage.
type SessionConfig struct {
	Backend       string        `koanf:"backend"`
	TTL           time.Duration `koanf:"ttl"`
	CookieName    string        `koanf:"cookie_name"`
	SecureCookie  bool          `koanf:"secure_cookie"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// RedisConfig configures the redis session backend.
type RedisConfig struct {
	Addr string `koanf:"addr"`
	DB   int    `koanf:"db"`
}

// AllocatorConfig configures join-code allocation.
type AllocatorConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	RetryDelay  time.Duration `koanf:"retry_delay"`
}

// TokenStoreConfig configures where the CLI keeps its session token.
type TokenStoreConfig struct {
	Path string `koanf:"path"`
}

// Defaults returns the compiled-in defaults.
func Defaults() map[string]any {
	return map[string]any{
		"http.addr":              ":8080",
		"metrics.addr":           "127.0.0.1:9100",
		"log.format":             "json",
		"session.backend":        BackendPostgres,
		"session.ttl":            "24h",
		"session.cookie_name":    "yee_session",
		"session.secure_cookie":  true,
		"session.sweep_interval": "1h",
		"redis.addr":             "localhost:6379",
		"redis.db":               0,
		"allocator.max_attempts": idalloc.DefaultMaxAttempts,
		"allocator.retry_delay":  "0s",
	}
}

// LoadOptions control where Load looks.
type LoadOptions struct {
	// File is an explicit config file. It must exist when set.
	File string
	// DefaultFile is read only if it exists.
	DefaultFile string
	// Flags are applied last. Flag names use '-' where keys use '_' and '.'
	// separates sections, e.g. --session.cookie-name.
	Flags *pflag.FlagSet
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Load builds a Config.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	for key, val := range Defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_DEFAULTS_FAILED").With("key", key).Wrap(err)
		}
	}

	path, required := opts.File, true
	if path == "" {
		path, required = opts.DefaultFile, false
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil || required {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, oops.Code("CONFIG_FILE_INVALID").With("path", path).Wrap(err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("CONFIG_FILE_INVALID").With("path", path).Wrap(err)
		}
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if url := getenv("DATABASE_URL"); url != "" {
		if err := k.Set("database.url", url); err != nil {
			return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			return flagKey(f.Name), posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return &cfg, nil
}

func flagKey(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// Validate checks settings every command relies on.
func (c *Config) Validate() error {
	switch c.Session.Backend {
	case BackendPostgres:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return oops.Code("CONFIG_INVALID").With("key", "redis.addr").Errorf("redis backend requires redis.addr")
		}
	default:
		return oops.Code("CONFIG_INVALID").
			With("key", "session.backend").
			Errorf("unknown session backend %q", c.Session.Backend)
	}
	if c.Session.TTL <= 0 {
		return oops.Code("CONFIG_INVALID").With("key", "session.ttl").Errorf("session.ttl must be positive")
	}
	if c.Allocator.MaxAttempts < 1 {
		return oops.Code("CONFIG_INVALID").
			With("key", "allocator.max_attempts").
			Errorf("allocator.max_attempts must be at least 1, got %d", c.Allocator.MaxAttempts)
	}
	if c.Allocator.RetryDelay < 0 {
		return oops.Code("CONFIG_INVALID").With("key", "allocator.retry_delay").Errorf("allocator.retry_delay cannot be negative")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return oops.Code("CONFIG_INVALID").With("key", "log.format").Errorf("log.format must be json or text")
	}
	return nil
}

// RequireDatabase fails when no database URL is configured.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Hint("set DATABASE_URL or database.url in the config file").
			Errorf("database URL is required")
	}
	return nil
}
