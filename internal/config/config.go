// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package config loads Tollgate configuration from defaults, an optional YAML
// file, command-line flags and environment secrets, in that order.
package config

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/tollgate/tollgate/internal/auth"
	"github.com/tollgate/tollgate/internal/auth/token"
	"github.com/tollgate/tollgate/internal/logging"
	"github.com/tollgate/tollgate/internal/store"
	"github.com/tollgate/tollgate/internal/xdg"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the complete runtime configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Store    StoreConfig    `koanf:"store"`
	Database DatabaseConfig `koanf:"database"`
	Tokens   TokenConfig    `koanf:"tokens"`

	// Secrets never come from files or flags.
	Secrets Secrets `koanf:"-"`
}

// HTTPConfig configures the REST listener.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// StoreConfig selects the account store.
type StoreConfig struct {
	Driver string `koanf:"driver"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	AutoMigrate    bool          `koanf:"auto_migrate"`
}

// TokenConfig holds token lifetimes.
type TokenConfig struct {
	AccessTTL  time.Duration `koanf:"access_ttl"`
	RefreshTTL time.Duration `koanf:"refresh_ttl"`
	ResetTTL   time.Duration `koanf:"reset_ttl"`
}

// Secrets are read from the environment only.
type Secrets struct {
	DatabaseURL string `env:"DATABASE_URL"`
	TokenSecret string `env:"TOLLGATE_TOKEN_SECRET"`
	APIKey      string `env:"TOLLGATE_API_KEY"`
}

// LogValue reports which secrets are set without their values.
func (s Secrets) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("database_url_set", s.DatabaseURL != ""),
		slog.Bool("token_secret_set", s.TokenSecret != ""),
		slog.Bool("api_key_set", s.APIKey != ""),
	)
}

// defaults are the lowest configuration layer.
func defaults() map[string]any {
	ttls := auth.DefaultTokenTTLs()
	return map[string]any{
		"http.addr":                ":8080",
		"metrics.addr":             "127.0.0.1:9100",
		"log.format":               logging.FormatJSON,
		"log.level":                "info",
		"store.driver":             DriverPostgres,
		"database.connect_timeout": store.DefaultConnectTimeout,
		"database.auto_migrate":    false,
		"tokens.access_ttl":        ttls.Access,
		"tokens.refresh_ttl":       ttls.Refresh,
		"tokens.reset_ttl":         ttls.PasswordReset,
	}
}

// Default returns the built-in defaults plus environment secrets. It never
// reads a config file or flags.
func Default() *Config {
	cfg, err := load("", nil)
	if err != nil {
		// Defaults always unmarshal.
		panic(err)
	}
	return cfg
}

// Load builds the configuration. An empty path falls back to
// config.yaml in the XDG config directory when that file exists. flags may
// be nil to skip the flag layer; only flags registered with RegisterFlags
// are considered. Load does not validate; call Validate.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if path == "" {
		found, err := xdg.DefaultConfigFile()
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").Wrap(err)
		}
		path = found
	}
	return load(path, flags)
}

func load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "unmarshal").Wrap(err)
	}
	if err := env.Parse(&cfg.Secrets); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("layer", "env").Wrap(err)
	}
	return &cfg, nil
}

// Validate checks the configuration needed to serve traffic.
func (c *Config) Validate() error {
	if c.Secrets.TokenSecret == "" {
		return invalid("TOLLGATE_TOKEN_SECRET", "token secret is required")
	}
	if len(c.Secrets.TokenSecret) < token.MinSecretLength {
		return invalid("TOLLGATE_TOKEN_SECRET", "token secret must be at least %d bytes", token.MinSecretLength)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case logging.FormatJSON, logging.FormatText:
	default:
		return invalid("log.format", "unknown log format %q", c.Log.Format)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Secrets.DatabaseURL == "" {
			return invalid("DATABASE_URL", "database URL is required for the postgres store")
		}
	default:
		return invalid("store.driver", "unknown store driver %q", c.Store.Driver)
	}
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "http address is required")
	}
	ttls := []struct {
		key   string
		value time.Duration
	}{
		{"tokens.access_ttl", c.Tokens.AccessTTL},
		{"tokens.refresh_ttl", c.Tokens.RefreshTTL},
		{"tokens.reset_ttl", c.Tokens.ResetTTL},
		{"database.connect_timeout", c.Database.ConnectTimeout},
	}
	for _, ttl := range ttls {
		if ttl.value <= 0 {
			return invalid(ttl.key, "%s must be positive", ttl.key)
		}
	}
	return nil
}

// TokenTTLs returns the token lifetimes for the auth service.
func (c *Config) TokenTTLs() auth.TokenTTLs {
	return auth.TokenTTLs{
		Access:        c.Tokens.AccessTTL,
		Refresh:       c.Tokens.RefreshTTL,
		PasswordReset: c.Tokens.ResetTTL,
	}
}

func invalid(field, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Errorf(format, args...)
}
