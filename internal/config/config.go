// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads holoauth settings. Values resolve in order: flag
// defaults, then the YAML file, then flags set on the command line.
// Secrets are read from the environment only.
package config

import (
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/logging"
)

// Environment variables holding secrets.
const (
	EnvJWTSecret     = "HOLOAUTH_JWT_SECRET"
	EnvDatabaseURL   = "DATABASE_URL"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvEmailToken    = "HOLOAUTH_EMAIL_TOKEN"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the full service configuration.
type Config struct {
	HTTP    HTTPConfig    `koanf:"http"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	Token   TokenConfig   `koanf:"token"`
	Store   StoreConfig   `koanf:"store"`
	Redis   RedisConfig   `koanf:"redis"`
	Email   EmailConfig   `koanf:"email"`

	Secrets Secrets `koanf:"-"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr           string   `koanf:"addr"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// TokenConfig configures session tokens and the cookie carrying them.
type TokenConfig struct {
	TTL        time.Duration `koanf:"ttl"`
	CookieName string        `koanf:"cookie_name"`
	Issuer     string        `koanf:"issuer"`
}

// StoreConfig selects a backend per store.
type StoreConfig struct {
	Users  string `koanf:"users"`
	Codes  string `koanf:"codes"`
	Banned string `koanf:"banned"`
	// PurgeInterval is how often expired bans are deleted from postgres.
	// Zero disables purging.
	PurgeInterval time.Duration `koanf:"purge_interval"`
}

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr string `koanf:"addr"`
	DB   int    `koanf:"db"`
	// ChallengeTTL expires pending 2FA challenges. Zero keeps them until
	// verified or replaced.
	ChallengeTTL time.Duration `koanf:"challenge_ttl"`
}

// EmailConfig configures 2FA code delivery. When disabled, codes are
// written to the debug log.
type EmailConfig struct {
	Enabled bool          `koanf:"enabled"`
	BaseURL string        `koanf:"base_url"`
	Sender  string        `koanf:"sender"`
	Subject string        `koanf:"subject"`
	Timeout time.Duration `koanf:"timeout"`
}

// Secrets come from the environment and are never printed.
type Secrets struct {
	JWTSecret     string
	DatabaseURL   string
	RedisPassword string
	EmailToken    string
}

// Default values for flags.
const (
	DefaultHTTPAddr      = "127.0.0.1:3000"
	DefaultMetricsAddr   = "127.0.0.1:9100"
	DefaultLogFormat     = "json"
	DefaultLogLevel      = "info"
	DefaultCookieName    = "jwt"
	DefaultRedisAddr     = "127.0.0.1:6379"
	DefaultPurgeInterval = time.Hour
)

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"http-addr":           "http.addr",
	"allowed-origins":     "http.allowed_origins",
	"metrics-addr":        "metrics.addr",
	"log-format":          "log.format",
	"log-level":           "log.level",
	"token-ttl":           "token.ttl",
	"cookie-name":         "token.cookie_name",
	"token-issuer":        "token.issuer",
	"user-store":          "store.users",
	"code-store":          "store.codes",
	"banned-store":        "store.banned",
	"purge-interval":      "store.purge_interval",
	"redis-addr":          "redis.addr",
	"redis-db":            "redis.db",
	"redis-challenge-ttl": "redis.challenge_ttl",
	"email-enabled":       "email.enabled",
	"email-base-url":      "email.base_url",
	"email-sender":        "email.sender",
	"email-subject":       "email.subject",
	"email-timeout":       "email.timeout",
}

// RegisterFlags adds every config flag, with its default, to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("http-addr", DefaultHTTPAddr, "API listen address")
	fs.StringSlice("allowed-origins", nil, "CORS origin glob patterns")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.Duration("token-ttl", auth.DefaultTokenTTL, "session token lifetime")
	fs.String("cookie-name", DefaultCookieName, "session cookie name")
	fs.String("token-issuer", "", "session token issuer (empty = none)")
	fs.String("user-store", BackendMemory, "user store backend (memory or postgres)")
	fs.String("code-store", BackendMemory, "2FA code store backend (memory or redis)")
	fs.String("banned-store", BackendMemory, "banned token store backend (memory, redis or postgres)")
	fs.Duration("purge-interval", DefaultPurgeInterval, "expired ban purge interval for postgres (0 = disabled)")
	fs.String("redis-addr", DefaultRedisAddr, "Redis address")
	fs.Int("redis-db", 0, "Redis database number")
	fs.Duration("redis-challenge-ttl", 0, "pending 2FA challenge lifetime in Redis (0 = no expiry)")
	fs.Bool("email-enabled", false, "deliver 2FA codes by email instead of the debug log")
	fs.String("email-base-url", "", "email gateway base URL")
	fs.String("email-sender", "", "email sender address")
	fs.String("email-subject", "", "email subject line")
	fs.Duration("email-timeout", 10*time.Second, "email gateway request timeout")
}

// Load resolves the configuration. path may be empty. fs must have been
// passed to RegisterFlags. getenv supplies secrets.
func Load(path string, fs *pflag.FlagSet, getenv func(string) string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}

	if getenv != nil {
		cfg.Secrets = Secrets{
			JWTSecret:     getenv(EnvJWTSecret),
			DatabaseURL:   getenv(EnvDatabaseURL),
			RedisPassword: getenv(EnvRedisPassword),
			EmailToken:    getenv(EnvEmailToken),
		}
	}
	return &cfg, nil
}

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
}

// Validate checks the configuration, including required secrets for the
// selected backends.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return invalid("http.addr", "http.addr is required")
	}
	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		return invalid("log.format", "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "log.level %q is not a known level", c.Log.Level)
	}
	if c.Token.TTL <= 0 {
		return invalid("token.ttl", "token.ttl must be positive")
	}
	if len(c.Secrets.JWTSecret) < auth.MinTokenSecretLength {
		return invalid("secrets.jwt", "%s must be at least %d bytes", EnvJWTSecret, auth.MinTokenSecretLength)
	}

	if !slices.Contains([]string{BackendMemory, BackendPostgres}, c.Store.Users) {
		return invalid("store.users", "store.users must be 'memory' or 'postgres', got %q", c.Store.Users)
	}
	if !slices.Contains([]string{BackendMemory, BackendRedis}, c.Store.Codes) {
		return invalid("store.codes", "store.codes must be 'memory' or 'redis', got %q", c.Store.Codes)
	}
	if !slices.Contains([]string{BackendMemory, BackendRedis, BackendPostgres}, c.Store.Banned) {
		return invalid("store.banned", "store.banned must be 'memory', 'redis' or 'postgres', got %q", c.Store.Banned)
	}
	if c.Store.PurgeInterval < 0 {
		return invalid("store.purge_interval", "store.purge_interval must not be negative")
	}
	if c.UsesPostgres() && c.Secrets.DatabaseURL == "" {
		return invalid("secrets.database_url", "%s is required for the postgres backend", EnvDatabaseURL)
	}
	if c.UsesRedis() && strings.TrimSpace(c.Redis.Addr) == "" {
		return invalid("redis.addr", "redis.addr is required for the redis backend")
	}
	if c.Redis.ChallengeTTL < 0 {
		return invalid("redis.challenge_ttl", "redis.challenge_ttl must not be negative")
	}

	if c.Email.Enabled {
		if strings.TrimSpace(c.Email.BaseURL) == "" {
			return invalid("email.base_url", "email.base_url is required when email is enabled")
		}
		if _, err := auth.ParseEmail(c.Email.Sender); err != nil {
			return invalid("email.sender", "email.sender must be a valid address")
		}
		if c.Secrets.EmailToken == "" {
			return invalid("secrets.email_token", "%s is required when email is enabled", EnvEmailToken)
		}
	}
	return nil
}

// UsesPostgres reports whether any store is backed by PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return c.Store.Users == BackendPostgres || c.Store.Banned == BackendPostgres
}

// UsesRedis reports whether any store is backed by Redis.
func (c *Config) UsesRedis() bool {
	return c.Store.Codes == BackendRedis || c.Store.Banned == BackendRedis
}
