// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. A '.env' file in the
working directory is loaded first when present (development convenience).

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, Auth) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DevSessionSecret is the placeholder used by local environments when no
// secret is configured. Every other environment rejects it.
const DevSessionSecret = "insecure-dev-session-secret-do-not-use-in-production"

// Local environments. Any other ENVIRONMENT value is treated as production.
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
)

// minSessionSecretLength is the shortest secret accepted in production.
const minSessionSecretLength = 32

// Session backend identifiers.
const (
	SessionBackendPostgres = "postgres"
	SessionBackendRedis    = "redis"
	SessionBackendMemory   = "memory"
)

// # Configuration Schema

// Config holds all runtime configuration for the PayHub API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis). Only required by the redis session backend.
	RedisURL string `env:"REDIS_URL"`

	// Session persistence and cookie protection
	Session SessionConfig `envPrefix:"SESSION_"`

	// StoreTimeout bounds every user directory and session store call.
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	// HashConcurrency bounds the number of simultaneous scrypt computations.
	// Zero means one per CPU.
	HashConcurrency int `env:"HASH_CONCURRENCY" envDefault:"0"`

	// Federated sign-in (OpenID Connect). Disabled when IssuerURL is empty.
	OIDC OIDCConfig `envPrefix:"OIDC_"`

	// Cross-Origin Resource Sharing
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	// TrustedProxies lists the addresses (IPs or CIDRs) of reverse proxies
	// whose forwarding headers name the client. Empty means none.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// SessionConfig groups the session store and cookie settings.
type SessionConfig struct {
	Backend     string        `env:"BACKEND"      envDefault:"postgres"`
	Table       string        `env:"TABLE"        envDefault:"session"`
	CreateTable bool          `env:"CREATE_TABLE" envDefault:"true"`
	TTL         time.Duration `env:"TTL"          envDefault:"24h"`
	CookieName  string        `env:"COOKIE_NAME"  envDefault:"payhub.sid"`
	Secret      string        `env:"SECRET"`
}

// OIDCConfig configures ID token verification for federated sign-in.
type OIDCConfig struct {
	IssuerURL string `env:"ISSUER_URL"`
	ClientID  string `env:"CLIENT_ID"`
	// Provider names the identity source in federated usernames ("google:<sub>").
	Provider string `env:"PROVIDER" envDefault:"google"`
}

// # Configuration Loading

// Load reads an optional .env file, parses environment variables into a
// [Config] struct and validates it.
func Load() (*Config, error) {

	// A missing .env file is the normal production case.
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("config: failed to load .env file: %w", err)
		}
	}

	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate applies cross-field rules and fills development-only defaults.
//
// # Session Secret
//
// Only development and test may fall back to [DevSessionSecret]. Every other
// environment, including misspelled ones, needs an explicit secret of at
// least 32 bytes.
func (c *Config) Validate() error {
	switch c.Session.Backend {
	case SessionBackendPostgres:
	case SessionBackendRedis:
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL is required when SESSION_BACKEND=redis")
		}
	case SessionBackendMemory:
		if !c.IsLocal() {
			return errors.New("config: SESSION_BACKEND=memory is only allowed in development and test")
		}
	default:
		return fmt.Errorf("config: unknown SESSION_BACKEND %q", c.Session.Backend)
	}

	if c.Session.TTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}

	if c.StoreTimeout <= 0 {
		return errors.New("config: STORE_TIMEOUT must be positive")
	}

	if c.IsLocal() {
		if c.Session.Secret == "" {
			c.Session.Secret = DevSessionSecret
		}
	} else {
		if c.Session.Secret == "" || c.Session.Secret == DevSessionSecret {
			return fmt.Errorf("config: SESSION_SECRET must be set when ENVIRONMENT=%q", c.Environment)
		}
		if len(c.Session.Secret) < minSessionSecretLength {
			return fmt.Errorf("config: SESSION_SECRET must be at least %d bytes", minSessionSecretLength)
		}
	}

	for _, entry := range c.TrustedProxies {
		if _, err := parseProxy(entry); err != nil {
			return fmt.Errorf("config: invalid TRUSTED_PROXIES entry %q: %w", entry, err)
		}
	}

	if c.HashConcurrency <= 0 {
		c.HashConcurrency = runtime.NumCPU()
	}

	if c.OIDC.IssuerURL != "" && c.OIDC.ClientID == "" {
		return errors.New("config: OIDC_CLIENT_ID is required when OIDC_ISSUER_URL is set")
	}

	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.environment() == EnvDevelopment
}

// IsLocal reports whether ENVIRONMENT is development or test (case-insensitive).
func (c *Config) IsLocal() bool {
	switch c.environment() {
	case EnvDevelopment, EnvTest:
		return true
	}
	return false
}

// IsProduction reports whether production rules apply. It holds for every
// environment that is not local, so "prod" or "staging" are production too.
func (c *Config) IsProduction() bool {
	return !c.IsLocal()
}

func (c *Config) environment() string {
	return strings.ToLower(strings.TrimSpace(c.Environment))
}

// ProxyPrefixes returns [Config.TrustedProxies] as prefixes. Invalid entries
// are rejected by [Config.Validate] and skipped here.
func (c *Config) ProxyPrefixes() []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, entry := range c.TrustedProxies {
		if prefix, err := parseProxy(entry); err == nil {
			prefixes = append(prefixes, prefix)
		}
	}
	return prefixes
}

// parseProxy accepts a CIDR ("10.0.0.0/8") or a single address ("10.0.0.1").
func parseProxy(entry string) (netip.Prefix, error) {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// UsesDevSecret reports whether cookies are signed with the insecure placeholder.
func (c *Config) UsesDevSecret() bool {
	return c.Session.Secret == DevSessionSecret
}

// OIDCEnabled reports whether federated sign-in is configured.
func (c *Config) OIDCEnabled() bool {
	return c.OIDC.IssuerURL != ""
}

// IsAllowedOrigin reports whether the CORS middleware may echo origin back.
func (c *Config) IsAllowedOrigin(origin string) bool {
	if c.IsDevelopment() {
		return true
	}
	for _, allowed := range c.AllowedOrigins {
		if strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	return false
}
