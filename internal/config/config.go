// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

// Package config loads and validates SkyLens configuration from layered
// sources: struct defaults, an optional YAML file, and environment
// variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the SkyLens server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Bluesky   BlueskyConfig   `koanf:"bluesky"`
	Security  SecurityConfig  `koanf:"security"`
	Recommend RecommendConfig `koanf:"recommend"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// Environment toggles production-only validation: development or production.
	Environment string `koanf:"environment"`
}

// BlueskyConfig holds upstream AT Protocol connection settings.
type BlueskyConfig struct {
	// ServiceURL is the PDS/AppView base URL, e.g. https://bsky.social.
	ServiceURL string        `koanf:"service_url"`
	Timeout    time.Duration `koanf:"timeout"`

	// RequestsPerSecond bounds the client-side XRPC call rate. Zero disables
	// the limiter.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`

	// MaxRetries429 is how many times a 429 response is retried with
	// exponential backoff before giving up.
	MaxRetries429 int `koanf:"max_retries_429"`

	// CircuitBreakerEnabled wraps the client in a circuit breaker so a
	// misbehaving upstream trips open instead of exhausting the rate budget.
	CircuitBreakerEnabled bool `koanf:"circuit_breaker_enabled"`
}

// SecurityConfig holds authentication and rate limit settings.
type SecurityConfig struct {
	// JWTSecret signs SkyLens-issued bearer tokens. Minimum 32 bytes.
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins []string `koanf:"cors_origins"`

	// SessionStore selects the backing store: memory or badger.
	SessionStore     string `koanf:"session_store"`
	SessionStorePath string `koanf:"session_store_path"`

	// EncryptionKey is the master key for encrypting stored Bluesky tokens
	// at rest. Empty disables encryption. Minimum 32 bytes when set.
	EncryptionKey string `koanf:"encryption_key"`
}

// RecommendConfig holds recommendation engine settings.
type RecommendConfig struct {
	DefaultStrategy string `koanf:"default_strategy"`
	DefaultLimit    int    `koanf:"default_limit"`
	MaxLimit        int    `koanf:"max_limit"`

	// PageSize is the follows-per-page requested from the upstream graph API.
	PageSize int `koanf:"page_size"`
	// MaxPages caps pagination per actor as a runaway guard. Zero means no cap.
	MaxPages int `koanf:"max_pages"`
	// RetryFailedPage enables a single retry of a failed follows page before
	// truncating the fetch.
	RetryFailedPage bool `koanf:"retry_failed_page"`

	FetchConcurrency   int `koanf:"fetch_concurrency"`
	HydrateConcurrency int `koanf:"hydrate_concurrency"`

	// SeedHandles are the accounts whose followings are intersected by the
	// common-followers strategy. At least two are required to use it.
	SeedHandles []string `koanf:"seed_handles"`
	// MinCommonFollows is the minimum number of seeds that must follow an
	// account for it to become a candidate.
	MinCommonFollows int `koanf:"min_common_follows"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// minSecretLength is the minimum byte length for JWT and encryption secrets.
const minSecretLength = 32

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}

	if c.Bluesky.ServiceURL == "" {
		return fmt.Errorf("bluesky.service_url must not be empty")
	}
	if c.Bluesky.Timeout <= 0 {
		return fmt.Errorf("bluesky.timeout must be positive, got %s", c.Bluesky.Timeout)
	}
	if c.Bluesky.RequestsPerSecond < 0 {
		return fmt.Errorf("bluesky.requests_per_second must not be negative")
	}

	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < minSecretLength {
		return fmt.Errorf("security.jwt_secret must be at least %d bytes, got %d", minSecretLength, len(c.Security.JWTSecret))
	}
	if c.Server.Environment == "production" && c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required in production")
	}
	if c.Security.EncryptionKey != "" && len(c.Security.EncryptionKey) < minSecretLength {
		return fmt.Errorf("security.encryption_key must be at least %d bytes, got %d", minSecretLength, len(c.Security.EncryptionKey))
	}
	switch c.Security.SessionStore {
	case "memory", "badger":
	default:
		return fmt.Errorf("security.session_store must be memory or badger, got %q", c.Security.SessionStore)
	}
	if c.Security.SessionStore == "badger" && c.Security.SessionStorePath == "" {
		return fmt.Errorf("security.session_store_path is required for the badger session store")
	}
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("security.session_timeout must be positive, got %s", c.Security.SessionTimeout)
	}

	if err := c.Recommend.validate(); err != nil {
		return err
	}

	return nil
}

func (r *RecommendConfig) validate() error {
	if r.DefaultLimit < 1 {
		return fmt.Errorf("recommend.default_limit must be at least 1, got %d", r.DefaultLimit)
	}
	if r.MaxLimit < r.DefaultLimit {
		return fmt.Errorf("recommend.max_limit (%d) must not be below recommend.default_limit (%d)", r.MaxLimit, r.DefaultLimit)
	}
	if r.PageSize < 1 || r.PageSize > 100 {
		return fmt.Errorf("recommend.page_size must be between 1 and 100, got %d", r.PageSize)
	}
	if r.MaxPages < 0 {
		return fmt.Errorf("recommend.max_pages must not be negative, got %d", r.MaxPages)
	}
	if r.FetchConcurrency < 1 {
		return fmt.Errorf("recommend.fetch_concurrency must be at least 1, got %d", r.FetchConcurrency)
	}
	if r.HydrateConcurrency < 1 {
		return fmt.Errorf("recommend.hydrate_concurrency must be at least 1, got %d", r.HydrateConcurrency)
	}
	if r.MinCommonFollows < 1 {
		return fmt.Errorf("recommend.min_common_follows must be at least 1, got %d", r.MinCommonFollows)
	}
	switch r.DefaultStrategy {
	case "common-followers", "basic":
	default:
		return fmt.Errorf("recommend.default_strategy must be common-followers or basic, got %q", r.DefaultStrategy)
	}
	return nil
}
