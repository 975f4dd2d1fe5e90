// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/skylens/config.yaml",
	"/etc/skylens/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8327,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Bluesky: BlueskyConfig{
			ServiceURL:            "https://bsky.social",
			Timeout:               30 * time.Second,
			RequestsPerSecond:     10,
			Burst:                 20,
			MaxRetries429:         3,
			CircuitBreakerEnabled: true,
		},
		Security: SecurityConfig{
			JWTSecret:         "",
			SessionTimeout:    24 * time.Hour,
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
			SessionStore:      "memory",
			SessionStorePath:  "/data/sessions",
			EncryptionKey:     "",
		},
		Recommend: RecommendConfig{
			DefaultStrategy:    "common-followers",
			DefaultLimit:       10,
			MaxLimit:           100,
			PageSize:           100,
			MaxPages:           50,
			RetryFailedPage:    false,
			FetchConcurrency:   8,
			HydrateConcurrency: 8,
			SeedHandles:        []string{},
			MinCommonFollows:   2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using koanf v2 with layered sources:
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// SKYLENS_JWT_SECRET -> security.jwt_secret, etc.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches the env override and default paths.
// Returns the first file found, or empty string if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are config paths parsed as comma-separated slices when
// they arrive as env var strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"recommend.seed_handles",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as plain strings.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped keys are skipped so random environment variables cannot pollute
// the configuration.
//
// Examples:
//   - BLUESKY_SERVICE_URL -> bluesky.service_url
//   - SKYLENS_JWT_SECRET  -> security.jwt_secret
//   - SEED_HANDLES        -> recommend.seed_handles
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// Bluesky upstream mappings
		"bluesky_service_url":     "bluesky.service_url",
		"bluesky_timeout":         "bluesky.timeout",
		"bluesky_rps":             "bluesky.requests_per_second",
		"bluesky_burst":           "bluesky.burst",
		"bluesky_max_retries_429": "bluesky.max_retries_429",
		"bluesky_circuit_breaker": "bluesky.circuit_breaker_enabled",

		// Security mappings
		"skylens_jwt_secret":     "security.jwt_secret",
		"session_timeout":        "security.session_timeout",
		"rate_limit_requests":    "security.rate_limit_reqs",
		"rate_limit_window":      "security.rate_limit_window",
		"disable_rate_limit":     "security.rate_limit_disabled",
		"cors_origins":           "security.cors_origins",
		"session_store":          "security.session_store",
		"session_store_path":     "security.session_store_path",
		"skylens_encryption_key": "security.encryption_key",

		// Recommendation engine mappings
		"recommend_default_strategy":  "recommend.default_strategy",
		"recommend_default_limit":     "recommend.default_limit",
		"recommend_max_limit":         "recommend.max_limit",
		"recommend_page_size":         "recommend.page_size",
		"recommend_max_pages":         "recommend.max_pages",
		"recommend_retry_failed_page": "recommend.retry_failed_page",
		"fetch_concurrency":           "recommend.fetch_concurrency",
		"hydrate_concurrency":         "recommend.hydrate_concurrency",
		"seed_handles":                "recommend.seed_handles",
		"min_common_follows":          "recommend.min_common_follows",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
