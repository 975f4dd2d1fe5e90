// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "port too low",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "port too high",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "empty service url",
			mutate:  func(c *Config) { c.Bluesky.ServiceURL = "" },
			wantErr: "bluesky.service_url",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Security.JWTSecret = "short" },
			wantErr: "security.jwt_secret",
		},
		{
			name: "missing jwt secret in production",
			mutate: func(c *Config) {
				c.Server.Environment = "production"
				c.Security.JWTSecret = ""
			},
			wantErr: "required in production",
		},
		{
			name: "long jwt secret in production ok",
			mutate: func(c *Config) {
				c.Server.Environment = "production"
				c.Security.JWTSecret = strings.Repeat("s", 32)
			},
			wantErr: "",
		},
		{
			name:    "short encryption key",
			mutate:  func(c *Config) { c.Security.EncryptionKey = "tiny" },
			wantErr: "security.encryption_key",
		},
		{
			name:    "unknown session store",
			mutate:  func(c *Config) { c.Security.SessionStore = "redis" },
			wantErr: "security.session_store",
		},
		{
			name: "badger store without path",
			mutate: func(c *Config) {
				c.Security.SessionStore = "badger"
				c.Security.SessionStorePath = ""
			},
			wantErr: "session_store_path",
		},
		{
			name:    "zero default limit",
			mutate:  func(c *Config) { c.Recommend.DefaultLimit = 0 },
			wantErr: "recommend.default_limit",
		},
		{
			name: "max limit below default",
			mutate: func(c *Config) {
				c.Recommend.DefaultLimit = 50
				c.Recommend.MaxLimit = 10
			},
			wantErr: "recommend.max_limit",
		},
		{
			name:    "page size above protocol max",
			mutate:  func(c *Config) { c.Recommend.PageSize = 101 },
			wantErr: "recommend.page_size",
		},
		{
			name:    "zero hydrate concurrency",
			mutate:  func(c *Config) { c.Recommend.HydrateConcurrency = 0 },
			wantErr: "recommend.hydrate_concurrency",
		},
		{
			name:    "unknown strategy",
			mutate:  func(c *Config) { c.Recommend.DefaultStrategy = "ml" },
			wantErr: "recommend.default_strategy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"BLUESKY_SERVICE_URL", "bluesky.service_url"},
		{"HTTP_PORT", "server.port"},
		{"SKYLENS_JWT_SECRET", "security.jwt_secret"},
		{"SEED_HANDLES", "recommend.seed_handles"},
		{"MIN_COMMON_FOLLOWS", "recommend.min_common_follows"},
		{"LOG_LEVEL", "logging.level"},
		{"HOME", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BLUESKY_SERVICE_URL", "https://pds.example.com")
	t.Setenv("RECOMMEND_DEFAULT_LIMIT", "25")
	t.Setenv("SEED_HANDLES", "alice.bsky.social, bob.bsky.social,carol.bsky.social")
	t.Setenv("SESSION_TIMEOUT", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Bluesky.ServiceURL != "https://pds.example.com" {
		t.Errorf("service URL = %q, want env override", cfg.Bluesky.ServiceURL)
	}
	if cfg.Recommend.DefaultLimit != 25 {
		t.Errorf("default limit = %d, want 25", cfg.Recommend.DefaultLimit)
	}
	wantSeeds := []string{"alice.bsky.social", "bob.bsky.social", "carol.bsky.social"}
	if len(cfg.Recommend.SeedHandles) != len(wantSeeds) {
		t.Fatalf("seed handles = %v, want %v", cfg.Recommend.SeedHandles, wantSeeds)
	}
	for i, want := range wantSeeds {
		if cfg.Recommend.SeedHandles[i] != want {
			t.Errorf("seed[%d] = %q, want %q", i, cfg.Recommend.SeedHandles[i], want)
		}
	}
	if cfg.Security.SessionTimeout != time.Hour {
		t.Errorf("session timeout = %s, want 1h", cfg.Security.SessionTimeout)
	}
}

// TestLoadProductionSetup runs the exact environment documented in
// cmd/server's package comment and verifies every variable takes effect.
func TestLoadProductionSetup(t *testing.T) {
	secret := strings.Repeat("s", 32)
	key := strings.Repeat("k", 32)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SKYLENS_JWT_SECRET", secret)
	t.Setenv("BLUESKY_SERVICE_URL", "https://pds.example.com")
	t.Setenv("SESSION_STORE", "badger")
	t.Setenv("SESSION_STORE_PATH", "/var/lib/skylens/sessions")
	t.Setenv("SKYLENS_ENCRYPTION_KEY", key)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed for documented production setup: %v", err)
	}

	if cfg.Server.Environment != "production" {
		t.Errorf("environment = %q, want production", cfg.Server.Environment)
	}
	if cfg.Security.JWTSecret != secret {
		t.Error("SKYLENS_JWT_SECRET not applied")
	}
	if cfg.Bluesky.ServiceURL != "https://pds.example.com" {
		t.Errorf("BLUESKY_SERVICE_URL not applied, got %q", cfg.Bluesky.ServiceURL)
	}
	if cfg.Security.SessionStore != "badger" {
		t.Errorf("SESSION_STORE not applied, got %q", cfg.Security.SessionStore)
	}
	if cfg.Security.SessionStorePath != "/var/lib/skylens/sessions" {
		t.Errorf("SESSION_STORE_PATH not applied, got %q", cfg.Security.SessionStorePath)
	}
	if cfg.Security.EncryptionKey != key {
		t.Error("SKYLENS_ENCRYPTION_KEY not applied")
	}
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	t.Setenv("SKYLENS_JWT_SECRET", "too-short")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for short JWT secret")
	}
}
