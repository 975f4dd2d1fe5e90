// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

// Package main is the entry point for the SkyLens server.
//
// SkyLens is a self-hosted follow-recommendation service for Bluesky. Users
// log in with an app password, and SkyLens analyzes their social graph to
// suggest accounts worth following, either from the accounts their chosen
// seed accounts follow in common or from the network's suggestion feed.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered sources via Koanf v2 (defaults, YAML, env)
//  2. Bluesky client: rate-limited XRPC client, optional circuit breaker
//  3. Session store: in-memory or BadgerDB with token encryption at rest
//  4. Recommendation engine: common-followers and basic strategies
//  5. Supervisor tree: session janitor and HTTP server under suture
//
// # Configuration
//
// Everything is configurable via environment variables (the explicit names
// mapped in internal/config) or a config.yaml. The minimum production setup:
//
//	export SKYLENS_JWT_SECRET=$(openssl rand -base64 32)
//	export BLUESKY_SERVICE_URL=https://bsky.social
//	./skylens
//
// Durable sessions with encrypted tokens at rest:
//
//	export SESSION_STORE=badger
//	export SESSION_STORE_PATH=/var/lib/skylens/sessions
//	export SKYLENS_ENCRYPTION_KEY=$(openssl rand -base64 32)
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: it stops accepting
// connections, drains in-flight requests within the configured timeout, and
// closes the session store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tobifane/skylens/internal/api"
	"github.com/tobifane/skylens/internal/auth"
	"github.com/tobifane/skylens/internal/bluesky"
	"github.com/tobifane/skylens/internal/config"
	"github.com/tobifane/skylens/internal/logging"
	"github.com/tobifane/skylens/internal/recommend"
	"github.com/tobifane/skylens/internal/supervisor"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

// janitorInterval is how often expired sessions are swept from the store.
const janitorInterval = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config not yet available, use the default logger.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("service_url", cfg.Bluesky.ServiceURL).
		Str("session_store", cfg.Security.SessionStore).
		Str("default_strategy", cfg.Recommend.DefaultStrategy).
		Msg("Starting SkyLens")

	// Upstream client. The circuit breaker keeps a failing upstream from
	// burning the whole rate limit budget on doomed calls.
	var client bluesky.Client = bluesky.NewClient(&cfg.Bluesky)
	if cfg.Bluesky.CircuitBreakerEnabled {
		client = bluesky.NewCircuitBreakerClient(client)
		logging.Info().Msg("Circuit breaker enabled for Bluesky client")
	}

	store, err := auth.NewSessionStore(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize session store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}()

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}

	logger := logging.Logger()
	authService := auth.NewService(client, store, jwtManager, &cfg.Security, logger)
	authMW := auth.NewMiddleware(jwtManager, store, client, cfg.Security.SessionTimeout, logger)

	engine := recommend.NewEngine(&recommend.Config{
		DefaultStrategy:    cfg.Recommend.DefaultStrategy,
		DefaultLimit:       cfg.Recommend.DefaultLimit,
		MaxLimit:           cfg.Recommend.MaxLimit,
		PageSize:           cfg.Recommend.PageSize,
		MaxPages:           cfg.Recommend.MaxPages,
		RetryFailedPage:    cfg.Recommend.RetryFailedPage,
		FetchConcurrency:   cfg.Recommend.FetchConcurrency,
		HydrateConcurrency: cfg.Recommend.HydrateConcurrency,
		Seeds:              cfg.Recommend.SeedHandles,
		MinCommonFollows:   cfg.Recommend.MinCommonFollows,
	}, logger)

	handler := api.NewHandler(cfg, engine, authService, version, logger)
	router := api.NewRouter(cfg, handler, authMW, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}

	// Supervisor tree: the janitor and HTTP server restart independently.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSessionService(auth.NewJanitor(store, janitorInterval, logger))
	tree.AddAPIService(supervisor.NewHTTPService(server, supervisor.DefaultTreeConfig().ShutdownTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor has fully stopped.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("SkyLens stopped gracefully")
}
