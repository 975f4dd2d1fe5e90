// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tobifane/skylens/internal/auth"
	"github.com/tobifane/skylens/internal/config"
	"github.com/tobifane/skylens/internal/middleware"
)

// loginRateLimit guards the login endpoint against credential stuffing:
// 5 attempts per 5 minutes per client IP, independent of the general limit.
const (
	loginRateLimit  = 5
	loginRateWindow = 5 * time.Minute
)

// NewRouter assembles the chi router with all middleware and routes.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRouter(cfg *config.Config, handler *Handler, authMW *auth.Middleware, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Security.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.AccessLog(logger))

	// Unauthenticated surface. Health stays cheap for load balancer probes.
	r.Get("/health", handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		if !cfg.Security.RateLimitDisabled {
			r.Use(httprate.LimitByIP(cfg.Security.RateLimitReqs, cfg.Security.RateLimitWindow))
		}

		r.Group(func(r chi.Router) {
			if !cfg.Security.RateLimitDisabled {
				r.Use(httprate.LimitByIP(loginRateLimit, loginRateWindow))
			}
			r.Post("/login", handler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMW.RequireAuth)
			r.Post("/refresh", handler.Refresh)
			r.Post("/logout", handler.Logout)
			r.Post("/logout/all", handler.LogoutAll)
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		if !cfg.Security.RateLimitDisabled {
			r.Use(httprate.LimitByIP(cfg.Security.RateLimitReqs, cfg.Security.RateLimitWindow))
		}
		r.Use(authMW.RequireAuth)

		r.Get("/profile", handler.Profile)
		r.Get("/recommendations", handler.Recommendations)
		r.Get("/strategies", handler.Strategies)
	})

	return r
}
