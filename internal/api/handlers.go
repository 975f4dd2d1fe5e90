// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/tobifane/skylens/internal/auth"
	"github.com/tobifane/skylens/internal/bluesky"
	"github.com/tobifane/skylens/internal/config"
	"github.com/tobifane/skylens/internal/logging"
	"github.com/tobifane/skylens/internal/recommend"
)

// Handler implements the API endpoints.
type Handler struct {
	cfg       *config.Config
	engine    *recommend.Engine
	authSvc   *auth.Service
	logger    zerolog.Logger
	version   string
	startTime time.Time
}

// NewHandler creates the API handler.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHandler(cfg *config.Config, engine *recommend.Engine, authSvc *auth.Service, version string, logger zerolog.Logger) *Handler {
	return &Handler{
		cfg:       cfg,
		engine:    engine,
		authSvc:   authSvc,
		logger:    logger,
		version:   version,
		startTime: time.Now(),
	}
}

// Health reports liveness. It never touches the upstream.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(&HealthResponse{
		Status:  "ok",
		Version: h.version,
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Login exchanges Bluesky app-password credentials for a SkyLens token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	if details := validateRequest(&req); details != nil {
		rw.ValidationError("invalid login request", details)
		return
	}

	result, err := h.authSvc.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, bluesky.ErrAuthFailed) {
			rw.Unauthorized("invalid identifier or app password")
			return
		}
		h.upstreamOrInternal(rw, err)
		return
	}

	rw.Success(&LoginResponse{
		Token:     result.Token,
		DID:       result.Session.DID,
		Handle:    result.Session.Handle,
		ExpiresAt: result.Session.ExpiresAt,
	})
}

// Refresh rotates the upstream session tokens and issues a fresh SkyLens
// token for the authenticated session.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		rw.Unauthorized("not authenticated")
		return
	}

	result, err := h.authSvc.Refresh(r.Context(), session.ID)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrSessionNotFound), errors.Is(err, auth.ErrSessionExpired):
			rw.Unauthorized("session not found or expired")
		case errors.Is(err, bluesky.ErrAuthFailed):
			rw.Unauthorized("upstream session is no longer valid")
		default:
			h.upstreamOrInternal(rw, err)
		}
		return
	}

	rw.Success(&LoginResponse{
		Token:     result.Token,
		DID:       result.Session.DID,
		Handle:    result.Session.Handle,
		ExpiresAt: result.Session.ExpiresAt,
	})
}

// Logout revokes the authenticated session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		rw.Unauthorized("not authenticated")
		return
	}

	if err := h.authSvc.Logout(r.Context(), session.ID); err != nil {
		rw.InternalError("failed to revoke session")
		return
	}
	rw.NoContent()
}

// LogoutAll revokes every session for the authenticated account.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		rw.Unauthorized("not authenticated")
		return
	}

	count, err := h.authSvc.LogoutAll(r.Context(), session.DID)
	if err != nil {
		rw.InternalError("failed to revoke sessions")
		return
	}
	rw.Success(map[string]int{"revoked": count})
}

// Profile returns the authenticated account's own profile.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	session := auth.SessionFromContext(r.Context())
	client := auth.ClientFromContext(r.Context())
	if session == nil || client == nil {
		rw.Unauthorized("not authenticated")
		return
	}

	profile, err := client.GetProfile(r.Context(), session.DID)
	if err != nil {
		if errors.Is(err, bluesky.ErrAuthFailed) {
			rw.Unauthorized("upstream session is no longer valid")
			return
		}
		h.upstreamOrInternal(rw, err)
		return
	}

	rw.Success(&ProfileResponse{
		DID:            profile.DID,
		Handle:         profile.Handle,
		DisplayName:    profile.DisplayName,
		Description:    profile.Description,
		AvatarURL:      profile.AvatarURL,
		FollowerCount:  profile.FollowerCount,
		FollowingCount: profile.FollowingCount,
	})
}

// Strategies lists the registered recommendation strategies.
func (h *Handler) Strategies(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string][]string{
		"strategies": h.engine.Strategies(),
	})
}

// Recommendations computes follow recommendations for the authenticated
// account.
//
// Query parameters: strategy, limit, seeds (comma-separated handles or
// DIDs), min_common_follows. An absent limit uses the configured default;
// an explicit limit of 0 is honored and yields an empty list.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	session := auth.SessionFromContext(r.Context())
	client := auth.ClientFromContext(r.Context())
	if session == nil || client == nil {
		rw.Unauthorized("not authenticated")
		return
	}

	limit, ok := getIntParam(r, "limit", h.cfg.Recommend.DefaultLimit)
	if !ok {
		rw.BadRequest("limit must be an integer")
		return
	}
	minCommon, ok := getIntParam(r, "min_common_follows", 0)
	if !ok {
		rw.BadRequest("min_common_follows must be an integer")
		return
	}

	req := RecommendationsRequest{
		Limit:            limit,
		Strategy:         r.URL.Query().Get("strategy"),
		Seeds:            getListParam(r, "seeds"),
		MinCommonFollows: minCommon,
	}
	if details := validateRequest(&req); details != nil {
		rw.ValidationError("invalid recommendation parameters", details)
		return
	}

	resp, err := h.engine.Recommend(r.Context(), client, recommend.Request{
		Actor:            session.DID,
		Limit:            req.Limit,
		Strategy:         req.Strategy,
		Seeds:            req.Seeds,
		MinCommonFollows: req.MinCommonFollows,
		RequestID:        logging.RequestIDFromContext(r.Context()),
	})
	if err != nil {
		switch {
		case recommend.IsConfigError(err):
			rw.BadRequest(err.Error())
		case errors.Is(err, bluesky.ErrAuthFailed):
			rw.Unauthorized("upstream session is no longer valid")
		default:
			h.upstreamOrInternal(rw, err)
		}
		return
	}

	rw.Success(toRecommendationsResponse(resp))
}

// upstreamOrInternal maps non-auth failures: circuit breaker rejections and
// upstream errors become 502, everything else 500.
func (h *Handler) upstreamOrInternal(rw *ResponseWriter, err error) {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		rw.ServiceUnavailable("Bluesky service is temporarily unavailable")
		return
	}
	rw.UpstreamError(err)
}
