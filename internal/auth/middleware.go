// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tobifane/skylens/internal/bluesky"
)

type contextKey string

const (
	sessionContextKey contextKey = "auth_session"
	clientContextKey  contextKey = "auth_client"
)

// SessionFromContext returns the authenticated session, or nil.
func SessionFromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(sessionContextKey).(*Session)
	return session
}

// ClientFromContext returns the per-session Bluesky client, or nil.
func ClientFromContext(ctx context.Context) bluesky.Client {
	client, _ := ctx.Value(clientContextKey).(bluesky.Client)
	return client
}

// Middleware guards API routes with SkyLens JWT + session validation.
type Middleware struct {
	jwt     *JWTManager
	store   SessionStore
	client  bluesky.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// NewMiddleware creates the authentication middleware. The timeout controls
// sliding session expiry on each authenticated request.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewMiddleware(jwtManager *JWTManager, store SessionStore, client bluesky.Client, timeout time.Duration, logger zerolog.Logger) *Middleware {
	return &Middleware{
		jwt:     jwtManager,
		store:   store,
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// RequireAuth validates the bearer token, resolves the referenced session,
// and injects both the session and an authenticated Bluesky client into the
// request context. Requests failing any step get 401.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			m.unauthorized(w, "missing bearer token")
			return
		}

		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			m.logger.Debug().Err(err).Msg("token validation failed")
			m.unauthorized(w, "invalid or expired token")
			return
		}

		session, err := m.store.Get(r.Context(), claims.SessionID)
		if err != nil {
			m.logger.Debug().Err(err).Str("did", claims.DID).Msg("session lookup failed")
			m.unauthorized(w, "session not found or expired")
			return
		}

		// Sliding expiry; a failed touch is not worth failing the request.
		if err := m.store.Touch(r.Context(), session.ID, time.Now().Add(m.timeout)); err != nil {
			m.logger.Debug().Err(err).Msg("session touch failed")
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		ctx = context.WithValue(ctx, clientContextKey, m.client.WithToken(session.AccessJWT))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	//nolint:errcheck // Nothing sensible to do with a failed error write
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error": map[string]string{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	})
}
