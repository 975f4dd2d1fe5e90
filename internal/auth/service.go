// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tobifane/skylens/internal/bluesky"
	"github.com/tobifane/skylens/internal/config"
	"github.com/tobifane/skylens/internal/metrics"
)

// Service implements the login lifecycle: exchanging Bluesky app-password
// credentials for an upstream session, persisting it, and issuing the
// SkyLens JWT that references it.
type Service struct {
	client  bluesky.Client
	store   SessionStore
	jwt     *JWTManager
	timeout time.Duration
	logger  zerolog.Logger
}

// LoginResult is the outcome of a successful login or refresh.
type LoginResult struct {
	Token   string
	Session *Session
}

// NewService creates the authentication service.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewService(client bluesky.Client, store SessionStore, jwtManager *JWTManager, cfg *config.SecurityConfig, logger zerolog.Logger) *Service {
	return &Service{
		client:  client,
		store:   store,
		jwt:     jwtManager,
		timeout: cfg.SessionTimeout,
		logger:  logger,
	}
}

// Login authenticates against Bluesky and creates a server-side session.
// Invalid credentials surface as bluesky.ErrAuthFailed.
func (s *Service) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	upstream, err := s.client.CreateSession(ctx, identifier, password)
	if err != nil {
		metrics.AuthLogins.WithLabelValues("failure").Inc()
		s.logger.Warn().Err(err).Str("identifier", identifier).Msg("login failed")
		return nil, err
	}

	session := NewSession(upstream, s.timeout)
	if err := s.store.Create(ctx, session); err != nil {
		metrics.AuthLogins.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("store session: %w", err)
	}

	token, err := s.jwt.GenerateToken(session.DID, session.Handle, session.ID)
	if err != nil {
		return nil, err
	}

	metrics.AuthLogins.WithLabelValues("success").Inc()
	metrics.ActiveSessions.Inc()
	s.logger.Info().Str("did", session.DID).Str("handle", session.Handle).Msg("login succeeded")
	return &LoginResult{Token: token, Session: session}, nil
}

// Refresh rotates the upstream tokens for an existing session and issues a
// fresh SkyLens JWT with a new expiry.
func (s *Service) Refresh(ctx context.Context, sessionID string) (*LoginResult, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	upstream, err := s.client.RefreshSession(ctx, session.RefreshJWT)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session.AccessJWT = upstream.AccessJWT
	session.RefreshJWT = upstream.RefreshJWT
	session.ExpiresAt = now.Add(s.timeout)
	session.LastAccessedAt = now
	if err := s.store.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	token, err := s.jwt.GenerateToken(session.DID, session.Handle, session.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("did", session.DID).Msg("session refreshed")
	return &LoginResult{Token: token, Session: session}, nil
}

// Logout deletes one session. Deleting an unknown session is not an error.
// The gauge only moves when a session was actually removed, so repeated
// logouts cannot drift it negative.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	deleted, err := s.store.Delete(ctx, sessionID)
	if err != nil {
		return err
	}
	if deleted {
		metrics.ActiveSessions.Dec()
	}
	return nil
}

// LogoutAll deletes every session belonging to an account.
func (s *Service) LogoutAll(ctx context.Context, did string) (int, error) {
	count, err := s.store.DeleteByDID(ctx, did)
	if err != nil {
		return 0, err
	}
	metrics.ActiveSessions.Sub(float64(count))
	return count, nil
}

// ClientFor returns a Bluesky client authenticated as the session's account.
func (s *Service) ClientFor(session *Session) bluesky.Client {
	return s.client.WithToken(session.AccessJWT)
}
