// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package auth

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tobifane/skylens/internal/metrics"
)

// Janitor periodically removes expired sessions from the store. It runs as a
// supervised service and restarts cleanly if the store misbehaves.
type Janitor struct {
	store    SessionStore
	interval time.Duration
	logger   zerolog.Logger
}

// NewJanitor creates a session janitor. A non-positive interval falls back
// to five minutes.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewJanitor(store SessionStore, interval time.Duration, logger zerolog.Logger) *Janitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Janitor{store: store, interval: interval, logger: logger}
}

// String implements fmt.Stringer for supervisor logs.
func (j *Janitor) String() string { return "session-janitor" }

// Serve implements suture.Service. It blocks until the context is canceled.
func (j *Janitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := j.store.CleanupExpired(ctx)
			if err != nil {
				j.logger.Warn().Err(err).Msg("session cleanup failed")
				continue
			}
			if removed > 0 {
				metrics.ActiveSessions.Sub(float64(removed))
				j.logger.Debug().Int("removed", removed).Msg("expired sessions removed")
			}
		}
	}
}
