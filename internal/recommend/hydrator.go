// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package recommend

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tobifane/skylens/internal/bluesky"
	"github.com/tobifane/skylens/internal/metrics"
)

// Hydrator resolves bare account identifiers into detailed profiles with a
// bounded number of in-flight lookups.
//
// A failed lookup drops that entry with a warning; the batch never fails for
// one identifier. Output preserves the relative order of the input (callers
// pre-sort candidates), with dropped entries leaving gaps, never reordering
// survivors. Authorization failures abort the whole batch.
type Hydrator struct {
	concurrency int
	logger      zerolog.Logger
}

// NewHydrator creates a Hydrator with the given concurrency cap.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHydrator(concurrency int, logger zerolog.Logger) *Hydrator {
	if concurrency < 1 {
		concurrency = 8
	}
	return &Hydrator{concurrency: concurrency, logger: logger}
}

// Hydrate looks up a profile for each actor identifier.
func (h *Hydrator) Hydrate(ctx context.Context, client GraphClient, actors []string) ([]bluesky.Profile, error) {
	results := make([]*bluesky.Profile, len(actors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)

	for i, actor := range actors {
		g.Go(func() error {
			profile, err := client.GetProfile(gctx, actor)
			if err != nil {
				if errors.Is(err, bluesky.ErrAuthFailed) || gctx.Err() != nil {
					return err
				}
				metrics.HydrationDrops.Inc()
				h.logger.Warn().Err(err).Str("actor", actor).Msg("profile hydration failed, dropping candidate")
				return nil
			}
			results[i] = profile
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	profiles := make([]bluesky.Profile, 0, len(actors))
	for _, p := range results {
		if p != nil {
			profiles = append(profiles, *p)
		}
	}
	return profiles, nil
}
