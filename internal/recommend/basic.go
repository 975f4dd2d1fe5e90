// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package recommend

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/tobifane/skylens/internal/bluesky"
	"github.com/tobifane/skylens/internal/metrics"
)

// Basic is the seedless strategy: it scores AppView-suggested accounts with
// the heuristic in scoring.go. It overfetches suggestions (2x the limit) so
// scoring and truncation still have material after hydration drops.
type Basic struct {
	hydrator *Hydrator
	logger   zerolog.Logger
}

// NewBasic creates the basic strategy.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBasic(cfg *Config, logger zerolog.Logger) *Basic {
	cfg = cfg.withDefaults()
	return &Basic{
		hydrator: NewHydrator(cfg.HydrateConcurrency, logger),
		logger:   logger,
	}
}

// Name implements Strategy.
func (s *Basic) Name() string { return StrategyBasic }

// Recommend implements Strategy.
func (s *Basic) Recommend(ctx context.Context, client GraphClient, req Request) ([]Recommendation, error) {
	fetchLimit := req.Limit * 2
	if fetchLimit < 1 {
		fetchLimit = 1
	}

	suggestions, err := client.GetSuggestions(ctx, fetchLimit)
	if err != nil {
		if errors.Is(err, bluesky.ErrAuthFailed) || ctx.Err() != nil {
			return nil, err
		}
		// A dead suggestions feed yields an empty result, not a failure.
		s.logger.Warn().Err(err).Str("actor", req.Actor).Msg("suggestion fetch failed, returning no candidates")
		return []Recommendation{}, nil
	}

	metrics.CandidatesConsidered.Observe(float64(len(suggestions)))
	if len(suggestions) == 0 {
		return []Recommendation{}, nil
	}

	actors := make([]string, 0, len(suggestions))
	for _, ref := range suggestions {
		// Suggestions occasionally include the requester; skip it.
		if ref.DID == req.Actor || ref.Handle == req.Actor {
			continue
		}
		actors = append(actors, ref.DID)
	}

	profiles, err := s.hydrator.Hydrate(ctx, client, actors)
	if err != nil {
		return nil, err
	}

	recs := make([]Recommendation, 0, len(profiles))
	for _, p := range profiles {
		recs = append(recs, Recommendation{
			Profile:  p,
			Score:    Score(&p),
			Reason:   BuildReason(&p),
			Strategy: StrategyBasic,
		})
	}
	return recs, nil
}
