// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package recommend

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tobifane/skylens/internal/bluesky"
	"github.com/tobifane/skylens/internal/metrics"
)

// CommonFollowers recommends accounts that at least k of the configured seed
// accounts follow and the target does not. The rank signal is the seed
// count; ties break on lexicographic DID so output is deterministic for
// identical inputs.
type CommonFollowers struct {
	fetcher          *Fetcher
	hydrator         *Hydrator
	seeds            []string
	minCommonFollows int
	concurrency      int
	logger           zerolog.Logger
}

// NewCommonFollowers creates the common-followers strategy.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewCommonFollowers(cfg *Config, logger zerolog.Logger) *CommonFollowers {
	cfg = cfg.withDefaults()
	return &CommonFollowers{
		fetcher:          NewFetcher(cfg, logger),
		hydrator:         NewHydrator(cfg.HydrateConcurrency, logger),
		seeds:            cfg.Seeds,
		minCommonFollows: cfg.MinCommonFollows,
		concurrency:      cfg.FetchConcurrency,
		logger:           logger,
	}
}

// Name implements Strategy.
func (s *CommonFollowers) Name() string { return StrategyCommonFollowers }

// Recommend implements Strategy.
//
// Pipeline: validate seeds, fetch the target's and every seed's follow set
// concurrently, count distinct seeds per candidate, filter by threshold and
// the target's exclusion set, sort deterministically, then hydrate in rank
// order. An empty candidate set is a valid outcome, not an error.
func (s *CommonFollowers) Recommend(ctx context.Context, client GraphClient, req Request) ([]Recommendation, error) {
	seeds := req.Seeds
	if len(seeds) == 0 {
		seeds = s.seeds
	}
	minCommon := req.MinCommonFollows
	if minCommon < 1 {
		minCommon = s.minCommonFollows
	}

	// Seed validation happens before any network call.
	if len(seeds) < 2 {
		return nil, &ConfigError{Reason: fmt.Sprintf("common-followers requires at least 2 seed accounts, got %d", len(seeds))}
	}

	targetFollows, seedFollows, err := s.fetchFollowSets(ctx, client, req.Actor, seeds)
	if err != nil {
		return nil, err
	}

	candidates := s.aggregate(req.Actor, targetFollows, seedFollows, minCommon)
	metrics.CandidatesConsidered.Observe(float64(len(candidates)))
	if len(candidates) == 0 {
		s.logger.Debug().Str("actor", req.Actor).Int("seeds", len(seeds)).Msg("no candidates met the common-follows threshold")
		return []Recommendation{}, nil
	}

	// Hydrate in rank order; counts are re-attached by DID because failed
	// lookups leave gaps in the hydrated sequence.
	actors := make([]string, len(candidates))
	countByDID := make(map[string]int, len(candidates))
	for i, c := range candidates {
		actors[i] = c.Ref.DID
		countByDID[c.Ref.DID] = c.Count
	}
	profiles, err := s.hydrator.Hydrate(ctx, client, actors)
	if err != nil {
		return nil, err
	}

	recs := make([]Recommendation, 0, len(profiles))
	for _, p := range profiles {
		count := countByDID[p.DID]
		recs = append(recs, Recommendation{
			Profile:  p,
			Score:    float64(count),
			Reason:   fmt.Sprintf("Followed by %d of your seed accounts", count),
			Strategy: StrategyCommonFollowers,
		})
	}
	return recs, nil
}

// fetchFollowSets retrieves the target's and all seed follow sets with
// bounded fan-out. Only auth failures and cancellation propagate; individual
// page failures have already degraded to partial sets inside the fetcher.
func (s *CommonFollowers) fetchFollowSets(ctx context.Context, client GraphClient, actor string, seeds []string) ([]bluesky.AccountRef, [][]bluesky.AccountRef, error) {
	var targetFollows []bluesky.AccountRef
	seedFollows := make([][]bluesky.AccountRef, len(seeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	g.Go(func() error {
		var err error
		targetFollows, err = s.fetcher.FetchFollows(gctx, client, actor)
		return err
	})
	for i, seed := range seeds {
		g.Go(func() error {
			follows, err := s.fetcher.FetchFollows(gctx, client, seed)
			if err != nil {
				return fmt.Errorf("seed %s: %w", seed, err)
			}
			seedFollows[i] = follows
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return targetFollows, seedFollows, nil
}

// aggregate counts distinct seeds per candidate and filters to accounts
// followed by at least minCommon seeds, excluding the target itself and
// everything it already follows. Output is sorted by descending count with
// lexicographic DID tie-break.
func (s *CommonFollowers) aggregate(actor string, targetFollows []bluesky.AccountRef, seedFollows [][]bluesky.AccountRef, minCommon int) []Candidate {
	counts := make(map[string]int)
	refs := make(map[string]bluesky.AccountRef)
	for _, follows := range seedFollows {
		// Dedupe within each seed: duplicate edges to the same account
		// count once per seed, not once per edge.
		seen := make(map[string]struct{}, len(follows))
		for _, f := range follows {
			if _, dup := seen[f.DID]; dup {
				continue
			}
			seen[f.DID] = struct{}{}
			counts[f.DID]++
			refs[f.DID] = f
		}
	}

	excluded := make(map[string]struct{}, len(targetFollows))
	for _, f := range targetFollows {
		excluded[f.DID] = struct{}{}
	}

	candidates := make([]Candidate, 0, len(counts))
	for did, count := range counts {
		if count < minCommon {
			continue
		}
		if _, follows := excluded[did]; follows {
			continue
		}
		ref := refs[did]
		// The target can appear in a seed's follows; exclude it explicitly.
		if ref.DID == actor || ref.Handle == actor {
			continue
		}
		candidates = append(candidates, Candidate{Ref: ref, Count: count})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Count != candidates[j].Count {
			return candidates[i].Count > candidates[j].Count
		}
		return candidates[i].Ref.DID < candidates[j].Ref.DID
	})
	return candidates
}
