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

// Fetcher retrieves an actor's complete follow set via cursor pagination.
//
// Failure policy: when a page request fails, the fetch stops and returns
// whatever was accumulated so far instead of failing the request. Downstream
// aggregation degrades to under-counted results, which beats failing the
// whole recommendation. The truncation is logged as a warning with the actor
// so graph gaps stay diagnosable.
//
// Two failure classes still propagate: authorization errors (no further
// graph access is possible) and context cancellation (a partial set must not
// be passed off as complete).
type Fetcher struct {
	pageSize  int
	maxPages  int
	retryPage bool
	logger    zerolog.Logger
}

// NewFetcher creates a Fetcher from pipeline configuration.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewFetcher(cfg *Config, logger zerolog.Logger) *Fetcher {
	cfg = cfg.withDefaults()
	return &Fetcher{
		pageSize:  cfg.PageSize,
		maxPages:  cfg.MaxPages,
		retryPage: cfg.RetryFailedPage,
		logger:    logger,
	}
}

// FetchFollows returns the accounts actor follows. Edge order is whatever
// the upstream returns; callers must not rely on it. The returned slice may
// be incomplete after an upstream page failure (see the type comment).
func (f *Fetcher) FetchFollows(ctx context.Context, client GraphClient, actor string) ([]bluesky.AccountRef, error) {
	var follows []bluesky.AccountRef
	cursor := ""

	for page := 1; f.maxPages <= 0 || page <= f.maxPages; page++ {
		result, err := f.getPage(ctx, client, actor, cursor)
		if err != nil {
			if errors.Is(err, bluesky.ErrAuthFailed) || ctx.Err() != nil {
				return nil, err
			}
			metrics.FollowFetchTruncations.Inc()
			metrics.FollowPagesFetched.Observe(float64(page - 1))
			f.logger.Warn().
				Err(err).
				Str("actor", actor).
				Int("pages_fetched", page-1).
				Int("follows_so_far", len(follows)).
				Msg("follow fetch truncated by upstream error")
			return follows, nil
		}

		follows = append(follows, result.Follows...)
		if result.Cursor == "" {
			metrics.FollowPagesFetched.Observe(float64(page))
			return follows, nil
		}
		cursor = result.Cursor
	}

	// Runaway guard tripped; treat like a truncation.
	metrics.FollowFetchTruncations.Inc()
	metrics.FollowPagesFetched.Observe(float64(f.maxPages))
	f.logger.Warn().
		Str("actor", actor).
		Int("max_pages", f.maxPages).
		Int("follows_so_far", len(follows)).
		Msg("follow fetch stopped at page cap")
	return follows, nil
}

// getPage fetches one follows page, optionally retrying a failure once.
func (f *Fetcher) getPage(ctx context.Context, client GraphClient, actor, cursor string) (*bluesky.FollowsPage, error) {
	result, err := client.GetFollows(ctx, actor, f.pageSize, cursor)
	if err == nil || !f.retryPage {
		return result, err
	}
	if errors.Is(err, bluesky.ErrAuthFailed) || ctx.Err() != nil {
		return nil, err
	}

	f.logger.Debug().Err(err).Str("actor", actor).Msg("retrying failed follows page")
	return client.GetFollows(ctx, actor, f.pageSize, cursor)
}
