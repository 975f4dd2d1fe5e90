// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package recommend

import (
	"context"

	"github.com/tobifane/skylens/internal/bluesky"
)

// Strategy names, as used in configuration and the strategy query parameter.
const (
	StrategyCommonFollowers = "common-followers"
	StrategyBasic           = "basic"
)

// GraphClient is the subset of the Bluesky client the engine consumes.
// The client must already be authenticated; the engine never manages
// sessions itself and receives the handle per request.
//
// Implementations must wrap bluesky.ErrAuthFailed on authorization failures
// so strategies can abort instead of degrading to partial results.
type GraphClient interface {
	GetFollows(ctx context.Context, actor string, limit int, cursor string) (*bluesky.FollowsPage, error)
	GetProfile(ctx context.Context, actor string) (*bluesky.Profile, error)
	GetSuggestions(ctx context.Context, limit int) ([]bluesky.AccountRef, error)
}

// Strategy produces scored recommendations for one request. Implementations
// are stateless across requests and safe for concurrent use; the caller
// sorts and truncates the returned slice.
type Strategy interface {
	Name() string
	Recommend(ctx context.Context, client GraphClient, req Request) ([]Recommendation, error)
}
