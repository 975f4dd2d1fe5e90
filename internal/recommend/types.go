// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

// Package recommend implements the SkyLens recommendation engine: paginated
// follow-graph retrieval, cross-seed aggregation, bounded-concurrency profile
// hydration, heuristic scoring, and assembly into ranked recommendations.
//
// Two strategies are available behind one interface:
//
//   - common-followers: intersects the follow sets of configured seed
//     accounts and recommends accounts followed by at least k seeds that the
//     target does not already follow.
//   - basic: scores AppView-suggested accounts by engagement, profile
//     completeness, and an activity proxy.
//
// All values are request-scoped; nothing is cached across requests.
package recommend

import (
	"time"

	"github.com/tobifane/skylens/internal/bluesky"
)

// Candidate is an account surviving aggregation, with the number of seed
// accounts that follow it.
type Candidate struct {
	Ref   bluesky.AccountRef
	Count int
}

// Recommendation is one ranked result. Immutable once assembled.
type Recommendation struct {
	Profile  bluesky.Profile `json:"profile"`
	Score    float64         `json:"score"`
	Reason   string          `json:"reason"`
	Strategy string          `json:"strategy"`
}

// Request describes one recommendation request. Zero-valued fields fall back
// to the engine's configured defaults (strategy, seeds, threshold); Limit is
// taken as-is, with values <= 0 producing an empty result.
type Request struct {
	// Actor is the account recommendations are computed for (handle or DID).
	Actor string

	Limit    int
	Strategy string

	// Seeds overrides the configured seed accounts for the common-followers
	// strategy. At least two are required when set.
	Seeds []string

	// MinCommonFollows overrides the configured threshold k when > 0.
	MinCommonFollows int

	RequestID string
}

// Response is the engine's output for one request.
type Response struct {
	Recommendations []Recommendation `json:"recommendations"`
	Metadata        ResponseMetadata `json:"metadata"`
}

// ResponseMetadata carries diagnostics about how a response was produced.
type ResponseMetadata struct {
	RequestID   string        `json:"request_id"`
	Actor       string        `json:"actor"`
	Strategy    string        `json:"strategy"`
	Candidates  int           `json:"candidates"`
	Latency     time.Duration `json:"latency_ms"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Config holds recommendation pipeline settings.
type Config struct {
	DefaultStrategy string
	DefaultLimit    int
	MaxLimit        int

	// PageSize is the follows-per-page requested upstream (protocol max 100).
	PageSize int
	// MaxPages caps pagination per actor. Zero means no cap.
	MaxPages int
	// RetryFailedPage retries a failed follows page once before truncating.
	RetryFailedPage bool

	FetchConcurrency   int
	HydrateConcurrency int

	// Seeds are the default seed accounts for the common-followers strategy.
	Seeds []string
	// MinCommonFollows is the default threshold k.
	MinCommonFollows int
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultStrategy:    StrategyCommonFollowers,
		DefaultLimit:       10,
		MaxLimit:           100,
		PageSize:           100,
		MaxPages:           50,
		RetryFailedPage:    false,
		FetchConcurrency:   8,
		HydrateConcurrency: 8,
		MinCommonFollows:   2,
	}
}

// withDefaults fills in zero values so a partially populated Config behaves.
func (c *Config) withDefaults() *Config {
	out := *c
	def := DefaultConfig()
	if out.DefaultStrategy == "" {
		out.DefaultStrategy = def.DefaultStrategy
	}
	if out.DefaultLimit < 1 {
		out.DefaultLimit = def.DefaultLimit
	}
	if out.MaxLimit < out.DefaultLimit {
		out.MaxLimit = def.MaxLimit
	}
	if out.PageSize < 1 || out.PageSize > 100 {
		out.PageSize = def.PageSize
	}
	if out.MaxPages < 0 {
		out.MaxPages = def.MaxPages
	}
	if out.FetchConcurrency < 1 {
		out.FetchConcurrency = def.FetchConcurrency
	}
	if out.HydrateConcurrency < 1 {
		out.HydrateConcurrency = def.HydrateConcurrency
	}
	if out.MinCommonFollows < 1 {
		out.MinCommonFollows = def.MinCommonFollows
	}
	return &out
}
