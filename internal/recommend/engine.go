// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tobifane/skylens/internal/bluesky"
	"github.com/tobifane/skylens/internal/logging"
	"github.com/tobifane/skylens/internal/metrics"
)

// Engine owns strategy selection and assembles strategy output into the
// final ranked, truncated response. One engine serves all requests; the
// authenticated client arrives per call.
type Engine struct {
	config     *Config
	strategies map[string]Strategy
	logger     zerolog.Logger
}

// NewEngine creates an engine with both built-in strategies registered.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewEngine(cfg *Config, logger zerolog.Logger) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		config:     cfg,
		strategies: make(map[string]Strategy),
		logger:     logger,
	}
	e.RegisterStrategy(NewCommonFollowers(cfg, logger))
	e.RegisterStrategy(NewBasic(cfg, logger))
	return e
}

// RegisterStrategy adds or replaces a strategy under its name.
func (e *Engine) RegisterStrategy(s Strategy) {
	e.strategies[s.Name()] = s
}

// Strategies returns the registered strategy names, sorted.
func (e *Engine) Strategies() []string {
	names := make([]string, 0, len(e.strategies))
	for name := range e.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Recommend runs one request through the selected strategy and assembles the
// response. Limit is clamped to the configured maximum; a limit <= 0 yields
// an empty response without touching the upstream.
func (e *Engine) Recommend(ctx context.Context, client GraphClient, req Request) (*Response, error) {
	start := time.Now()

	if req.Strategy == "" {
		req.Strategy = e.config.DefaultStrategy
	}
	if req.Limit > e.config.MaxLimit {
		req.Limit = e.config.MaxLimit
	}
	if req.RequestID == "" {
		req.RequestID = logging.RequestIDFromContext(ctx)
	}

	strategy, ok := e.strategies[req.Strategy]
	if !ok {
		metrics.RecommendRequestsTotal.WithLabelValues(req.Strategy, "config_error").Inc()
		return nil, &ConfigError{Reason: fmt.Sprintf("unknown strategy %q", req.Strategy)}
	}

	logger := e.logger.With().
		Str("strategy", req.Strategy).
		Str("actor", req.Actor).
		Str("request_id", req.RequestID).
		Logger()

	if req.Limit <= 0 {
		logger.Debug().Int("limit", req.Limit).Msg("non-positive limit, returning empty response")
		return e.respond(req, nil, 0, start), nil
	}

	recs, err := strategy.Recommend(ctx, client, req)
	if err != nil {
		outcome := "error"
		switch {
		case IsConfigError(err):
			outcome = "config_error"
		case isAuthError(err):
			outcome = "auth_error"
		}
		metrics.RecommendRequestsTotal.WithLabelValues(req.Strategy, outcome).Inc()
		logger.Warn().Err(err).Msg("recommendation request failed")
		return nil, err
	}

	candidates := len(recs)
	recs = assemble(recs, req.Limit)

	metrics.RecommendRequestsTotal.WithLabelValues(req.Strategy, "success").Inc()
	metrics.RecommendDuration.WithLabelValues(req.Strategy).Observe(time.Since(start).Seconds())
	logger.Info().
		Int("candidates", candidates).
		Int("returned", len(recs)).
		Dur("latency", time.Since(start)).
		Msg("recommendations generated")

	return e.respond(req, recs, candidates, start), nil
}

func (e *Engine) respond(req Request, recs []Recommendation, candidates int, start time.Time) *Response {
	if recs == nil {
		recs = []Recommendation{}
	}
	return &Response{
		Recommendations: recs,
		Metadata: ResponseMetadata{
			RequestID:   req.RequestID,
			Actor:       req.Actor,
			Strategy:    req.Strategy,
			Candidates:  candidates,
			Latency:     time.Since(start),
			GeneratedAt: time.Now().UTC(),
		},
	}
}

// assemble sorts recommendations by descending score with a lexicographic
// DID tie-break and truncates to limit. A limit <= 0 yields an empty slice,
// not an error; a limit beyond the slice returns everything.
func assemble(recs []Recommendation, limit int) []Recommendation {
	if limit <= 0 {
		return []Recommendation{}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Profile.DID < recs[j].Profile.DID
	})

	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

func isAuthError(err error) bool {
	return errors.Is(err, bluesky.ErrAuthFailed)
}
