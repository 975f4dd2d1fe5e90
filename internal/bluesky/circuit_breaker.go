// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package bluesky

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tobifane/skylens/internal/logging"
	"github.com/tobifane/skylens/internal/metrics"
)

// CircuitBreakerClient wraps a Client with the circuit breaker pattern so
// repeated upstream failures trip open instead of piling up timeouts.
//
// DETERMINISM NOTE: the breaker uses real time (via sony/gobreaker) for its
// interval and timeout calculations. Unit tests should exercise the wrapped
// client directly, or drive the breaker through failures.
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewCircuitBreakerClient wraps client with a circuit breaker.
// Breaker configuration:
//   - Max 3 concurrent requests in half-open state
//   - 1 minute measurement window in closed state
//   - 1 minute open period before attempting recovery
//   - Opens after a 60% failure rate with at least 10 requests
//
// Auth failures are the caller's problem, not the upstream's, so
// ErrAuthFailed does not count toward the failure rate.
func NewCircuitBreakerClient(client Client) *CircuitBreakerClient {
	cbName := "bluesky-xrpc"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrAuthFailed)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerClient{client: client, cb: cb, name: cbName}
}

// WithToken returns an authenticated client sharing this breaker, so
// per-session clients contribute to (and are guarded by) one shared state.
func (cbc *CircuitBreakerClient) WithToken(token string) Client {
	return &CircuitBreakerClient{
		client: cbc.client.WithToken(token),
		cb:     cbc.cb,
		name:   cbc.name,
	}
}

// execute wraps an upstream call with circuit breaker protection.
func (cbc *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cbc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRejections.Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		}
		return nil, err
	}
	return result, nil
}

// castResult type-casts the circuit breaker result with error checking.
func castResult[T any](result interface{}, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CreateSession authenticates with circuit breaker protection.
func (cbc *CircuitBreakerClient) CreateSession(ctx context.Context, identifier, password string) (*Session, error) {
	return castResult[Session](cbc.execute(func() (interface{}, error) {
		return cbc.client.CreateSession(ctx, identifier, password)
	}))
}

// RefreshSession refreshes a session with circuit breaker protection.
func (cbc *CircuitBreakerClient) RefreshSession(ctx context.Context, refreshJWT string) (*Session, error) {
	return castResult[Session](cbc.execute(func() (interface{}, error) {
		return cbc.client.RefreshSession(ctx, refreshJWT)
	}))
}

// GetFollows retrieves a follows page with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetFollows(ctx context.Context, actor string, limit int, cursor string) (*FollowsPage, error) {
	return castResult[FollowsPage](cbc.execute(func() (interface{}, error) {
		return cbc.client.GetFollows(ctx, actor, limit, cursor)
	}))
}

// GetProfile retrieves a profile with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetProfile(ctx context.Context, actor string) (*Profile, error) {
	return castResult[Profile](cbc.execute(func() (interface{}, error) {
		return cbc.client.GetProfile(ctx, actor)
	}))
}

// GetSuggestions retrieves suggested accounts with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetSuggestions(ctx context.Context, limit int) ([]AccountRef, error) {
	result, err := cbc.execute(func() (interface{}, error) {
		return cbc.client.GetSuggestions(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	refs, ok := result.([]AccountRef)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return refs, nil
}
