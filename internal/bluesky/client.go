// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

// Package bluesky implements an AT Protocol XRPC client for the subset of
// endpoints SkyLens needs: session management, follow-graph reads, profile
// lookups, and AppView suggestions.
//
// Resilience mechanisms:
//   - Client-side rate limiting (golang.org/x/time/rate) shared across calls
//   - Exponential backoff on HTTP 429, honoring Retry-After
//   - Optional circuit breaker wrapper (see circuit_breaker.go)
//   - Context support for cancellation on every call
package bluesky

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tobifane/skylens/internal/config"
	"github.com/tobifane/skylens/internal/metrics"
)

// XRPC endpoint names, as they appear in request paths and metrics labels.
const (
	endpointCreateSession  = "com.atproto.server.createSession"
	endpointRefreshSession = "com.atproto.server.refreshSession"
	endpointGetFollows     = "app.bsky.graph.getFollows"
	endpointGetProfile     = "app.bsky.actor.getProfile"
	endpointGetSuggestions = "app.bsky.actor.getSuggestions"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics, preventing unbounded allocation on large upstream errors.
const maxErrorBodySize = 64 * 1024 // 64KB

// ErrAuthFailed indicates the upstream rejected the credentials or session
// token. Callers must abort the whole operation instead of degrading to
// partial results.
var ErrAuthFailed = errors.New("bluesky authentication failed")

// errRateLimited is returned after 429 retries are exhausted.
var errRateLimited = errors.New("bluesky rate limit exceeded")

// Client defines the upstream operations SkyLens performs against a PDS or
// AppView. Implemented by XRPCClient for production use and by mocks in
// tests. All methods are safe for concurrent use.
type Client interface {
	CreateSession(ctx context.Context, identifier, password string) (*Session, error)
	RefreshSession(ctx context.Context, refreshJWT string) (*Session, error)
	GetFollows(ctx context.Context, actor string, limit int, cursor string) (*FollowsPage, error)
	GetProfile(ctx context.Context, actor string) (*Profile, error)
	GetSuggestions(ctx context.Context, limit int) ([]AccountRef, error)

	// WithToken returns a client authenticated with the given access token.
	// The returned client shares the underlying transport and rate limiter.
	WithToken(token string) Client
}

// XRPCClient communicates with a Bluesky service over XRPC.
//
// Thread safety: safe for concurrent use; each request creates its own
// http.Request and the rate limiter is internally synchronized.
type XRPCClient struct {
	baseURL        string
	client         *http.Client
	limiter        *rate.Limiter
	accessJWT      string
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewClient creates an XRPC client from configuration.
func NewClient(cfg *config.BlueskyConfig) *XRPCClient {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	maxRetries := cfg.MaxRetries429
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &XRPCClient{
		baseURL: cfg.ServiceURL,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:        limiter,
		maxRetries:     maxRetries,
		retryBaseDelay: time.Second, // doubles each retry: 1s, 2s, 4s, ...
	}
}

// WithToken returns a copy of the client that sends the given access token
// as a Bearer credential on every call.
func (c *XRPCClient) WithToken(token string) Client {
	clone := *c
	clone.accessJWT = token
	return &clone
}

// CreateSession authenticates with an identifier (handle or DID) and an app
// password. Invalid credentials map to ErrAuthFailed.
func (c *XRPCClient) CreateSession(ctx context.Context, identifier, password string) (*Session, error) {
	body := map[string]string{
		"identifier": identifier,
		"password":   password,
	}
	var resp sessionResponse
	if err := c.call(ctx, http.MethodPost, endpointCreateSession, nil, body, "", &resp); err != nil {
		return nil, err
	}
	return resp.toSession(), nil
}

// RefreshSession exchanges a refresh token for a new session.
func (c *XRPCClient) RefreshSession(ctx context.Context, refreshJWT string) (*Session, error) {
	var resp sessionResponse
	if err := c.call(ctx, http.MethodPost, endpointRefreshSession, nil, nil, refreshJWT, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(), nil
}

// GetFollows returns one page of the accounts the actor follows. The
// protocol caps limit at 100; an empty returned cursor means the end.
func (c *XRPCClient) GetFollows(ctx context.Context, actor string, limit int, cursor string) (*FollowsPage, error) {
	params := url.Values{}
	params.Set("actor", actor)
	params.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var resp followsResponse
	if err := c.call(ctx, http.MethodGet, endpointGetFollows, params, nil, "", &resp); err != nil {
		return nil, err
	}

	page := &FollowsPage{Follows: make([]AccountRef, 0, len(resp.Follows))}
	for _, f := range resp.Follows {
		page.Follows = append(page.Follows, AccountRef{DID: f.DID, Handle: f.Handle})
	}
	if resp.Cursor != nil {
		page.Cursor = *resp.Cursor
	}
	return page, nil
}

// GetProfile returns the detailed profile of an actor (handle or DID).
func (c *XRPCClient) GetProfile(ctx context.Context, actor string) (*Profile, error) {
	params := url.Values{}
	params.Set("actor", actor)

	var resp actorView
	if err := c.call(ctx, http.MethodGet, endpointGetProfile, params, nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.toProfile(), nil
}

// GetSuggestions returns AppView-suggested accounts for the session user.
func (c *XRPCClient) GetSuggestions(ctx context.Context, limit int) ([]AccountRef, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	var resp suggestionsResponse
	if err := c.call(ctx, http.MethodGet, endpointGetSuggestions, params, nil, "", &resp); err != nil {
		return nil, err
	}

	refs := make([]AccountRef, 0, len(resp.Actors))
	for _, a := range resp.Actors {
		refs = append(refs, AccountRef{DID: a.DID, Handle: a.Handle})
	}
	return refs, nil
}

// call performs an XRPC request with rate limiting, 429 backoff, metrics,
// and JSON decoding. token overrides the client's access token when set.
func (c *XRPCClient) call(ctx context.Context, method, endpoint string, params url.Values, body interface{}, token string, result interface{}) error {
	start := time.Now()

	var bodyBytes []byte
	if body != nil {
		var err error
		if bodyBytes, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal %s request: %w", endpoint, err)
		}
	}
	if token == "" {
		token = c.accessJWT
	}

	resp, err := c.doRequestWithRateLimit(ctx, method, endpoint, params, bodyBytes, token)
	if err != nil {
		outcome := "error"
		if errors.Is(err, errRateLimited) {
			outcome = "rate_limited"
		}
		metrics.RecordXRPCRequest(endpoint, outcome, time.Since(start))
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		metrics.RecordXRPCRequest(endpoint, "auth_error", time.Since(start))
		return fmt.Errorf("%s: %w", endpoint, ErrAuthFailed)
	case endpoint == endpointCreateSession && resp.StatusCode == http.StatusBadRequest:
		// createSession reports bad identifiers as 400 AuthenticationRequired.
		metrics.RecordXRPCRequest(endpoint, "auth_error", time.Since(start))
		return fmt.Errorf("%s: %w", endpoint, ErrAuthFailed)
	case resp.StatusCode != http.StatusOK:
		metrics.RecordXRPCRequest(endpoint, "error", time.Since(start))
		errBody := readBodyForError(resp.Body)
		return fmt.Errorf("%s failed with status %d: %s", endpoint, resp.StatusCode, string(errBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		metrics.RecordXRPCRequest(endpoint, "error", time.Since(start))
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}

	metrics.RecordXRPCRequest(endpoint, "success", time.Since(start))
	return nil
}

// doRequestWithRateLimit performs an HTTP request with the client-side rate
// limiter and exponential backoff on HTTP 429 (1s, 2s, 4s, ... or the
// Retry-After header when present).
func (c *XRPCClient) doRequestWithRateLimit(ctx context.Context, method, endpoint string, params url.Values, bodyBytes []byte, token string) (*http.Response, error) {
	reqURL := fmt.Sprintf("%s/xrpc/%s", c.baseURL, endpoint)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var reqBody io.Reader = http.NoBody
		if bodyBytes != nil {
			reqBody = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return nil, fmt.Errorf("create %s request: %w", endpoint, err)
		}
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s request failed: %w", endpoint, err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()
		if attempt == c.maxRetries {
			return nil, fmt.Errorf("%s: %w after %d retries", endpoint, errRateLimited, c.maxRetries)
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if wait, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
			delay = wait
		}
		metrics.XRPCRetries.WithLabelValues(endpoint).Inc()

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// parseRetryAfter handles both Retry-After forms from RFC 9110: delta-seconds
// and an HTTP-date. Anything unparseable (or a date in the past) reports
// ok=false so the caller keeps its exponential delay.
func parseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait, true
		}
	}
	return 0, false
}

// readBodyForError reads up to maxErrorBodySize of a response body for error
// reporting.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("... (truncated)")...)
	}
	return body
}

// Wire types for XRPC responses.

type sessionResponse struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

func (r *sessionResponse) toSession() *Session {
	return &Session{
		DID:        r.DID,
		Handle:     r.Handle,
		AccessJWT:  r.AccessJwt,
		RefreshJWT: r.RefreshJwt,
	}
}

type actorView struct {
	DID            string  `json:"did"`
	Handle         string  `json:"handle"`
	DisplayName    *string `json:"displayName"`
	Description    *string `json:"description"`
	Avatar         *string `json:"avatar"`
	FollowersCount int     `json:"followersCount"`
	FollowsCount   int     `json:"followsCount"`
}

func (a *actorView) toProfile() *Profile {
	return &Profile{
		DID:            a.DID,
		Handle:         a.Handle,
		DisplayName:    a.DisplayName,
		Description:    a.Description,
		AvatarURL:      a.Avatar,
		FollowerCount:  a.FollowersCount,
		FollowingCount: a.FollowsCount,
	}
}

type followsResponse struct {
	Follows []actorView `json:"follows"`
	Cursor  *string     `json:"cursor"`
}

type suggestionsResponse struct {
	Actors []actorView `json:"actors"`
}
