// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tobifane/skylens/internal/auth"
	"github.com/tobifane/skylens/internal/bluesky"
	"github.com/tobifane/skylens/internal/config"
	"github.com/tobifane/skylens/internal/logging"
	"github.com/tobifane/skylens/internal/recommend"
)

// fakeClient is an in-memory bluesky.Client for end-to-end handler tests.
type fakeClient struct {
	mu sync.Mutex

	identifier string
	password   string
	session    bluesky.Session

	profiles    map[string]*bluesky.Profile
	suggestions []bluesky.AccountRef
	follows     map[string][]bluesky.AccountRef

	createErr   error
	profileErr  error
	suggestErr  error
	refreshErr  error
	token       string
	createCalls int
}

func (f *fakeClient) CreateSession(_ context.Context, identifier, password string) (*bluesky.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	if identifier != f.identifier || password != f.password {
		return nil, bluesky.ErrAuthFailed
	}
	s := f.session
	return &s, nil
}

func (f *fakeClient) RefreshSession(_ context.Context, _ string) (*bluesky.Session, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	s := f.session
	s.AccessJWT = "rotated.access.token"
	s.RefreshJWT = "rotated.refresh.token"
	return &s, nil
}

func (f *fakeClient) GetFollows(_ context.Context, actor string, _ int, _ string) (*bluesky.FollowsPage, error) {
	return &bluesky.FollowsPage{Follows: f.follows[actor]}, nil
}

func (f *fakeClient) GetProfile(_ context.Context, actor string) (*bluesky.Profile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	if p, ok := f.profiles[actor]; ok {
		copied := *p
		return &copied, nil
	}
	return &bluesky.Profile{DID: actor, Handle: actor}, nil
}

func (f *fakeClient) GetSuggestions(_ context.Context, _ int) ([]bluesky.AccountRef, error) {
	if f.suggestErr != nil {
		return nil, f.suggestErr
	}
	return f.suggestions, nil
}

func (f *fakeClient) WithToken(token string) bluesky.Client {
	clone := &fakeClient{
		identifier:  f.identifier,
		password:    f.password,
		session:     f.session,
		profiles:    f.profiles,
		suggestions: f.suggestions,
		follows:     f.follows,
		profileErr:  f.profileErr,
		suggestErr:  f.suggestErr,
		token:       token,
	}
	return clone
}

func newFakeClient() *fakeClient {
	display := "Alice"
	return &fakeClient{
		identifier: "alice.test",
		password:   "app-password",
		session: bluesky.Session{
			DID:        "did:plc:alice",
			Handle:     "alice.test",
			AccessJWT:  "upstream.access.token",
			RefreshJWT: "upstream.refresh.token",
		},
		profiles: map[string]*bluesky.Profile{
			"did:plc:alice": {
				DID:            "did:plc:alice",
				Handle:         "alice.test",
				DisplayName:    &display,
				FollowerCount:  42,
				FollowingCount: 10,
			},
		},
		suggestions: []bluesky.AccountRef{
			{DID: "did:plc:bob", Handle: "bob.test"},
			{DID: "did:plc:carol", Handle: "carol.test"},
		},
		follows: map[string][]bluesky.AccountRef{},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Security: config.SecurityConfig{
			JWTSecret:         "test-secret-that-is-long-enough-0123",
			SessionTimeout:    time.Hour,
			RateLimitDisabled: true,
			CORSOrigins:       []string{"*"},
		},
		Recommend: config.RecommendConfig{
			DefaultStrategy: recommend.StrategyBasic,
			DefaultLimit:    10,
			MaxLimit:        50,
		},
	}
}

// newTestServer wires the full stack against a fake upstream and returns the
// router plus its auth service for direct session manipulation.
func newTestServer(t *testing.T, client *fakeClient) (http.Handler, *auth.Service) {
	t.Helper()

	cfg := testConfig()
	logger := logging.NewTestLogger(io.Discard)

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	store := auth.NewMemorySessionStore()
	svc := auth.NewService(client, store, jwtManager, &cfg.Security, logger)
	authMW := auth.NewMiddleware(jwtManager, store, client, cfg.Security.SessionTimeout, logger)

	engine := recommend.NewEngine(&recommend.Config{
		DefaultStrategy: cfg.Recommend.DefaultStrategy,
		DefaultLimit:    cfg.Recommend.DefaultLimit,
		MaxLimit:        cfg.Recommend.MaxLimit,
	}, logger)

	handler := NewHandler(cfg, engine, svc, "test", logger)
	return NewRouter(cfg, handler, authMW, logger), svc
}

func decodeEnvelope(t *testing.T, body io.Reader) APIResponse {
	t.Helper()
	var env APIResponse
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func doLogin(t *testing.T, router http.Handler, identifier, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := strings.NewReader(`{"identifier":"` + identifier + `","password":"` + password + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// loginToken logs in with the fake account and returns the bearer token.
func loginToken(t *testing.T, router http.Handler) string {
	t.Helper()
	rr := doLogin(t, router, "alice.test", "app-password")
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr.Body)
	data, ok := env.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("login data is %T, want object", env.Data)
	}
	token, ok := data["token"].(string)
	if !ok || token == "" {
		t.Fatal("login response has no token")
	}
	return token
}

func authedGet(router http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func authedPost(router http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	router, _ := newTestServer(t, newFakeClient())

	rr := authedGet(router, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	env := decodeEnvelope(t, rr.Body)
	if !env.Success {
		t.Error("Success = false, want true")
	}
	data := env.Data.(map[string]interface{})
	if data["status"] != "ok" {
		t.Errorf("status = %v, want ok", data["status"])
	}
	if data["version"] != "test" {
		t.Errorf("version = %v, want test", data["version"])
	}
}

func TestLoginSuccess(t *testing.T) {
	router, _ := newTestServer(t, newFakeClient())

	rr := doLogin(t, router, "alice.test", "app-password")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	env := decodeEnvelope(t, rr.Body)
	data := env.Data.(map[string]interface{})
	if data["did"] != "did:plc:alice" {
		t.Errorf("did = %v, want did:plc:alice", data["did"])
	}
	if data["handle"] != "alice.test" {
		t.Errorf("handle = %v, want alice.test", data["handle"])
	}
	token, _ := data["token"].(string)
	if strings.Contains(token, "upstream.access.token") {
		t.Error("issued token must not embed the upstream access token")
	}
	if env.Meta == nil || env.Meta.RequestID == "" {
		t.Error("meta.request_id missing")
	}
}

func TestLoginBadCredentials(t *testing.T) {
	router, _ := newTestServer(t, newFakeClient())

	rr := doLogin(t, router, "alice.test", "wrong")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}

	env := decodeEnvelope(t, rr.Body)
	if env.Success {
		t.Error("Success = true, want false")
	}
	if env.Error == nil || env.Error.Code != ErrCodeUnauthorized {
		t.Errorf("error = %+v, want code %s", env.Error, ErrCodeUnauthorized)
	}
}

func TestLoginValidation(t *testing.T) {
	router, _ := newTestServer(t, newFakeClient())

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"identifier":`},
		{"missing identifier", `{"password":"pw"}`},
		{"missing password", `{"identifier":"alice.test"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestLoginUpstreamDown(t *testing.T) {
	client := newFakeClient()
	client.createErr = errors.New("createSession: status 503")
	router, _ := newTestServer(t, client)

	rr := doLogin(t, router, "alice.test", "app-password")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	env := decodeEnvelope(t, rr.Body)
	if env.Error == nil || env.Error.Code != ErrCodeExternalServiceFail {
		t.Errorf("error = %+v, want code %s", env.Error, ErrCodeExternalServiceFail)
	}
}

func TestRecommendationsRequireAuth(t *testing.T) {
	router, _ := newTestServer(t, newFakeClient())

	for _, token := range []string{"", "garbage-token"} {
		rr := authedGet(router, "/api/v1/recommendations", token)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, rr.Code)
		}
	}
}

func TestRecommendationsFlow(t *testing.T) {
	router, _ := newTestServer(t, newFakeClient())
	token := loginToken(t, router)

	rr := authedGet(router, "/api/v1/recommendations", token)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	env := decodeEnvelope(t, rr.Body)
	data := env.Data.(map[string]interface{})
	if data["strategy"] != recommend.StrategyBasic {
		t.Errorf("strategy = %v, want %s", data["strategy"], recommend.StrategyBasic)
	}
	recs, ok := data["recommendations"].([]interface{})
	if !ok {
		t.Fatalf("recommendations is %T, want array", data["recommendations"])
	}
	if len(recs) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(recs))
	}
	first := recs[0].(map[string]interface{})
	if first["reason"] == "" {
		t.Error("recommendation has empty reason")
	}
}

func TestRecommendationsParamValidation(t *testing.T) {
	router, _ := newTestServer(t, newFakeClient())
	token := loginToken(t, router)

	tests := []struct {
		name  string
		query string
	}{
		{"non-integer limit", "?limit=abc"},
		{"negative limit", "?limit=-1"},
		{"unknown strategy", "?strategy=bogus"},
		{"non-integer threshold", "?min_common_follows=x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := authedGet(router, "/api/v1/recommendations"+tt.query, token)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400, body %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestRecommendationsZeroLimit(t *testing.T) {
	router, _ := newTestServer(t, newFakeClient())
	token := loginToken(t, router)

	rr := authedGet(router, "/api/v1/recommendations?limit=0", token)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	env := decodeEnvelope(t, rr.Body)
	data := env.Data.(map[string]interface{})
	recs := data["recommendations"].([]interface{})
	if len(recs) != 0 {
		t.Errorf("got %d recommendations with limit=0, want 0", len(recs))
	}
}

func TestRecommendationsCommonFollowersNeedsSeeds(t *testing.T) {
	router, _ := newTestServer(t, newFakeClient())
	token := loginToken(t, router)

	rr := authedGet(router, "/api/v1/recommendations?strategy=common-followers&seeds=bob.test", token)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr.Body)
	if env.Error == nil || env.Error.Code != ErrCodeBadRequest {
		t.Errorf("error = %+v, want code %s", env.Error, ErrCodeBadRequest)
	}
}

func TestProfile(t *testing.T) {
	router, _ := newTestServer(t, newFakeClient())
	token := loginToken(t, router)

	rr := authedGet(router, "/api/v1/profile", token)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr.Body)
	data := env.Data.(map[string]interface{})
	if data["did"] != "did:plc:alice" {
		t.Errorf("did = %v, want did:plc:alice", data["did"])
	}
	if data["displayName"] != "Alice" {
		t.Errorf("displayName = %v, want Alice", data["displayName"])
	}
}

func TestStrategiesEndpoint(t *testing.T) {
	router, _ := newTestServer(t, newFakeClient())
	token := loginToken(t, router)

	rr := authedGet(router, "/api/v1/strategies", token)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	env := decodeEnvelope(t, rr.Body)
	data := env.Data.(map[string]interface{})
	names, ok := data["strategies"].([]interface{})
	if !ok || len(names) != 2 {
		t.Fatalf("strategies = %v, want 2 entries", data["strategies"])
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	router, _ := newTestServer(t, newFakeClient())
	token := loginToken(t, router)

	rr := authedPost(router, "/api/v1/auth/logout", token)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d, want 204", rr.Code)
	}

	rr = authedGet(router, "/api/v1/recommendations", token)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status after logout = %d, want 401", rr.Code)
	}
}

func TestLogoutAll(t *testing.T) {
	router, _ := newTestServer(t, newFakeClient())
	first := loginToken(t, router)
	second := loginToken(t, router)

	rr := authedPost(router, "/api/v1/auth/logout/all", first)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout/all status = %d, want 200", rr.Code)
	}
	env := decodeEnvelope(t, rr.Body)
	data := env.Data.(map[string]interface{})
	if revoked, _ := data["revoked"].(float64); revoked != 2 {
		t.Errorf("revoked = %v, want 2", data["revoked"])
	}

	for _, token := range []string{first, second} {
		if rr := authedGet(router, "/api/v1/profile", token); rr.Code != http.StatusUnauthorized {
			t.Errorf("status after logout/all = %d, want 401", rr.Code)
		}
	}
}

func TestRefreshIssuesNewToken(t *testing.T) {
	router, _ := newTestServer(t, newFakeClient())
	token := loginToken(t, router)

	rr := authedPost(router, "/api/v1/auth/refresh", token)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr.Body)
	data := env.Data.(map[string]interface{})
	fresh, _ := data["token"].(string)
	if fresh == "" {
		t.Fatal("refresh response has no token")
	}

	if rr := authedGet(router, "/api/v1/profile", fresh); rr.Code != http.StatusOK {
		t.Errorf("status with refreshed token = %d, want 200", rr.Code)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	router, _ := newTestServer(t, newFakeClient())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "upstream-req-42")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); got != "upstream-req-42" {
		t.Errorf("X-Request-ID = %q, want upstream-req-42", got)
	}
	env := decodeEnvelope(t, rr.Body)
	if env.Meta == nil || env.Meta.RequestID != "upstream-req-42" {
		t.Errorf("meta.request_id = %+v, want upstream-req-42", env.Meta)
	}
}
