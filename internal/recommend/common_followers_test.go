// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package recommend

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/tobifane/skylens/internal/bluesky"
	"github.com/tobifane/skylens/internal/logging"
)

func newCommonFollowersGraph() *fakeGraph {
	fake := newFakeGraph()
	// Target follows X; seed one follows X, Y, Z; seed two follows Y, Z, W.
	fake.setFollows("did:plc:target", acct("x"))
	fake.setFollows("did:plc:seed1", acct("x"), acct("y"), acct("z"))
	fake.setFollows("did:plc:seed2", acct("y"), acct("z"), acct("w"))
	return fake
}

func commonFollowersStrategy(seeds []string, k int) *CommonFollowers {
	cfg := &Config{Seeds: seeds, MinCommonFollows: k}
	return NewCommonFollowers(cfg, logging.NewTestLogger(&bytes.Buffer{}))
}

func TestCommonFollowersRecommend(t *testing.T) {
	fake := newCommonFollowersGraph()
	s := commonFollowersStrategy([]string{"did:plc:seed1", "did:plc:seed2"}, 2)

	recs, err := s.Recommend(context.Background(), fake, Request{Actor: "did:plc:target", Limit: 10})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	// Y and Z are followed by both seeds; W by one; X is already followed.
	if len(recs) != 2 {
		t.Fatalf("got %d recommendations, want 2: %+v", len(recs), recs)
	}
	if recs[0].Profile.DID != "did:plc:y" || recs[1].Profile.DID != "did:plc:z" {
		t.Errorf("unexpected order: %s, %s", recs[0].Profile.DID, recs[1].Profile.DID)
	}
	for _, r := range recs {
		if r.Score != 2.0 {
			t.Errorf("%s: score = %v, want 2.0", r.Profile.DID, r.Score)
		}
		if r.Reason != "Followed by 2 of your seed accounts" {
			t.Errorf("%s: reason = %q", r.Profile.DID, r.Reason)
		}
		if r.Strategy != StrategyCommonFollowers {
			t.Errorf("%s: strategy = %q", r.Profile.DID, r.Strategy)
		}
	}
}

func TestCommonFollowersRequiresTwoSeeds(t *testing.T) {
	tests := []struct {
		name  string
		seeds []string
	}{
		{"no seeds", nil},
		{"one seed", []string{"did:plc:seed1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newCommonFollowersGraph()
			s := commonFollowersStrategy(tt.seeds, 2)

			_, err := s.Recommend(context.Background(), fake, Request{Actor: "did:plc:target", Limit: 10})
			if !IsConfigError(err) {
				t.Fatalf("Recommend() error = %v, want ConfigError", err)
			}
			// Validation must reject the request before any upstream call.
			if fake.callCount() != 0 {
				t.Errorf("made %d upstream calls before failing validation, want 0", fake.callCount())
			}
		})
	}
}

func TestCommonFollowersDeterministic(t *testing.T) {
	fake := newCommonFollowersGraph()
	s := commonFollowersStrategy([]string{"did:plc:seed1", "did:plc:seed2"}, 2)
	req := Request{Actor: "did:plc:target", Limit: 10}

	first, err := s.Recommend(context.Background(), fake, req)
	if err != nil {
		t.Fatalf("first Recommend() error = %v", err)
	}
	second, err := s.Recommend(context.Background(), fake, req)
	if err != nil {
		t.Fatalf("second Recommend() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("identical inputs produced different output:\n%+v\n%+v", first, second)
	}
}

func TestCommonFollowersDedupesWithinSeed(t *testing.T) {
	fake := newFakeGraph()
	fake.setFollows("did:plc:target")
	// Seed one lists Y twice; duplicate edges must count once per seed.
	fake.setFollows("did:plc:seed1", acct("y"), acct("y"))
	fake.setFollows("did:plc:seed2", acct("w"))

	s := commonFollowersStrategy([]string{"did:plc:seed1", "did:plc:seed2"}, 2)
	recs, err := s.Recommend(context.Background(), fake, Request{Actor: "did:plc:target", Limit: 10})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("duplicate edges within one seed inflated the count: %+v", recs)
	}
}

func TestCommonFollowersExcludesTarget(t *testing.T) {
	fake := newFakeGraph()
	fake.setFollows("did:plc:target")
	target := bluesky.AccountRef{DID: "did:plc:target", Handle: "target.test"}
	fake.setFollows("did:plc:seed1", target, acct("y"))
	fake.setFollows("did:plc:seed2", target, acct("y"))

	s := commonFollowersStrategy([]string{"did:plc:seed1", "did:plc:seed2"}, 2)
	recs, err := s.Recommend(context.Background(), fake, Request{Actor: "did:plc:target", Limit: 10})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs) != 1 || recs[0].Profile.DID != "did:plc:y" {
		t.Errorf("target must never be recommended to itself: %+v", recs)
	}
}

func TestCommonFollowersEmptyResultIsNotAnError(t *testing.T) {
	fake := newFakeGraph()
	fake.setFollows("did:plc:target")
	fake.setFollows("did:plc:seed1", acct("a"))
	fake.setFollows("did:plc:seed2", acct("b"))

	s := commonFollowersStrategy([]string{"did:plc:seed1", "did:plc:seed2"}, 2)
	recs, err := s.Recommend(context.Background(), fake, Request{Actor: "did:plc:target", Limit: 10})
	if err != nil {
		t.Fatalf("Recommend() error = %v, want nil for an empty result", err)
	}
	if len(recs) != 0 {
		t.Errorf("got %d recommendations, want 0", len(recs))
	}
}

func TestCommonFollowersAuthErrorAborts(t *testing.T) {
	fake := newCommonFollowersGraph()
	fake.err = bluesky.ErrAuthFailed

	s := commonFollowersStrategy([]string{"did:plc:seed1", "did:plc:seed2"}, 2)
	_, err := s.Recommend(context.Background(), fake, Request{Actor: "did:plc:target", Limit: 10})
	if !errors.Is(err, bluesky.ErrAuthFailed) {
		t.Fatalf("Recommend() error = %v, want ErrAuthFailed", err)
	}
}

func TestCommonFollowersDropsUnhydratableCandidates(t *testing.T) {
	fake := newCommonFollowersGraph()
	fake.profileErr["did:plc:z"] = errors.New("upstream 500")

	s := commonFollowersStrategy([]string{"did:plc:seed1", "did:plc:seed2"}, 2)
	recs, err := s.Recommend(context.Background(), fake, Request{Actor: "did:plc:target", Limit: 10})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs) != 1 || recs[0].Profile.DID != "did:plc:y" {
		t.Errorf("expected only the hydratable candidate to survive: %+v", recs)
	}
}

func TestCommonFollowersRequestOverrides(t *testing.T) {
	fake := newCommonFollowersGraph()
	// Configured seeds are bogus; the request supplies the real ones and
	// drops the threshold to 1.
	s := commonFollowersStrategy([]string{"did:plc:unused1", "did:plc:unused2"}, 2)

	recs, err := s.Recommend(context.Background(), fake, Request{
		Actor:            "did:plc:target",
		Limit:            10,
		Seeds:            []string{"did:plc:seed1", "did:plc:seed2"},
		MinCommonFollows: 1,
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	// With k=1, W qualifies too; counts rank Y and Z above it.
	wantOrder := []string{"did:plc:y", "did:plc:z", "did:plc:w"}
	if len(recs) != len(wantOrder) {
		t.Fatalf("got %d recommendations, want %d: %+v", len(recs), len(wantOrder), recs)
	}
	for i, want := range wantOrder {
		if recs[i].Profile.DID != want {
			t.Errorf("recs[%d].DID = %s, want %s", i, recs[i].Profile.DID, want)
		}
	}
}
