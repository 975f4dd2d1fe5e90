// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package recommend

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/tobifane/skylens/internal/bluesky"
)

// fakeGraph is an in-memory GraphClient for tests. Follow sets are stored as
// pages; cursors are stringified page indexes.
type fakeGraph struct {
	mu sync.Mutex

	pages    map[string][][]bluesky.AccountRef
	endless  bool           // always return a cursor (for page-cap tests)
	failPage map[string]int // 1-based page index that fails for an actor
	failMax  map[string]int // if set, page failures stop after this many
	err      error          // returned by every GetFollows call when set

	profiles    map[string]bluesky.Profile
	profileErr  map[string]error
	suggestions []bluesky.AccountRef
	suggestErr  error

	profileDelay time.Duration

	followsCalls int
	profileCalls int
	inFlight     int
	maxInFlight  int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		pages:      make(map[string][][]bluesky.AccountRef),
		failPage:   make(map[string]int),
		failMax:    make(map[string]int),
		profiles:   make(map[string]bluesky.Profile),
		profileErr: make(map[string]error),
	}
}

// acct builds a test AccountRef from a short id.
func acct(id string) bluesky.AccountRef {
	return bluesky.AccountRef{DID: "did:plc:" + id, Handle: id + ".test"}
}

// setFollows stores an actor's follows as a single page.
func (f *fakeGraph) setFollows(actor string, follows ...bluesky.AccountRef) {
	f.pages[actor] = [][]bluesky.AccountRef{follows}
}

// setProfile registers a hydratable profile for a DID.
func (f *fakeGraph) setProfile(p bluesky.Profile) {
	f.profiles[p.DID] = p
}

func (f *fakeGraph) GetFollows(ctx context.Context, actor string, limit int, cursor string) (*bluesky.FollowsPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followsCalls++

	if f.err != nil {
		return nil, f.err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	idx := 0
	if cursor != "" {
		idx, _ = strconv.Atoi(cursor)
	}

	if f.failPage[actor] == idx+1 {
		if remaining, limited := f.failMax[actor]; !limited || remaining > 0 {
			if limited {
				f.failMax[actor] = remaining - 1
			}
			return nil, fmt.Errorf("upstream 502 for %s page %d", actor, idx+1)
		}
	}

	pp := f.pages[actor]
	if idx >= len(pp) {
		if f.endless {
			return &bluesky.FollowsPage{Cursor: strconv.Itoa(idx + 1)}, nil
		}
		return &bluesky.FollowsPage{}, nil
	}
	page := &bluesky.FollowsPage{Follows: pp[idx]}
	if idx+1 < len(pp) || f.endless {
		page.Cursor = strconv.Itoa(idx + 1)
	}
	return page, nil
}

func (f *fakeGraph) GetProfile(ctx context.Context, actor string) (*bluesky.Profile, error) {
	f.mu.Lock()
	f.profileCalls++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	delay := f.profileDelay
	err := f.profileErr[actor]
	profile, ok := f.profiles[actor]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if ok {
		return &profile, nil
	}
	// Unregistered actors hydrate to a minimal profile.
	return &bluesky.Profile{DID: actor, Handle: actor}, nil
}

func (f *fakeGraph) GetSuggestions(ctx context.Context, limit int) ([]bluesky.AccountRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.suggestErr != nil {
		return nil, f.suggestErr
	}
	if len(f.suggestions) > limit {
		return f.suggestions[:limit], nil
	}
	return f.suggestions, nil
}

func (f *fakeGraph) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.followsCalls + f.profileCalls
}
