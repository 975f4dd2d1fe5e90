// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package recommend

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tobifane/skylens/internal/bluesky"
	"github.com/tobifane/skylens/internal/logging"
)

func TestHydratePreservesOrderAcrossDrops(t *testing.T) {
	fake := newFakeGraph()
	fake.profileErr["did:plc:c"] = errors.New("upstream 500")

	actors := []string{"did:plc:a", "did:plc:b", "did:plc:c", "did:plc:d", "did:plc:e"}
	h := NewHydrator(4, logging.NewTestLogger(&bytes.Buffer{}))
	profiles, err := h.Hydrate(context.Background(), fake, actors)
	if err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}

	want := []string{"did:plc:a", "did:plc:b", "did:plc:d", "did:plc:e"}
	if len(profiles) != len(want) {
		t.Fatalf("got %d profiles, want %d", len(profiles), len(want))
	}
	for i, p := range profiles {
		if p.DID != want[i] {
			t.Errorf("profiles[%d].DID = %s, want %s", i, p.DID, want[i])
		}
	}
}

func TestHydrateAuthErrorAbortsBatch(t *testing.T) {
	fake := newFakeGraph()
	fake.profileErr["did:plc:b"] = bluesky.ErrAuthFailed

	h := NewHydrator(2, logging.NewTestLogger(&bytes.Buffer{}))
	profiles, err := h.Hydrate(context.Background(), fake, []string{"did:plc:a", "did:plc:b", "did:plc:c"})
	if !errors.Is(err, bluesky.ErrAuthFailed) {
		t.Fatalf("Hydrate() error = %v, want ErrAuthFailed", err)
	}
	if profiles != nil {
		t.Errorf("expected no partial batch on auth failure, got %+v", profiles)
	}
}

func TestHydrateBoundedConcurrency(t *testing.T) {
	fake := newFakeGraph()
	fake.profileDelay = 10 * time.Millisecond

	actors := make([]string, 12)
	for i := range actors {
		actors[i] = acct(string(rune('a' + i))).DID
	}

	h := NewHydrator(3, logging.NewTestLogger(&bytes.Buffer{}))
	if _, err := h.Hydrate(context.Background(), fake, actors); err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}
	if fake.maxInFlight > 3 {
		t.Errorf("observed %d concurrent lookups, want at most 3", fake.maxInFlight)
	}
}

func TestHydrateEmptyInput(t *testing.T) {
	h := NewHydrator(2, logging.NewTestLogger(&bytes.Buffer{}))
	profiles, err := h.Hydrate(context.Background(), newFakeGraph(), nil)
	if err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}
	if len(profiles) != 0 {
		t.Errorf("got %d profiles, want 0", len(profiles))
	}
}
