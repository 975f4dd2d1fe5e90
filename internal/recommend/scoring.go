// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package recommend

import (
	"strings"

	"github.com/tobifane/skylens/internal/bluesky"
)

// Scoring weights. They sum to 1.0, and each sub-score is capped at 1.0, so
// the final score is bounded to [0,1] by construction.
const (
	weightEngagement   = 0.4
	weightCompleteness = 0.3
	weightActivity     = 0.3
)

// Completeness contributions per profile field. They sum to 1.0.
const (
	completenessDisplayName = 0.3
	completenessDescription = 0.4
	completenessAvatar      = 0.3
)

// Reason-rule thresholds.
const (
	popularFollowerThreshold = 1000
	creatorDescriptionLength = 50
	engagedFollowerMultiple  = 2
)

// Score rates a profile in [0,1] as a weighted sum of three sub-scores:
//
//   - engagement: follower/following ratio, normalized by 3 and capped.
//     A following count of zero contributes 0, not infinite engagement.
//   - completeness: presence of display name, description, and avatar.
//   - activity: follower count normalized by 1000 and capped.
func Score(p *bluesky.Profile) float64 {
	var engagement float64
	if p.FollowingCount > 0 {
		engagement = min(float64(p.FollowerCount)/float64(p.FollowingCount)/3.0, 1.0)
	}

	var completeness float64
	if p.DisplayName != nil && *p.DisplayName != "" {
		completeness += completenessDisplayName
	}
	if p.Description != nil && *p.Description != "" {
		completeness += completenessDescription
	}
	if p.AvatarURL != nil && *p.AvatarURL != "" {
		completeness += completenessAvatar
	}

	activity := min(float64(p.FollowerCount)/1000.0, 1.0)

	return weightEngagement*engagement + weightCompleteness*completeness + weightActivity*activity
}

// BuildReason generates the human-readable justification for a scored
// profile. The rule list is order-sensitive and deterministic: matching
// fragments are joined with " and ", and a generic fallback covers profiles
// matching nothing.
func BuildReason(p *bluesky.Profile) string {
	var parts []string

	if p.FollowerCount > popularFollowerThreshold {
		parts = append(parts, "popular in the community")
	}
	if p.Description != nil && len(*p.Description) > creatorDescriptionLength {
		parts = append(parts, "active content creator")
	}
	if p.FollowerCount > engagedFollowerMultiple*p.FollowingCount {
		parts = append(parts, "highly engaged")
	}

	if len(parts) == 0 {
		parts = append(parts, "matches your interests")
	}
	return "This user is " + strings.Join(parts, " and ")
}
