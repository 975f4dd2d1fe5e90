// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package api

import (
	"time"

	"github.com/tobifane/skylens/internal/recommend"
)

// LoginResponse is the payload for a successful login or refresh.
type LoginResponse struct {
	Token  string `json:"token"`
	DID    string `json:"did"`
	Handle string `json:"handle"`

	// ExpiresAt is when the session (and token) expires.
	ExpiresAt time.Time `json:"expires_at"`
}

// RecommendedUser is the wire shape of one recommendation.
type RecommendedUser struct {
	DID            string  `json:"did"`
	Handle         string  `json:"handle"`
	DisplayName    *string `json:"displayName,omitempty"`
	Description    *string `json:"description,omitempty"`
	AvatarURL      *string `json:"avatarUrl,omitempty"`
	FollowerCount  int     `json:"followerCount"`
	FollowingCount int     `json:"followingCount"`
	Score          float64 `json:"score"`
	Reason         string  `json:"reason"`
}

// RecommendationsResponse is the payload for GET /recommendations.
type RecommendationsResponse struct {
	Recommendations []RecommendedUser `json:"recommendations"`
	Strategy        string            `json:"strategy"`
	Candidates      int               `json:"candidates"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// HealthResponse is the payload for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ProfileResponse is the payload for GET /profile.
type ProfileResponse struct {
	DID            string  `json:"did"`
	Handle         string  `json:"handle"`
	DisplayName    *string `json:"displayName,omitempty"`
	Description    *string `json:"description,omitempty"`
	AvatarURL      *string `json:"avatarUrl,omitempty"`
	FollowerCount  int     `json:"followerCount"`
	FollowingCount int     `json:"followingCount"`
}

// toRecommendationsResponse converts an engine response to the wire shape.
func toRecommendationsResponse(resp *recommend.Response) *RecommendationsResponse {
	users := make([]RecommendedUser, 0, len(resp.Recommendations))
	for _, rec := range resp.Recommendations {
		users = append(users, RecommendedUser{
			DID:            rec.Profile.DID,
			Handle:         rec.Profile.Handle,
			DisplayName:    rec.Profile.DisplayName,
			Description:    rec.Profile.Description,
			AvatarURL:      rec.Profile.AvatarURL,
			FollowerCount:  rec.Profile.FollowerCount,
			FollowingCount: rec.Profile.FollowingCount,
			Score:          rec.Score,
			Reason:         rec.Reason,
		})
	}
	return &RecommendationsResponse{
		Recommendations: users,
		Strategy:        resp.Metadata.Strategy,
		Candidates:      resp.Metadata.Candidates,
		GeneratedAt:     resp.Metadata.GeneratedAt,
	}
}
