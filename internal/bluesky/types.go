// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package bluesky

// AccountRef identifies a Bluesky account. The DID is the stable key;
// handles can change at any time and must not be used for joins.
type AccountRef struct {
	DID    string `json:"did"`
	Handle string `json:"handle"`
}

// FollowsPage is one page of an actor's outbound follows. An empty Cursor
// means the last page has been reached.
type FollowsPage struct {
	Follows []AccountRef
	Cursor  string
}

// Profile is a detailed actor profile. DisplayName, Description and
// AvatarURL are nil when the account never set them; that absence feeds the
// profile-completeness score.
type Profile struct {
	DID            string  `json:"did"`
	Handle         string  `json:"handle"`
	DisplayName    *string `json:"display_name,omitempty"`
	Description    *string `json:"description,omitempty"`
	AvatarURL      *string `json:"avatar_url,omitempty"`
	FollowerCount  int     `json:"follower_count"`
	FollowingCount int     `json:"following_count"`
}

// Session is an upstream AT Protocol session returned by createSession or
// refreshSession. AccessJWT authenticates subsequent XRPC calls.
type Session struct {
	DID        string
	Handle     string
	AccessJWT  string
	RefreshJWT string
}
