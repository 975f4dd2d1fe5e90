// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the shared request validator. validator.Validate is
// concurrency-safe and caches struct metadata, so one instance serves all
// handlers.
var validate = validator.New()

// LoginRequest is the request body for POST /api/v1/auth/login. The
// identifier is a Bluesky handle or DID; the password is an app password,
// never the account's main password.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,min=1,max=253"`
	Password   string `json:"password" validate:"required,min=1"`
}

// RecommendationsRequest holds the validated query parameters for
// GET /api/v1/recommendations.
type RecommendationsRequest struct {
	Limit            int      `validate:"min=0,max=1000"`
	Strategy         string   `validate:"omitempty,oneof=common-followers basic"`
	Seeds            []string `validate:"omitempty,max=25,dive,min=1"`
	MinCommonFollows int      `validate:"min=0,max=25"`
}

// validateRequest validates a struct and converts failures into
// field-keyed messages suitable for the error details payload.
func validateRequest(v interface{}) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	details := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details[strings.ToLower(fe.Field())] = "failed validation rule: " + fe.Tag()
		}
	} else {
		details["request"] = err.Error()
	}
	return details
}

// getIntParam extracts an integer query parameter with a default value.
// A malformed value reports ok=false so handlers can reject it explicitly
// instead of silently using the default.
func getIntParam(r *http.Request, key string, defaultValue int) (value int, ok bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// getListParam extracts a comma-separated query parameter as a slice,
// trimming whitespace and dropping empty entries.
func getListParam(r *http.Request, key string) []string {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
