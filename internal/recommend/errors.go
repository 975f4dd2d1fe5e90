// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package recommend

import "errors"

// ConfigError reports invalid caller input, such as too few seed accounts or
// an unknown strategy. It maps to a client error at the HTTP layer and is
// never retried.
//
// The other failure classes need no types of their own: transient upstream
// failures are recovered locally (the fetcher truncates, the hydrator drops),
// and authorization failures surface as bluesky.ErrAuthFailed, which aborts
// the whole request.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid recommendation request: " + e.Reason
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
