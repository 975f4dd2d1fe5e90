// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPrometheusMetricsCapturesStatus(t *testing.T) {
	handler := PrometheusMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/recommendations", nil))

	if rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want 418", rr.Code)
	}
}

func TestStatusResponseWriterDefaultsToOK(t *testing.T) {
	rr := httptest.NewRecorder()
	wrapper := &statusResponseWriter{ResponseWriter: rr, statusCode: http.StatusOK}
	if _, err := wrapper.Write([]byte("ok")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if wrapper.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want 200 when WriteHeader is not called", wrapper.statusCode)
	}
}
