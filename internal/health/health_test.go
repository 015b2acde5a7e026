package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ReaperOAK/player-auction/internal/clock"
	"github.com/ReaperOAK/player-auction/internal/health"
)

var testClk = clock.NewFake(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))

func get(t *testing.T, h http.Handler, path string) (int, health.Report) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var r health.Report
	if err := json.NewDecoder(rec.Body).Decode(&r); err != nil {
		t.Fatal(err)
	}
	return rec.Code, r
}

func TestLiveness(t *testing.T) {
	h := health.NewHandler(testClk)
	code, r := get(t, h.Routes(), "/healthz")
	if code != http.StatusOK || r.Status != "ok" {
		t.Fatalf("got %d %+v", code, r)
	}
	if r.Timestamp != "2026-03-01T18:00:00Z" {
		t.Errorf("timestamp = %q", r.Timestamp)
	}
}

func TestReadiness(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		ready      bool
		reason     string
		checkers   []health.Checker
		wantCode   int
		wantStatus string
		wantReason string
	}{
		{
			name:       "starting",
			ready:      false,
			reason:     "recovering auction state",
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not_ready",
			wantReason: "recovering auction state",
		},
		{
			name:       "ready no checkers",
			ready:      true,
			wantCode:   http.StatusOK,
			wantStatus: "ready",
		},
		{
			name:       "ready all checks pass",
			ready:      true,
			checkers:   []health.Checker{{Name: "database", Check: ok}, {Name: "leader", Check: ok}},
			wantCode:   http.StatusOK,
			wantStatus: "ready",
		},
		{
			name:       "ready but a check fails",
			ready:      true,
			checkers:   []health.Checker{{Name: "database", Check: fail}, {Name: "leader", Check: ok}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not_ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := health.NewHandler(testClk, tt.checkers...)
			h.SetReady(tt.ready, tt.reason)

			code, r := get(t, h.Routes(), "/readyz")
			if code != tt.wantCode {
				t.Errorf("got status %d, want %d", code, tt.wantCode)
			}
			if r.Status != tt.wantStatus || r.Reason != tt.wantReason {
				t.Errorf("report = %+v", r)
			}
			if len(r.Checks) != len(tt.checkers) {
				t.Errorf("checks = %v", r.Checks)
			}
		})
	}
}

func TestReadiness_FailureDetail(t *testing.T) {
	h := health.NewHandler(testClk, health.Checker{Name: "database", Check: func(context.Context) error {
		return errors.New("connection refused")
	}})
	h.SetReady(true, "")
	_, r := get(t, h.Routes(), "/readyz")
	if r.Checks["database"] != "connection refused" {
		t.Errorf("checks = %v", r.Checks)
	}
}
