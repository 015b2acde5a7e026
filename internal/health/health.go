// Package health serves the liveness and readiness probes of auctiond.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/ReaperOAK/player-auction/internal/clock"
)

// Report is the body of both probes.
type Report struct {
	Status    string            `json:"status"`
	Reason    string            `json:"reason,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Checker defines a named health check function.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler provides the probe endpoints. It starts not ready; the process
// marks it ready once the auction state has been recovered.
type Handler struct {
	mu       sync.RWMutex
	ready    bool
	reason   string
	checkers []Checker
	timeout  time.Duration
	clock    clock.Clock
}

// NewHandler creates a new health handler with the given checkers.
func NewHandler(clk clock.Clock, checkers ...Checker) *Handler {
	sorted := append([]Checker(nil), checkers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &Handler{
		checkers: sorted,
		timeout:  5 * time.Second,
		clock:    clk,
		reason:   "starting",
	}
}

// SetReady marks the service ready, or not ready with a reason.
func (h *Handler) SetReady(ready bool, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
	h.reason = reason
	if ready {
		h.reason = ""
	}
}

// Routes returns a mux serving /healthz and /readyz.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", h.LivenessHandler())
	mux.Handle("GET /readyz", h.ReadinessHandler())
	return mux
}

// LivenessHandler returns HTTP 200 while the process is alive.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Report{Status: "ok", Timestamp: h.now()})
	}
}

// ReadinessHandler returns HTTP 200 when the service is ready and every
// check passes.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		ready, reason := h.ready, h.reason
		h.mu.RUnlock()

		if !ready {
			writeJSON(w, http.StatusServiceUnavailable, Report{
				Status:    "not_ready",
				Reason:    reason,
				Timestamp: h.now(),
			})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		checks := make(map[string]string, len(h.checkers))
		code, status := http.StatusOK, "ready"
		for _, c := range h.checkers {
			if err := c.Check(ctx); err != nil {
				checks[c.Name] = err.Error()
				code, status = http.StatusServiceUnavailable, "not_ready"
				continue
			}
			checks[c.Name] = "ok"
		}

		writeJSON(w, code, Report{Status: status, Checks: checks, Timestamp: h.now()})
	}
}

func (h *Handler) now() string {
	return h.clock.Now().UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
