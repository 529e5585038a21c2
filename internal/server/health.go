package server

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Health status values.
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
	healthStatusUnavailable  = "unavailable"
	healthStatusDegraded     = "degraded"
)

const checkTimeout = 2 * time.Second

var errNoToken = errors.New("no Google token")

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

type namedCheck struct {
	fn       Check
	required bool
}

// HealthChecker provides liveness and readiness endpoints for the HTTP
// transport, the metrics server and the dashboard.
//
// Readiness fails when the server is marked not ready, is shutting down, or
// a required check fails. Optional checks only degrade the reported status.
type HealthChecker struct {
	ready         atomic.Bool
	serverContext *ServerContext
	startTime     time.Time

	mu     sync.RWMutex
	checks map[string]namedCheck
}

// NewHealthChecker creates a ready HealthChecker. When sc has a store, its
// ping is a required "sqlite" check. When sc has Gmail credentials, the
// presence of a token is an optional "gmail_token" check, so a server waiting
// for in-band authorization still takes traffic.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{
		serverContext: sc,
		startTime:     time.Now(),
		checks:        make(map[string]namedCheck),
	}
	h.ready.Store(true)

	if sc == nil {
		return h
	}
	if store := sc.Store(); store != nil {
		h.AddCheck("sqlite", store.Ping)
	}
	if creds := sc.Credentials(); creds != nil {
		h.AddOptionalCheck("gmail_token", func(context.Context) error {
			if !creds.HasToken() {
				return errNoToken
			}
			return nil
		})
	}
	return h
}

// AddCheck registers a check that must pass for the server to be ready.
func (h *HealthChecker) AddCheck(name string, fn Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = namedCheck{fn: fn, required: true}
}

// AddOptionalCheck registers a check reported as degraded on failure.
func (h *HealthChecker) AddOptionalCheck(name string, fn Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = namedCheck{fn: fn}
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

func (h *HealthChecker) isServerShuttingDown() bool {
	return h.serverContext != nil && h.serverContext.IsShutdown()
}

// evaluate runs every check and returns the per-check statuses, whether the
// server is ready and whether an optional check failed.
func (h *HealthChecker) evaluate(ctx context.Context) (statuses map[string]string, ready, degraded bool) {
	statuses = map[string]string{
		"ready":    healthStatusOK,
		"shutdown": healthStatusOK,
	}
	ready = true
	if !h.ready.Load() {
		statuses["ready"] = healthStatusNotReady
		ready = false
	}
	if h.isServerShuttingDown() {
		statuses["shutdown"] = healthStatusShuttingDown
		ready = false
	}

	h.mu.RLock()
	checks := maps.Clone(h.checks)
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	for name, c := range checks {
		switch err := c.fn(ctx); {
		case err == nil:
			statuses[name] = healthStatusOK
		case c.required:
			statuses[name] = healthStatusUnavailable
			ready = false
		default:
			statuses[name] = healthStatusDegraded
			degraded = true
		}
	}
	return statuses, ready, degraded
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse adds process information to HealthResponse.
type DetailedHealthResponse struct {
	Status   string            `json:"status"`
	Uptime   string            `json:"uptime"`
	Sessions int               `json:"sessions"`
	Checks   map[string]string `json:"checks,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// LivenessHandler returns an HTTP handler for the /healthz endpoint.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler returns an HTTP handler for the /readyz endpoint.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checks, ready, degraded := h.evaluate(r.Context())
		code, status := readiness(ready, degraded)
		writeJSON(w, code, HealthResponse{Status: status, Checks: checks})
	})
}

// DetailedHealthHandler returns an HTTP handler for the /healthz/detailed
// endpoint.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checks, ready, degraded := h.evaluate(r.Context())
		code, status := readiness(ready, degraded)
		if h.isServerShuttingDown() {
			status = healthStatusShuttingDown
		}

		resp := DetailedHealthResponse{
			Status: status,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
			Checks: checks,
		}
		if h.serverContext != nil {
			resp.Sessions = len(h.serverContext.Sessions().List())
		}
		writeJSON(w, code, resp)
	})
}

func readiness(ready, degraded bool) (int, string) {
	switch {
	case !ready:
		return http.StatusServiceUnavailable, healthStatusNotReady
	case degraded:
		return http.StatusOK, healthStatusDegraded
	default:
		return http.StatusOK, healthStatusOK
	}
}

// RegisterHealthEndpoints registers health check endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}
