package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const healthTimeout = 2 * time.Second

// HealthPinger is a dependency checked by the health endpoint
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}

// PingFunc adapts a function to HealthPinger
type PingFunc func(ctx context.Context) error

// HealthPing calls f
func (f PingFunc) HealthPing(ctx context.Context) error { return f(ctx) }

// HealthHandler reports whether the service's dependencies answer
type HealthHandler struct {
	checks map[string]HealthPinger
}

// NewHealthHandler creates a health handler over named dependencies
func NewHealthHandler(checks map[string]HealthPinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health handles GET /healthz
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check.HealthPing(ctx); err != nil {
			log.Warn().Err(err).Str("dependency", name).Msg("Health check failed")
			failed[name] = "unavailable"
		}
	}

	if len(failed) > 0 {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unavailable",
			"checks": failed,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
