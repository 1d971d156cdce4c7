package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/daracheol/voxscribe/internal/api/shared"
)

// Pinger checks one dependency's reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to the Pinger interface.
type PingerFunc func(ctx context.Context) error

// Ping calls the wrapped function.
func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler reports process liveness and dependency status.
type HealthHandler struct {
	deps   map[string]Pinger
	logger *slog.Logger
}

// NewHealthHandler creates the health handler. deps maps dependency names
// (e.g. "mongodb", "redis") to their pingers.
func NewHealthHandler(deps map[string]Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		deps:   deps,
		logger: logger.With("component", "health_handler"),
	}
}

type healthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Check pings every dependency with a short deadline. Returns 200 with
// status "healthy" when all respond, 503 with "degraded" otherwise.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:       "healthy",
		Dependencies: make(map[string]string, len(h.deps)),
	}
	status := http.StatusOK

	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "dependency unhealthy", "dependency", name, "error", err)
			resp.Dependencies[name] = "unreachable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Dependencies[name] = "ok"
	}

	shared.RespondWithJSON(w, r, status, resp)
}
