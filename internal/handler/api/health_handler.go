package api

import (
	"net/http"

	"github.com/Bidon15/printspool/internal/database"
	"github.com/Bidon15/printspool/internal/pkg/response"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	DB    *database.Postgres
	Redis *database.Redis
}

// Health handles GET /health. Always OK while the process is up.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"status": "ok"})
}

// Ready handles GET /ready. Checks every backing store the broker was
// configured with.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	if err := h.DB.Ping(r.Context()); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	} else {
		checks["postgres"] = "ok"
	}

	if h.Redis != nil {
		if err := h.Redis.Ping(r.Context()); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	if !healthy {
		response.JSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "checks": checks})
		return
	}
	response.OK(w, map[string]any{"status": "ready", "checks": checks})
}
