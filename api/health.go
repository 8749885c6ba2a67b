package api

import (
	"context"
	"net/http"
	"time"
)

// handleHealth pings the shared cache and the durable store. Either failing
// degrades the report to 503 so the load balancer rotates the instance out.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{"redis": "ok", "database": "ok"}

	if rt.deps.Redis != nil {
		if err := rt.deps.Redis.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	} else {
		checks["redis"] = "not configured"
	}

	if rt.deps.DB != nil {
		if err := rt.deps.DB.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	} else {
		checks["database"] = "not configured"
	}

	body := map[string]any{"status": "ok", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}
