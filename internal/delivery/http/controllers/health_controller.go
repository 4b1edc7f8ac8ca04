package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	h "eventhub/internal/delivery/http/helpers"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthResponse reports the status of each dependency.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type HealthController struct {
	Logger *slog.Logger
	Checks map[string]HealthCheck
}

func NewHealthController(logger *slog.Logger, checks map[string]HealthCheck) *HealthController {
	return &HealthController{Logger: logger, Checks: checks}
}

// Healthz godoc
// @Summary Liveness and dependency health
// @Tags ops
// @Produce json
// @Success 200 {object} helpers.APIResponse "data.status is ok"
// @Failure 503 {object} helpers.APIResponse "data.status is degraded"
// @Router /healthz [get]
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(c.Checks))}
	for name, check := range c.Checks {
		if err := check(ctx); err != nil {
			c.Logger.WarnContext(ctx, "health check failed", "check", name, "err", err)
			resp.Status = "degraded"
			resp.Checks[name] = "unavailable"
			continue
		}
		resp.Checks[name] = "ok"
	}
	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	h.WriteJSONSuccess(w, status, resp)
}
