package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"previewgate/internal/config"
	"previewgate/internal/poller"
	"previewgate/internal/upstream"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and gateway status endpoints.
type HealthHandler struct {
	cfg      *config.Config
	version  Version
	resolver *upstream.Resolver
	poller   *poller.Poller
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version, r *upstream.Resolver, p *poller.Poller) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v, resolver: r, poller: p}
}

// Healthz answers liveness probes with the standard health payload.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Status reports the gateway's view of the configured backend, including
// the poller's current liveness state.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":           "ok",
		"version":          string(h.version),
		"backend_url":      h.cfg.Backend.BaseURL,
		"backend_isolated": h.resolver.Isolated(),
		"backend":          h.poller.Snapshot(),
	})
}

// Refresh triggers an immediate liveness probe and returns the state as of
// the trigger; the refreshed result lands on a subsequent Status call.
func (h *HealthHandler) Refresh(c echo.Context) error {
	h.poller.Refresh()
	return c.JSON(http.StatusAccepted, map[string]any{
		"status":  "refresh scheduled",
		"backend": h.poller.Snapshot(),
	})
}
