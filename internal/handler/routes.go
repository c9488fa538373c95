package handler

import (
	"github.com/labstack/echo/v4"

	"previewgate/internal/upstream"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, forward *ForwardHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/gateway/status", health.Status)
	e.POST("/gateway/refresh", health.Refresh)

	e.Any(upstream.ForwardPrefix, forward.Handle)
	e.Any(upstream.ForwardPrefix+"/*", forward.Handle)
}
