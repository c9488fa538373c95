package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"previewgate/internal/config"
	"previewgate/internal/model"
	"previewgate/internal/service"
)

// proxyErrorMessage is the fixed error string of the gateway's uniform
// failure envelope. All transport failures funnel into it.
const proxyErrorMessage = "Failed to proxy request to backend"

// errorEnvelope is the JSON body returned when forwarding fails.
type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ForwardHandler relays requests on the forwarding route to the backend.
type ForwardHandler struct {
	service *service.ForwardService
	token   string
	logger  *slog.Logger
}

// NewForwardHandler creates a ForwardHandler.
func NewForwardHandler(svc *service.ForwardService, cfg *config.Config, logger *slog.Logger) *ForwardHandler {
	return &ForwardHandler{
		service: svc,
		token:   cfg.Backend.Token,
		logger:  logger.With("component", "forward_handler"),
	}
}

// Handle forwards the request to the backend and relays its status and
// body. Callers always get a JSON response: the backend's answer on
// success, the fixed error envelope with HTTP 500 on transport failure.
func (h *ForwardHandler) Handle(c echo.Context) error {
	req := c.Request()

	fr := &model.ForwardRequest{
		Ctx:      req.Context(),
		Method:   req.Method,
		Segments: splitSegments(c.Param("*")),
		RawQuery: req.URL.RawQuery,
		Header:   req.Header,
		Body:     req.Body,
	}

	result, err := h.service.Forward(fr)
	if err != nil {
		msg := h.sanitize(err)
		h.logger.Error("forward failed",
			"err", msg,
			"path", req.URL.Path,
		)
		return c.JSON(http.StatusInternalServerError, errorEnvelope{
			Error:   proxyErrorMessage,
			Message: msg,
		})
	}

	// The gateway does not invent CORS policy: the allow-origin header is
	// relayed only when the backend sent one.
	if result.AllowOrigin != "" {
		c.Response().Header().Set("Access-Control-Allow-Origin", result.AllowOrigin)
	}

	return c.JSON(result.StatusCode, result.Body)
}

// splitSegments splits the wildcard remainder of the forwarding route into
// path segments, dropping empties from doubled or trailing slashes.
func splitSegments(rest string) []string {
	var segments []string
	for _, s := range strings.Split(rest, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// sanitize redacts the preview token from error messages before they reach
// logs or the error envelope.
func (h *ForwardHandler) sanitize(err error) string {
	msg := err.Error()
	if h.token != "" {
		msg = strings.ReplaceAll(msg, h.token, "[REDACTED]")
	}
	return msg
}
