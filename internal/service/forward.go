// Package service implements the core forwarding logic of the gateway.
package service

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"previewgate/internal/client"
	"previewgate/internal/config"
	"previewgate/internal/model"
	"previewgate/internal/upstream"
)

// writeMethods are the methods that conventionally carry a request body.
var writeMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// ForwardService reconstructs backend requests from inbound calls and
// relays the backend's answer. It is the sole holder and sole attacher of
// the sandbox preview token.
type ForwardService struct {
	client   *client.BackendClient
	cfg      *config.Config
	resolver *upstream.Resolver
	logger   *slog.Logger
}

// NewForwardService creates a ForwardService.
func NewForwardService(c *client.BackendClient, cfg *config.Config, resolver *upstream.Resolver, logger *slog.Logger) *ForwardService {
	return &ForwardService{
		client:   c,
		cfg:      cfg,
		resolver: resolver,
		logger:   logger.With("component", "forward_service"),
	}
}

// Forward executes the backend request equivalent to fr and returns the
// outcome. Stateless per call; exactly one backend call, no retries. A
// transport failure is returned as an error for the handler to map onto
// the uniform error envelope.
func (s *ForwardService) Forward(fr *model.ForwardRequest) (*model.ForwardResult, error) {
	// A client-supplied token header never reaches the backend: the
	// outbound header set is built from scratch below. It still gets
	// flagged, since it usually means a client is holding a credential it
	// should not have.
	if fr.Header.Get(upstream.TokenHeader) != "" {
		s.logger.Warn("ignoring client-supplied token header",
			"method", fr.Method,
		)
	}

	backendURL := s.buildBackendURL(fr.Segments, fr.RawQuery)
	header := s.buildOutboundHeaders()

	s.logger.Debug("forwarding request",
		"method", fr.Method,
		"segments", strings.Join(fr.Segments, "/"),
	)

	status, respHeader, text, err := s.client.Do(fr.Ctx, fr.Method, backendURL, header, s.requestBody(fr))
	if err != nil {
		return nil, fmt.Errorf("forward to backend: %w", err)
	}

	return &model.ForwardResult{
		StatusCode:  status,
		Body:        decodeBody(text),
		AllowOrigin: respHeader.Get("Access-Control-Allow-Origin"),
	}, nil
}

// buildBackendURL joins the backend base address with the request path
// segments and query string. No segments means the backend root.
func (s *ForwardService) buildBackendURL(segments []string, rawQuery string) string {
	base := strings.TrimSuffix(s.cfg.Backend.BaseURL, "/")

	path := "/"
	if len(segments) > 0 {
		path = "/" + strings.Join(segments, "/")
	}

	u := base + path
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}

// buildOutboundHeaders constructs the backend request headers from scratch.
// Inbound headers never pass through, so a client-supplied token header can
// never reach the backend. The real token is attached only when the backend
// is isolated and a token is configured; isolated-with-no-token forwards
// without the header and lets the backend's rejection come back verbatim.
func (s *ForwardService) buildOutboundHeaders() http.Header {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	if s.resolver.Isolated() && s.cfg.Backend.Token != "" {
		header.Set(upstream.TokenHeader, s.cfg.Backend.Token)
	}
	return header
}

// requestBody returns the inbound body for write methods, read in full as
// text. A body read failure is recoverable: the request is forwarded
// without a body rather than aborted.
func (s *ForwardService) requestBody(fr *model.ForwardRequest) io.Reader {
	if !writeMethods[fr.Method] || fr.Body == nil {
		return nil
	}
	text, err := io.ReadAll(fr.Body)
	if err != nil {
		s.logger.Warn("reading request body failed; forwarding without body",
			"method", fr.Method,
			"err", err,
		)
		return nil
	}
	if len(text) == 0 {
		return nil
	}
	return strings.NewReader(string(text))
}

// decodeBody decodes the backend response as JSON, falling back to the raw
// text when it does not parse. The gateway supports both JSON and non-JSON
// backend payloads transparently.
func decodeBody(text string) any {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return text
	}
	return v
}
