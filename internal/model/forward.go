// Package model defines shared types for the gateway.
package model

import (
	"context"
	"io"
	"net/http"
)

// ForwardRequest represents one inbound call to be forwarded to the backend.
// It lives for the duration of a single request and is discarded afterwards.
// Header carries the inbound headers for inspection only (the forward
// service flags client-supplied credential headers); outbound headers are
// always built from scratch, never copied from here.
type ForwardRequest struct {
	Ctx      context.Context
	Method   string
	Segments []string
	RawQuery string
	Header   http.Header
	Body     io.Reader
}

// ForwardResult is the backend's answer, ready to relay to the client.
// Body holds the decoded JSON value when the backend returned JSON, or the
// raw response text otherwise.
type ForwardResult struct {
	StatusCode  int
	Body        any
	AllowOrigin string
}
