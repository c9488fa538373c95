// Package upstream classifies backend addresses and resolves endpoint URLs.
package upstream

import (
	"strings"
)

// ForwardPrefix is the local route prefix through which all requests to an
// isolated backend are routed. Clients never call an isolated backend
// directly; they call this prefix and the gateway attaches the token.
const ForwardPrefix = "/api/backend"

// TokenHeader carries the sandbox preview token on requests to an isolated
// backend. Only the gateway ever sets it.
const TokenHeader = "X-Sandbox-Token"

// sandboxDomainSuffixes are the domains under which per-change sandbox
// backends are provisioned. Addresses under these domains require the
// server-held preview token.
var sandboxDomainSuffixes = []string{
	".sandboxes.dev",
	".sandboxes.run",
}

// IsIsolatedUpstream reports whether address points at a sandbox backend
// that must not be called directly from untrusted client code.
func IsIsolatedUpstream(address string) bool {
	addr := strings.TrimSuffix(address, "/")
	for _, suffix := range sandboxDomainSuffixes {
		if strings.HasSuffix(addr, suffix) {
			return true
		}
	}
	return false
}

// Resolver derives endpoint URLs and base headers for a configured backend
// address. The address is fixed for the process lifetime.
type Resolver struct {
	baseAddress string
}

// NewResolver creates a Resolver for the given backend base address.
func NewResolver(baseAddress string) *Resolver {
	return &Resolver{baseAddress: baseAddress}
}

// Isolated reports whether the configured backend requires token injection.
func (r *Resolver) Isolated() bool {
	return IsIsolatedUpstream(r.baseAddress)
}

// BaseAddress returns the configured backend base address.
func (r *Resolver) BaseAddress() string {
	return r.baseAddress
}

// ResolveEndpoint maps a logical path to the URL a caller should use.
// For an isolated backend it returns the local forwarding route, so the
// call goes through the gateway; otherwise it returns the direct URL.
func (r *Resolver) ResolveEndpoint(logicalPath string) string {
	path := strings.TrimPrefix(logicalPath, "/")
	if r.Isolated() {
		return ForwardPrefix + "/" + path
	}
	return strings.TrimSuffix(r.baseAddress, "/") + "/" + path
}

// ResolveHeaders returns the base request headers merged with extra.
// The preview token is never part of the result; attaching it is the
// gateway's exclusive responsibility.
func (r *Resolver) ResolveHeaders(extra map[string]string) map[string]string {
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	for k, v := range extra {
		headers[k] = v
	}
	return headers
}
