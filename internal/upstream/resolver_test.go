package upstream

import (
	"testing"
)

func TestIsIsolatedUpstream(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{"sandbox dev domain", "https://pr-1234.sandboxes.dev", true},
		{"sandbox run domain", "https://change-42.sandboxes.run", true},
		{"trailing slash", "https://pr-1234.sandboxes.dev/", true},
		{"localhost", "http://localhost:3000", false},
		{"production domain", "https://api.example.com", false},
		{"empty", "", false},
		{"suffix in the middle only", "https://sandboxes.dev.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsIsolatedUpstream(tt.address); got != tt.want {
				t.Errorf("IsIsolatedUpstream(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

func TestResolveEndpoint_Isolated(t *testing.T) {
	r := NewResolver("https://pr-1234.sandboxes.dev")

	if !r.Isolated() {
		t.Fatal("Isolated() = false, want true")
	}

	want := ForwardPrefix + "/health"
	if got := r.ResolveEndpoint("health"); got != want {
		t.Errorf("ResolveEndpoint(\"health\") = %q, want %q", got, want)
	}
	// Leading separator normalization is idempotent.
	if got := r.ResolveEndpoint("/health"); got != want {
		t.Errorf("ResolveEndpoint(\"/health\") = %q, want %q", got, want)
	}
}

func TestResolveEndpoint_Direct(t *testing.T) {
	tests := []struct {
		name string
		base string
		path string
		want string
	}{
		{"no trailing slash", "http://localhost:3000", "health", "http://localhost:3000/health"},
		{"trailing slash stripped", "http://localhost:3000/", "health", "http://localhost:3000/health"},
		{"leading slash trimmed", "http://localhost:3000", "/health", "http://localhost:3000/health"},
		{"both separators", "http://localhost:3000/", "/api/items", "http://localhost:3000/api/items"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.base)
			if got := r.ResolveEndpoint(tt.path); got != tt.want {
				t.Errorf("ResolveEndpoint(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestResolveEndpoint_Deterministic(t *testing.T) {
	r := NewResolver("https://pr-77.sandboxes.run")
	first := r.ResolveEndpoint("api/items")
	second := r.ResolveEndpoint("api/items")
	if first != second {
		t.Errorf("ResolveEndpoint not deterministic: %q != %q", first, second)
	}
}

func TestResolveHeaders(t *testing.T) {
	r := NewResolver("https://pr-1234.sandboxes.dev")

	h := r.ResolveHeaders(nil)
	if h["Content-Type"] != "application/json" {
		t.Errorf("Content-Type = %q, want %q", h["Content-Type"], "application/json")
	}
	if _, ok := h[TokenHeader]; ok {
		t.Errorf("ResolveHeaders must never include %s", TokenHeader)
	}

	h = r.ResolveHeaders(map[string]string{"Accept": "application/json"})
	if h["Accept"] != "application/json" {
		t.Errorf("extra header not merged: Accept = %q", h["Accept"])
	}
	if h["Content-Type"] != "application/json" {
		t.Errorf("Content-Type lost during merge: %q", h["Content-Type"])
	}
	if _, ok := h[TokenHeader]; ok {
		t.Errorf("ResolveHeaders must never include %s", TokenHeader)
	}
}
