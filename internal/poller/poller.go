// Package poller maintains a best-effort view of backend reachability by
// probing its health endpoint on a fixed interval.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"previewgate/internal/config"
	"previewgate/internal/metrics"
	"previewgate/internal/upstream"
)

// Status is the tri-state backend liveness classification.
type Status string

const (
	StatusChecking Status = "checking"
	StatusOnline   Status = "online"
	StatusOffline  Status = "offline"
)

// errRequestTimeout is the error text recorded when a probe exceeds its
// per-call timeout budget.
const errRequestTimeout = "Request timeout"

// errFailedToConnect is the fallback error text for transport failures
// that carry no message of their own.
const errFailedToConnect = "failed to connect to backend"

// State is a snapshot of the poller's view of the backend.
// When Status is online, LastChecked is set and LastError is empty; when
// Status is offline, LastError is non-empty.
type State struct {
	Status      Status    `json:"status"`
	LastChecked time.Time `json:"last_checked,omitzero"`
	LastError   string    `json:"last_error,omitempty"`
}

// healthPayload is the shape of the backend health endpoint's response.
type healthPayload struct {
	Status string `json:"status"`
}

// Poller probes the backend health endpoint on a fixed interval and keeps
// the latest outcome. Probes are not serialized; when probes overlap, the
// last one to complete determines the visible state.
type Poller struct {
	httpClient   *http.Client
	probeURL     string
	headers      map[string]string
	interval     time.Duration
	probeTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics

	mu    sync.Mutex
	state State

	refresh chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Poller that probes probeURL. The metrics parameter is
// optional; pass nil to skip probe metrics recording.
func New(probeURL string, headers map[string]string, interval, probeTimeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Poller {
	return &Poller{
		// The per-probe context carries the timeout; the client itself
		// stays unbounded so the two cannot disagree.
		httpClient:   &http.Client{},
		probeURL:     probeURL,
		headers:      headers,
		interval:     interval,
		probeTimeout: probeTimeout,
		logger:       logger.With("component", "poller"),
		metrics:      m,
		state:        State{Status: StatusChecking},
		refresh:      make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// FromConfig creates a Poller for the configured backend. The probe target
// is resolved the same way a client would resolve it: an isolated backend
// is probed through the local forwarding route (so the token stays with
// the gateway), a direct backend is probed at its own address.
func FromConfig(cfg *config.Config, resolver *upstream.Resolver, logger *slog.Logger, m *metrics.Metrics) *Poller {
	endpoint := resolver.ResolveEndpoint(cfg.Poller.HealthPath)
	if strings.HasPrefix(endpoint, "/") {
		endpoint = fmt.Sprintf("http://127.0.0.1:%d%s", cfg.Server.Port, endpoint)
	}
	return New(
		endpoint,
		resolver.ResolveHeaders(nil),
		time.Duration(cfg.Poller.IntervalSeconds)*time.Second,
		time.Duration(cfg.Poller.ProbeTimeoutSeconds)*time.Second,
		logger,
		m,
	)
}

// Start launches the probe loop: one probe immediately, then one per
// interval until Stop is called.
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.run(ctx)
}

// Stop cancels the probe loop and its ticker, and waits for the loop to
// exit. Call exactly once during teardown.
func (p *Poller) Stop() {
	p.cancel()
	<-p.done
}

// Refresh triggers an immediate probe and resets the schedule's next tick,
// so the recurring timer and the manual probe do not double-fire
// back-to-back. Safe to call at any time; coalesces when a refresh is
// already pending.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the current liveness state.
func (p *Poller) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	p.Probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.refresh:
			ticker.Reset(p.interval)
			// Manual probes run concurrently with the loop; an in-flight
			// scheduled probe is not canceled, the last to complete wins.
			go p.Probe(ctx)
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}

// Probe performs one health check cycle: enter checking, call the health
// endpoint under the per-probe timeout, and classify the outcome.
func (p *Poller) Probe(ctx context.Context) {
	p.setChecking()

	probeCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	start := time.Now()
	outcome := p.doProbe(probeCtx)
	duration := time.Since(start).Seconds()

	if ctx.Err() != nil {
		// Teardown raced the probe; the loop is exiting, keep whatever
		// state was last published.
		return
	}

	if p.metrics != nil {
		p.metrics.ProbeDuration.Observe(duration)
		if outcome == "" {
			p.metrics.ProbesTotal.WithLabelValues("online").Inc()
			p.metrics.BackendUp.Set(1)
		} else {
			p.metrics.ProbesTotal.WithLabelValues("offline").Inc()
			p.metrics.BackendUp.Set(0)
		}
	}

	if outcome == "" {
		p.setOnline()
	} else {
		p.setOffline(outcome)
	}
}

// doProbe executes the health request and returns an empty string when the
// backend asserted healthy, or the error text to record otherwise.
func (p *Poller) doProbe(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.probeURL, nil)
	if err != nil {
		return errorText(err)
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errorText(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorText(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Sprintf("backend returned %s", resp.Status)
	}

	var payload healthPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.Status == "" {
		return "backend health payload did not assert healthy"
	}
	if payload.Status != "healthy" {
		return fmt.Sprintf("backend reported status %q", payload.Status)
	}

	return ""
}

// errorText classifies a transport error into the recorded error string.
func errorText(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return errRequestTimeout
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return errFailedToConnect
}

func (p *Poller) setChecking() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Status = StatusChecking
	p.state.LastError = ""
}

func (p *Poller) setOnline() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Status != StatusOnline {
		p.logger.Info("backend online")
	}
	p.state.Status = StatusOnline
	p.state.LastChecked = time.Now()
	p.state.LastError = ""
}

func (p *Poller) setOffline(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Status != StatusOffline || p.state.LastError != msg {
		p.logger.Warn("backend offline", "err", msg)
	}
	p.state.Status = StatusOffline
	p.state.LastError = msg
}
