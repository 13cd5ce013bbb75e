// Package proxy implements the coordinator's backend pool: an ordered list
// of auth servers, health probing, and pluggable request forwarding.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/halcyonlabs/vaultgate/pkg/api"
)

const (
	// DefaultForwardTimeout bounds a single forward attempt. A hung backend
	// must not stall the failover walk indefinitely.
	DefaultForwardTimeout = 5 * time.Second

	// DefaultProbeTimeout bounds a single health probe. Probes are cheap and
	// a slow backend counts as down.
	DefaultProbeTimeout = 2 * time.Second

	// maxResponseBody caps how much of a backend response is buffered.
	maxResponseBody = 1 << 20
)

// Pool is the fixed, ordered set of backend servers. Order is significant:
// strategies walk it deterministically.
type Pool struct {
	Endpoints []string
	Client    *http.Client
	Logger    *slog.Logger

	// ProbeTimeout overrides DefaultProbeTimeout when non-zero.
	ProbeTimeout time.Duration
}

// NewPool builds a pool over the given base URLs, in the order given.
func NewPool(endpoints []string, logger *slog.Logger) *Pool {
	return &Pool{
		Endpoints: endpoints,
		Client:    &http.Client{Timeout: DefaultForwardTimeout},
		Logger:    logger,
	}
}

// Result is one backend's successful answer to a forwarded request.
type Result struct {
	Endpoint   string
	StatusCode int
	Body       []byte
}

// ForwardRequest is the client request to replay against a backend.
// Header is forwarded as-is, so bearer credentials reach the backend
// unchanged.
type ForwardRequest struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header
}

// attempt replays req against a single endpoint. A non-nil error means the
// backend was unreachable, not that it answered unfavourably.
func (p *Pool) attempt(ctx context.Context, endpoint string, req ForwardRequest) (Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint+req.Path, bytes.NewReader(req.Body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to build forward request: %w", err)
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read backend response: %w", err)
	}

	return Result{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: body}, nil
}

// Health probes every backend's health endpoint sequentially and reports
// up/down per endpoint, preserving pool order.
func (p *Pool) Health(ctx context.Context) []api.ServerStatus {
	probeTimeout := p.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}

	statuses := make([]api.ServerStatus, 0, len(p.Endpoints))
	for _, endpoint := range p.Endpoints {
		statuses = append(statuses, api.ServerStatus{
			Server: endpoint,
			Status: p.probe(ctx, endpoint, probeTimeout),
		})
	}
	return statuses
}

func (p *Pool) probe(ctx context.Context, endpoint string, timeout time.Duration) string {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint+"/api/health", nil)
	if err != nil {
		return "down"
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return "down"
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode != http.StatusOK {
		return "down"
	}
	return "up"
}
