package proxy

import (
	"context"
	"errors"
	"net/http"
)

// ErrAllDown means no backend produced a successful response.
var ErrAllDown = errors.New("all servers are down")

// Strategy decides how a request is distributed across the pool. The
// shipped implementation is FailoverStrategy; alternatives (round-robin,
// weighted) can be substituted without touching the HTTP layer.
type Strategy interface {
	Name() string
	Forward(ctx context.Context, pool *Pool, req ForwardRequest) (Result, error)
}

// FailoverStrategy walks the pool in its fixed order and returns the first
// 200 response. An unreachable backend and one answering non-200 are treated
// the same: try the next. Backends after the first success are never
// contacted.
type FailoverStrategy struct{}

func (FailoverStrategy) Name() string { return "failover" }

func (FailoverStrategy) Forward(ctx context.Context, pool *Pool, req ForwardRequest) (Result, error) {
	for _, endpoint := range pool.Endpoints {
		result, err := pool.attempt(ctx, endpoint, req)
		if err != nil {
			pool.Logger.Warn("forward attempt failed", "endpoint", endpoint, "error", err)
			continue
		}
		if result.StatusCode != http.StatusOK {
			pool.Logger.Warn("forward attempt rejected",
				"endpoint", endpoint, "status", result.StatusCode)
			continue
		}

		pool.Logger.Info("request forwarded", "endpoint", endpoint)
		return result, nil
	}
	return Result{}, ErrAllDown
}
