package http

import (
	"log/slog"
	"net/http"

	"github.com/halcyonlabs/vaultgate/internal/coordinator/proxy"
	"github.com/halcyonlabs/vaultgate/pkg/httpx"
	"github.com/halcyonlabs/vaultgate/pkg/slogx"
)

// Router holds shared dependencies for the coordinator's HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	logger *slog.Logger

	Pool     *proxy.Pool
	Strategy proxy.Strategy
}

func NewRouter(pool *proxy.Pool, strategy proxy.Strategy, logger *slog.Logger) *Router {
	r := &Router{
		Mux:      http.NewServeMux(),
		logger:   logger,
		Pool:     pool,
		Strategy: strategy,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	dataHandler := &DataHandler{Pool: r.Pool, Strategy: r.Strategy}

	// The coordinator does no credential checking itself; backends enforce
	// sessions and certificates. Limits here only protect the process.
	r.Mux.Handle("POST /api/data",
		httpx.Chain(dataHandler,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /api/health",
		httpx.Chain(HealthHandler(r.Pool),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}
