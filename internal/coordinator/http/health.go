package http

import (
	"net/http"

	"github.com/halcyonlabs/vaultgate/internal/coordinator/proxy"
	"github.com/halcyonlabs/vaultgate/pkg/api"
	"github.com/halcyonlabs/vaultgate/pkg/httpx"
)

// HealthHandler handles GET /api/health: probe every backend and report the
// aggregate. The coordinator itself is "running" whenever it can answer.
func HealthHandler(pool *proxy.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		servers := pool.Health(r.Context())

		upCount := 0
		for _, s := range servers {
			if s.Status == "up" {
				upCount++
			}
		}

		httpx.WriteJSON(w, http.StatusOK, api.CoordinatorHealth{
			Coordinator: "running",
			Servers:     servers,
			UpCount:     upCount,
		})
	}
}
