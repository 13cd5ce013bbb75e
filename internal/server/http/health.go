package http

import (
	"net/http"

	"github.com/halcyonlabs/vaultgate/internal/server/service"
	"github.com/halcyonlabs/vaultgate/internal/server/store"
	"github.com/halcyonlabs/vaultgate/pkg/api"
	"github.com/halcyonlabs/vaultgate/pkg/httpx"
)

// HealthHandler handles GET /api/health. The coordinator probes this
// endpoint, so a degraded store must flip the status code, not just the
// body.
func HealthHandler(st store.Store, gate *service.CertGate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, api.HealthResponse{
			Status:            status,
			MFASupported:      true,
			CertificatesReady: gate != nil && gate.Verifier != nil,
		})
	}
}
