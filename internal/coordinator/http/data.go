package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/halcyonlabs/vaultgate/internal/coordinator/proxy"
	"github.com/halcyonlabs/vaultgate/pkg/httpx"
	"github.com/halcyonlabs/vaultgate/pkg/slogx"
)

// maxRequestBody caps how much of a client request is buffered for replay.
const maxRequestBody = 1 << 20

// DataHandler handles POST /api/data by replaying the request against the
// pool until a backend succeeds.
type DataHandler struct {
	Pool     *proxy.Pool
	Strategy proxy.Strategy
}

func (h *DataHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Failed to read request body")
		return
	}

	// Forward headers wholesale so the bearer session token reaches the
	// backend. The coordinator never inspects or stores it.
	result, err := h.Strategy.Forward(ctx, h.Pool, proxy.ForwardRequest{
		Method: http.MethodPost,
		Path:   "/api/data",
		Body:   body,
		Header: r.Header.Clone(),
	})
	if err != nil {
		if errors.Is(err, proxy.ErrAllDown) {
			log.Warn("no backend available")
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "All servers are down",
			})
			return
		}
		log.Error("forward failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Internal server error")
		return
	}

	// Annotate the backend's response without assuming its exact shape.
	var payload map[string]any
	if err := json.Unmarshal(result.Body, &payload); err != nil {
		log.Error("backend returned unparseable body", "endpoint", result.Endpoint)
		httpx.WriteError(w, http.StatusBadGateway,
			"bad_gateway", "Backend returned an invalid response")
		return
	}
	payload["processed_by"] = result.Endpoint

	httpx.WriteJSON(w, http.StatusOK, payload)
}
