package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/halcyonlabs/vaultgate/internal/server/service"
	"github.com/halcyonlabs/vaultgate/pkg/api"
	"github.com/halcyonlabs/vaultgate/pkg/cryptox"
	"github.com/halcyonlabs/vaultgate/pkg/httpx"
	"github.com/halcyonlabs/vaultgate/pkg/slogx"
)

// DataHandler handles POST /api/data, the certificate-gated data plane.
// The session middleware has already authenticated the caller; this handler
// additionally requires a valid client certificate before touching the
// sealed payload.
type DataHandler struct {
	CertGate *service.CertGate
	Cipher   *cryptox.PayloadCipher

	// Now defaults to time.Now; tests substitute a fixed clock.
	Now func() time.Time
}

func (h *DataHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	username := httpx.UsernameFromContext(ctx)
	if username == "" {
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_token", "Invalid or expired session token")
		return
	}

	var req api.DataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Invalid JSON body")
		return
	}

	// Certificate check comes before any payload work: an untrusted caller
	// learns nothing about the ciphertext, not even that it is malformed.
	if err := h.CertGate.Check(req.Certificate); err != nil {
		log.Warn("data request rejected", "username", username, "reason", err)
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_certificate", "Client certificate was rejected")
		return
	}

	plaintext, err := h.Cipher.Open(req.Data)
	if err != nil {
		log.Warn("data payload rejected", "username", username, "err", err)
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_payload", "Payload could not be decrypted")
		return
	}

	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, api.DataResponse{
		Result:    "success",
		Message:   fmt.Sprintf("Securely processed: %s", plaintext),
		User:      username,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
}
