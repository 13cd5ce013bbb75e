package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/halcyonlabs/vaultgate/internal/server/service"
	"github.com/halcyonlabs/vaultgate/pkg/api"
	"github.com/halcyonlabs/vaultgate/pkg/httpx"
	"github.com/halcyonlabs/vaultgate/pkg/slogx"
)

// MFAHandler handles the second-factor endpoints: enrollment confirmation
// (POST /api/mfa/setup) and verification (POST /api/mfa/verify).
type MFAHandler struct {
	AuthService    *service.AuthService
	SessionService *service.SessionService
}

// HandleSetup confirms a pending enrollment with a code from the candidate
// secret returned at login.
func (h *MFAHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	req, ok := decodeCodeRequest(w, r)
	if !ok {
		return
	}

	if err := h.AuthService.ConfirmEnrollment(ctx, req.Username, req.Code); err != nil {
		switch {
		case errors.Is(err, service.ErrAccountLocked):
			log.Warn("mfa setup rejected: account locked", "username", req.Username)
			httpx.WriteError(w, http.StatusForbidden,
				"account_locked", "Account is temporarily locked. Try again later.")
		case errors.Is(err, service.ErrNoPendingEnrollment):
			log.Warn("mfa setup rejected: no pending enrollment", "username", req.Username)
			httpx.WriteError(w, http.StatusUnauthorized,
				"no_pending_enrollment", "No MFA enrollment in progress. Log in first.")
		case errors.Is(err, service.ErrInvalidCode):
			log.Warn("mfa setup rejected: invalid code", "username", req.Username)
			httpx.WriteError(w, http.StatusUnauthorized,
				"invalid_code", "Invalid MFA code")
		default:
			log.Error("mfa setup failed", "username", req.Username, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError,
				"server_error", "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, api.MFASetupResponse{
		Message:    "MFA setup complete. Log in again to continue.",
		MFAEnabled: true,
	})
}

// HandleVerify checks a code against the committed secret and issues a
// session on success.
func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	req, ok := decodeCodeRequest(w, r)
	if !ok {
		return
	}

	if err := h.AuthService.VerifySecondFactor(ctx, req.Username, req.Code); err != nil {
		switch {
		case errors.Is(err, service.ErrAccountLocked):
			log.Warn("mfa verify rejected: account locked", "username", req.Username)
			httpx.WriteError(w, http.StatusForbidden,
				"account_locked", "Account is temporarily locked. Try again later.")
		case errors.Is(err, service.ErrMFANotEnabled):
			log.Warn("mfa verify rejected: not enrolled", "username", req.Username)
			httpx.WriteError(w, http.StatusUnauthorized,
				"mfa_not_enabled", "MFA is not enabled for this user")
		case errors.Is(err, service.ErrInvalidCode):
			log.Warn("mfa verify rejected: invalid code", "username", req.Username)
			httpx.WriteError(w, http.StatusUnauthorized,
				"invalid_code", "Invalid MFA code")
		default:
			log.Error("mfa verify failed", "username", req.Username, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError,
				"server_error", "Internal server error")
		}
		return
	}

	token, session, err := h.SessionService.Issue(ctx, req.Username)
	if err != nil {
		log.Error("failed to issue session", "username", req.Username, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Internal server error")
		return
	}

	log.Info("session issued", "username", req.Username, "session_id", session.ID)

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, api.MFAVerifyResponse{
		SessionToken: token,
		TokenType:    "Bearer",
		ExpiresIn:    int(session.ExpiresAt.Sub(session.IssuedAt).Seconds()),
	})
}

// decodeCodeRequest parses the shared {username, code} body. It writes the
// error response itself and reports whether the request was usable.
func decodeCodeRequest(w http.ResponseWriter, r *http.Request) (api.MFAVerifyRequest, bool) {
	var req api.MFAVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Invalid JSON body")
		return req, false
	}
	if req.Username == "" || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "username and code are required")
		return req, false
	}
	return req, true
}
