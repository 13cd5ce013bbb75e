package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/halcyonlabs/vaultgate/internal/server/domain"
	"github.com/halcyonlabs/vaultgate/internal/server/service"
	"github.com/halcyonlabs/vaultgate/pkg/api"
	"github.com/halcyonlabs/vaultgate/pkg/httpx"
	"github.com/halcyonlabs/vaultgate/pkg/slogx"
)

// LoginHandler handles POST /api/login, the first-factor step.
type LoginHandler struct {
	AuthService *service.AuthService
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "username and password are required")
		return
	}

	result, err := h.AuthService.SubmitPassword(ctx, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAccountLocked):
			log.Warn("login rejected: account locked", "username", req.Username)
			httpx.WriteError(w, http.StatusForbidden,
				"account_locked", "Account is temporarily locked. Try again later.")
		case errors.Is(err, service.ErrInvalidCredentials):
			log.Warn("login rejected: invalid credentials", "username", req.Username)
			httpx.WriteError(w, http.StatusUnauthorized,
				"invalid_credentials", "Invalid username or password")
		default:
			log.Error("login failed", "username", req.Username, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError,
				"server_error", "Internal server error")
		}
		return
	}

	resp := api.LoginResponse{Next: string(result.Next)}
	switch result.Next {
	case domain.LoginNextEnroll:
		resp.Message = "Password verified. MFA setup required."
		resp.TOTPSecret = result.TOTPSecret
		resp.OtpauthURL = result.OtpauthURL
	default:
		resp.Message = "Password verified. MFA code required."
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}
