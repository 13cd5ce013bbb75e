package http

import (
	"log/slog"
	"net/http"

	"github.com/halcyonlabs/vaultgate/internal/server/service"
	"github.com/halcyonlabs/vaultgate/internal/server/store"
	"github.com/halcyonlabs/vaultgate/pkg/cryptox"
	"github.com/halcyonlabs/vaultgate/pkg/httpx"
	"github.com/halcyonlabs/vaultgate/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	logger *slog.Logger
	store  store.Store

	AuthService    *service.AuthService
	SessionService *service.SessionService
	CertGate       *service.CertGate
	PayloadCipher  *cryptox.PayloadCipher
}

func NewRouter(st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:    http.NewServeMux(),
		store:  st,
		logger: logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerData()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	loginHandler := &LoginHandler{AuthService: r.AuthService}
	mfaHandler := &MFAHandler{
		AuthService:    r.AuthService,
		SessionService: r.SessionService,
	}

	// Credential endpoints get the strict limit. This only shields the
	// process from floods; repeated bad credentials are handled by the
	// account lockout, not here.
	r.Mux.Handle("POST /api/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/mfa/setup",
		httpx.Chain(http.HandlerFunc(mfaHandler.HandleSetup),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/mfa/verify",
		httpx.Chain(http.HandlerFunc(mfaHandler.HandleVerify),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerData() {
	dataHandler := &DataHandler{
		CertGate: r.CertGate,
		Cipher:   r.PayloadCipher,
	}

	r.Mux.Handle("POST /api/data",
		httpx.Chain(dataHandler,
			SessionMiddleware(r.SessionService),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health gets the lenient limit; the coordinator polls it.
	r.Mux.Handle("GET /api/health",
		httpx.Chain(HealthHandler(r.store, r.CertGate),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
