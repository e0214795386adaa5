package handlers

import (
	"net/http"

	"admindash/internal/logging"
)

// RouterConfig collects the handlers mounted by NewRouter
type RouterConfig struct {
	Auth       *AuthHandler
	Users      *UserHandler
	Middleware *Middleware
	GraphQL    http.Handler
	Startup    *StartupStatus
	StaticDir  string
	Log        logging.Logger
}

// NewRouter builds the HTTP handler of the API and, when configured, the client build
func NewRouter(cfg RouterConfig) http.Handler {
	mw := cfg.Middleware
	mux := http.NewServeMux()

	// Public auth routes
	mux.HandleFunc("POST /api/login", mw.RateLimit(cfg.Auth.Login))
	mux.HandleFunc("POST /api/verify-2fa", mw.RateLimit(cfg.Auth.VerifyTwoFactor))
	mux.HandleFunc("POST /api/resend-2fa", mw.RateLimit(cfg.Auth.ResendCode))
	mux.HandleFunc("POST /api/register", mw.RateLimit(cfg.Auth.Register))
	mux.HandleFunc("POST /api/forgot-password", mw.RateLimit(cfg.Auth.ForgotPassword))
	mux.HandleFunc("POST /api/reset-password", mw.RateLimit(cfg.Auth.ResetPassword))
	mux.HandleFunc("POST /api/logout", cfg.Auth.Logout)

	// Session routes
	mux.HandleFunc("GET /api/user", mw.RequireAuth(cfg.Auth.CurrentUser))
	mux.HandleFunc("GET /api/users", mw.RequireAdmin(cfg.Users.List))
	mux.HandleFunc("POST /api/users", mw.RequireAdmin(cfg.Users.Create))
	mux.HandleFunc("GET /api/users/{id}", mw.RequireAuth(cfg.Users.Get))
	mux.HandleFunc("PUT /api/users/{id}", mw.RequireAuth(cfg.Users.Update))
	mux.HandleFunc("PATCH /api/users/{id}/authorize", mw.RequireAdmin(cfg.Users.Authorize))
	mux.HandleFunc("DELETE /api/users/{id}", mw.RequireAdmin(cfg.Users.Delete))

	if cfg.GraphQL != nil {
		mux.HandleFunc("POST /api/graphql", mw.RateLimit(cfg.GraphQL.ServeHTTP))
	}
	if cfg.Startup != nil {
		mux.HandleFunc("GET /api/health", cfg.Startup.Health)
	}

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, MsgNotFound)
	})
	if cfg.StaticDir != "" {
		mux.Handle("/", spaFromDisk(cfg.StaticDir))
	}

	log := cfg.Log
	if log == nil {
		log = logging.Nop()
	}
	return Logging(log, withNoCache(mux))
}
