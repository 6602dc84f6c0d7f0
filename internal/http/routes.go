package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/meridianbank/opsdesk/internal/domain/auth"
	"github.com/meridianbank/opsdesk/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Datasets *service.DatasetService
	Views    *service.ViewService
	Exports  *service.ExportService
	Auth     *service.AuthService
	// CookieDomain scopes the auth cookies; empty means host-only.
	CookieDomain string
	// LogoutURL is the IdP's logout page, handed to the UI after sign-out so
	// it can end the SSO session too. Optional.
	LogoutURL string
	// Logger for auth handler warnings (optional).
	Logger *slog.Logger
}

// NewRouter creates and configures the HTTP router. Everything under /api
// requires an authenticated session; the auth and health endpoints are
// public. The outer middleware chain (recovery, logging, compression) is
// applied by the caller.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	guards := newAPIGuards(services.Auth)

	registerDatasetRoutes(mux, &DatasetHandlers{
		Datasets: services.Datasets,
		Exports:  services.Exports,
	}, guards)
	registerViewRoutes(mux, &ViewHandlers{Svc: services.Views}, guards)

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	if services.Auth != nil {
		registerAuthRoutes(mux, &AuthHandlers{
			Svc:          services.Auth,
			CookieDomain: services.CookieDomain,
			LogoutURL:    services.LogoutURL,
			Logger:       services.Logger,
		})
	}

	return mux
}

// routeGuard wraps a handler with auth middleware.
type routeGuard func(http.Handler) http.Handler

// apiGuards bundles the auth wrappers applied to /api routes.
type apiGuards struct {
	Auth    routeGuard
	Manager routeGuard
}

// newAPIGuards builds the /api middleware set. With no auth service wired
// (tests, local tooling) the guards pass requests through unchanged.
func newAPIGuards(auth *service.AuthService) apiGuards {
	if auth == nil {
		passthrough := func(hh http.Handler) http.Handler { return hh }
		return apiGuards{Auth: passthrough, Manager: passthrough}
	}
	return apiGuards{
		Auth:    RequireAuth(auth),
		Manager: RequireRole(auth, domainauth.RoleManager),
	}
}

func registerDatasetRoutes(mux *http.ServeMux, h *DatasetHandlers, g apiGuards) {
	mux.Handle("GET /api/datasets", g.Auth(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/datasets/{key}/records", g.Auth(http.HandlerFunc(h.Records)))
	// Exporting is manager-only. The service re-checks, the route fails fast.
	mux.Handle("GET /api/datasets/{key}/export", g.Manager(http.HandlerFunc(h.Export)))
}

func registerViewRoutes(mux *http.ServeMux, h *ViewHandlers, g apiGuards) {
	mux.Handle("POST /api/views", g.Auth(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/views", g.Auth(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/views/{id}", g.Auth(http.HandlerFunc(h.GetByID)))
	mux.Handle("PUT /api/views/{id}", g.Auth(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /api/views/{id}", g.Auth(http.HandlerFunc(h.Delete)))
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /auth/login", h.Login)
	mux.HandleFunc("GET /auth/callback", h.Callback)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
}
