package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/santega-authz/internal/auth"
	"github.com/frahmantamala/santega-authz/internal/authz"
	"github.com/frahmantamala/santega-authz/internal/establishment"
	"github.com/frahmantamala/santega-authz/internal/obs"
	"github.com/frahmantamala/santega-authz/internal/transport/middleware"
	"github.com/frahmantamala/santega-authz/internal/transport/swagger"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

const openAPIPath = "/openapi.yml"

type Options struct {
	AllowedOrigins string
	MetricsEnabled bool
	MetricsPath    string
	// OpenAPI serves the contract at /openapi.yml when set.
	OpenAPI http.Handler
}

func RegisterAllRoutes(router *chi.Mux, healthHandler *HealthHandler, authHandler *auth.Handler, establishmentHandler *establishment.Handler, sessions middleware.SessionSource, opts Options, logger *slog.Logger) {
	// Apply global middleware
	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.TraceID(logger))
	router.Use(middleware.Recovery)
	router.Use(middleware.LoggingMiddleware())
	if opts.MetricsEnabled {
		router.Use(obs.Instrument(routePattern))
	}

	if opts.OpenAPI != nil {
		router.Get(openAPIPath, opts.OpenAPI.ServeHTTP)
		router.Handle("/swagger/*", swagger.Handler(openAPIPath))
	}
	if opts.MetricsEnabled {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, obs.Handler())
	}

	// Mount API under /api/v1 to match the OpenAPI server URL
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Group(func(pr chi.Router) {
			pr.Use(authHandler.AuthMiddleware)

			pr.Post("/auth/logout", authHandler.Logout)

			pr.Route("/establishments", func(er chi.Router) {
				er.Get("/context", establishmentHandler.GetContext)
				er.Get("/affiliations", establishmentHandler.GetAffiliations)
				er.Post("/switch", establishmentHandler.Switch)
				er.Post("/refresh", establishmentHandler.Refresh)
				er.Get("/permissions/{permission}", establishmentHandler.CheckPermission)
			})

			pr.Group(func(ar chi.Router) {
				ar.Use(middleware.RequirePermission(sessions, authz.PermManageSettings, authz.PermViewAuditLog))
				ar.Get("/admin/sessions", establishmentHandler.GetSessions)
			})
		})
	})
}

// routePattern labels metrics with the matched chi pattern so path
// parameters do not explode label cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
