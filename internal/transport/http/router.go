// Package httptransport assembles the HTTP surface: middleware chain, public
// endpoints, and the authenticated API.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	personahandler "persona-gateway/internal/persona/handler"
	"persona-gateway/internal/platform/config"
	"persona-gateway/internal/platform/metrics"
	"persona-gateway/internal/platform/middleware"
	rewardhandler "persona-gateway/internal/reward/handler"
	"persona-gateway/pkg/platform/httputil"
)

// Registrar mounts a module's routes on the authenticated router.
type Registrar interface {
	Register(r chi.Router)
}

// Deps carries everything the router needs.
type Deps struct {
	Config      config.ServerConfig
	Logger      *slog.Logger
	HTTPMetrics *metrics.Metrics
	Persona     *personahandler.Handler
	Reward      *rewardhandler.Handler
	// Health reports backend readiness; nil means always ready.
	Health func() error
}

// NewRouter wires all endpoints. Everything under /v1 except the provider
// catalog requires a Bearer token carrying the caller's account address.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		// Provider catalog is public so clients can render the
		// verification menu before login.
		v1.Get("/providers", deps.Persona.HandleProviders)

		v1.Group(func(api chi.Router) {
			api.Use(middleware.RequireAuth(deps.Config.JWTSigningKey, deps.Logger))
			deps.Persona.Register(api)
			deps.Reward.Register(api)
		})
	})

	return r
}
