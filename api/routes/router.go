package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/resqlink/resqlink-backend/api/controllers"
	"github.com/resqlink/resqlink-backend/api/middleware"
	"github.com/resqlink/resqlink-backend/internal/coverage"
	"github.com/resqlink/resqlink-backend/internal/dispatch"
	"github.com/resqlink/resqlink-backend/internal/providers"
	"github.com/resqlink/resqlink-backend/internal/requests"
	"github.com/resqlink/resqlink-backend/pkg/config"
	"github.com/resqlink/resqlink-backend/pkg/db"
	"github.com/resqlink/resqlink-backend/pkg/enums"
	"github.com/resqlink/resqlink-backend/pkg/logger"
	pkgredis "github.com/resqlink/resqlink-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs. All fields are required
// except Redis, which only disables request idempotency when absent.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        db.Pinger
	Redis     *pkgredis.Client
	Requests  *requests.Service
	Providers *providers.Service
	Dispatch  *dispatch.Service
	Coverage  *coverage.Service
}

// NewRouter wires the full HTTP surface: health and metrics endpoints,
// member-facing panic intake, and the firm-facing dispatch console.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	// Interface conversions below must stay nil when Redis is absent, or the
	// middleware sees a non-nil interface wrapping a nil client.
	var idempotencyStore pkgredis.IdempotencyStore
	var cachePinger pkgredis.Pinger
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		cachePinger = deps.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Get("/healthz", controllers.HealthLive(cfg))
	r.Get("/health/ready", controllers.HealthReady(cfg, logg, deps.DB, cachePinger))
	r.Handle("/metrics", promhttp.Handler())

	// Device location pings authenticate with the provider's device key, not
	// a member or operator token.
	r.Post("/api/v1/providers/{providerId}/location", controllers.ProviderLocation(deps.Providers, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Get("/coverage/check", controllers.CoverageCheck(deps.Coverage, logg))

		r.Route("/panics", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, string(enums.ActorRoleMember))).
				Post("/", controllers.PanicSubmit(deps.Requests, logg))
			r.Get("/", controllers.PanicList(deps.Requests, logg))
			r.Get("/{panicId}", controllers.PanicGet(deps.Requests, logg))
			r.With(middleware.RequireRole(logg, string(enums.ActorRoleOperator), string(enums.ActorRoleAdmin))).
				Post("/{panicId}/status", controllers.PanicTransition(deps.Requests, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, string(enums.ActorRoleOperator), string(enums.ActorRoleAdmin)))

			r.Get("/providers/nearest", controllers.ProvidersNearest(deps.Dispatch, cfg.Dispatch, logg))
			r.Post("/assignments", controllers.AssignmentCreate(deps.Dispatch, logg))

			r.Route("/firms/{firmId}/providers", func(r chi.Router) {
				r.Get("/", controllers.ProviderList(deps.Providers, logg))
				r.Post("/", controllers.ProviderCreate(deps.Providers, logg))
			})

			r.Route("/providers/{providerId}", func(r chi.Router) {
				r.Get("/", controllers.ProviderGet(deps.Providers, logg))
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(logg, string(enums.ActorRoleAdmin)))
					r.Patch("/", controllers.ProviderUpdate(deps.Providers, logg))
					r.Delete("/", controllers.ProviderDeactivate(deps.Providers, logg))
				})
			})
		})
	})

	return r
}
