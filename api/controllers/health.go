package controllers

import (
	"net/http"

	"github.com/resqlink/resqlink-backend/api/responses"
	"github.com/resqlink/resqlink-backend/pkg/config"
	"github.com/resqlink/resqlink-backend/pkg/db"
	pkgerrors "github.com/resqlink/resqlink-backend/pkg/errors"
	"github.com/resqlink/resqlink-backend/pkg/logger"
	"github.com/resqlink/resqlink-backend/pkg/redis"
)

// HealthLive reports process liveness. It never touches dependencies.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ResQLink-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and Redis so load balancers only route
// traffic to instances that can actually serve it.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, cache redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ResQLink-Env", cfg.App.Env)

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database not ready"))
				return
			}
		}
		if cache != nil {
			if err := cache.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis not ready"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
