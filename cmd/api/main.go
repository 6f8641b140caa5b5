package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/resqlink/resqlink-backend/api/routes"
	"github.com/resqlink/resqlink-backend/internal/coverage"
	"github.com/resqlink/resqlink-backend/internal/dispatch"
	"github.com/resqlink/resqlink-backend/internal/groups"
	"github.com/resqlink/resqlink-backend/internal/guards"
	"github.com/resqlink/resqlink-backend/internal/providers"
	"github.com/resqlink/resqlink-backend/internal/requests"
	"github.com/resqlink/resqlink-backend/internal/subscriptions"
	"github.com/resqlink/resqlink-backend/pkg/config"
	"github.com/resqlink/resqlink-backend/pkg/db"
	"github.com/resqlink/resqlink-backend/pkg/logger"
	"github.com/resqlink/resqlink-backend/pkg/maps"
	"github.com/resqlink/resqlink-backend/pkg/metrics"
	"github.com/resqlink/resqlink-backend/pkg/migrate"
	"github.com/resqlink/resqlink-backend/pkg/outbox"
	"github.com/resqlink/resqlink-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	deps, err := buildServices(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(deps),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Deps, error) {
	gormDB := dbClient.DB()

	groupService, err := groups.NewService(groups.ServiceParams{
		Repo: groups.NewRepository(gormDB),
	})
	if err != nil {
		return routes.Deps{}, err
	}

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo: subscriptions.NewRepository(gormDB),
	})
	if err != nil {
		return routes.Deps{}, err
	}

	coverageService, err := coverage.NewService(coverage.ServiceParams{
		Repo:            coverage.NewRepository(gormDB),
		MaxAlternatives: cfg.Dispatch.MaxAlternativeFirms,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	rateLimiter, err := guards.NewRateLimiter(redisClient, cfg.Dispatch.RateLimitMax, cfg.Dispatch.RateLimitWindow)
	if err != nil {
		return routes.Deps{}, err
	}
	duplicateGuard, err := guards.NewDuplicateGuard(redisClient, cfg.Dispatch.DuplicateWindow, cfg.Dispatch.DuplicateRadiusM)
	if err != nil {
		return routes.Deps{}, err
	}

	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	dispatchMetrics := metrics.NewDispatchMetrics(prometheus.DefaultRegisterer)

	dispatchService, err := dispatch.NewService(dispatch.ServiceParams{
		DB:       dbClient,
		Repo:     dispatch.NewRepository(gormDB),
		Outbox:   outboxService,
		Metrics:  dispatchMetrics,
		Logger:   logg,
		Defaults: cfg.Dispatch,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	requestParams := requests.ServiceParams{
		DB:             dbClient,
		Repo:           requests.NewRepository(gormDB),
		Members:        groupService,
		Subscriptions:  subscriptionService,
		Coverage:       coverageService,
		RateLimit:      rateLimiter,
		Duplicates:     duplicateGuard,
		Dispatch:       dispatchService,
		Outbox:         outboxService,
		Metrics:        dispatchMetrics,
		Logger:         logg,
		GeocodeTimeout: cfg.Dispatch.GeocodeTimeout,
	}
	if cfg.GoogleMaps.APIKey != "" {
		geocoder, err := maps.NewClient(cfg.GoogleMaps.APIKey)
		if err != nil {
			return routes.Deps{}, err
		}
		requestParams.Geocoder = geocoder
	}

	requestService, err := requests.NewService(requestParams)
	if err != nil {
		return routes.Deps{}, err
	}

	providerService, err := providers.NewService(providers.ServiceParams{
		Repo:      providers.NewRepository(gormDB),
		DeviceKey: cfg.DeviceKey,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	return routes.Deps{
		Config:    cfg,
		Logger:    logg,
		DB:        dbClient,
		Redis:     redisClient,
		Requests:  requestService,
		Providers: providerService,
		Dispatch:  dispatchService,
		Coverage:  coverageService,
	}, nil
}
