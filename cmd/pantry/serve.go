package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/pantry/pkg/api"
	"github.com/platinummonkey/pantry/pkg/auth"
	"github.com/platinummonkey/pantry/pkg/config"
	"github.com/platinummonkey/pantry/pkg/maintenance"
	"github.com/platinummonkey/pantry/pkg/middleware"
	"github.com/platinummonkey/pantry/pkg/observability"
	"github.com/platinummonkey/pantry/pkg/storage"
	"github.com/platinummonkey/pantry/pkg/storage/sqlstore"
)

const (
	flagMigrate    = "migrate"
	statsInterval  = 15 * time.Second
	limiterMaxKeys = 100000
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the API, health and metrics servers",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagMigrate,
				Value:   true,
				EnvVars: []string{"PANTRY_MIGRATE_ON_START"},
				Usage:   "apply pending migrations before serving",
			},
		},
		Action: func(cCtx *cli.Context) error {
			cfg, logger, err := setup(cCtx)
			if err != nil {
				return err
			}
			return serve(cCtx.Context, cfg, logger, cCtx.Bool(flagMigrate))
		},
	}
}

func serve(parent context.Context, cfg *config.Config, logger *observability.Logger, migrate bool) error {
	ctx, stop := signalContext(parent)
	defer stop()

	logger.WithField("version", version).Info("Starting pantry")

	otelProviders, err := observability.InitOTel(ctx, cfg.OTelConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	storeCfg := cfg.StorageConfig()
	store, err := sqlstore.Open(storeCfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	logger.WithField("driver", store.Driver()).Info("Connected to database")

	if migrate {
		applied, err := store.Migrate(ctx)
		if err != nil {
			store.Close()
			return err
		}
		if len(applied) > 0 {
			logger.WithField("versions", applied).Info("Applied migrations")
		}
	}

	var redisClient *redis.Client
	if storeCfg.RedisURL != "" {
		redisClient, err = sqlstore.NewRedisClient(storeCfg)
		if err != nil {
			store.Close()
			return err
		}
		logger.Info("Connected to Redis")
	}

	images, err := newImageStore(ctx, storeCfg)
	if err != nil {
		store.Close()
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	authCfg, err := cfg.AuthConfig()
	if err != nil {
		store.Close()
		return err
	}

	deps := api.Dependencies{
		Users:       store,
		Tokens:      store,
		Tags:        store.Tags(),
		Ingredients: store.Ingredients(),
		Recipes:     store.Recipes(),
		Images:      images,
		Hasher:      auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Logger:      logger,
		Metrics:     metrics,
	}

	var cachedTokens *sqlstore.CachedTokenStore
	if storeCfg.CacheEnabled {
		cachedTokens = store.NewTokenCache(storeCfg.TokenCacheSize, storeCfg.TokenCacheTTL, redisClient)
		deps.Tokens = cachedTokens
	}

	if cfg.RateLimit.Enabled {
		deps.LoginLimiter, deps.APILimiter = newLimiters(cfg, redisClient)
	}

	server := api.NewServer(api.Config{
		Auth:              authCfg,
		CORSOrigins:       cfg.Server.CORSOrigins,
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
		RequestTimeout:    cfg.Server.RequestTimeout,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
	}, deps)

	apiServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthChecker := observability.NewHealthChecker(store.DB(), redisClient, version)
	if s3Images, ok := images.(*sqlstore.S3ImageStore); ok {
		healthChecker.AddCheck("s3", s3Images.HealthCheck)
	}
	healthServer := &http.Server{
		Addr:         cfg.HealthAddr(),
		Handler:      healthHandler(healthChecker, registry, cfg.Observability.MetricsEnabled),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	scheduler := maintenance.NewScheduler(logger)
	var reapTarget maintenance.InactiveTokenDeleter = store
	if cachedTokens != nil {
		reapTarget = cachedTokens
	}
	reaper := maintenance.NewTokenReaper(reapTarget, metrics, logger)
	if err := scheduler.Add("token-reaper", cfg.Maintenance.Schedule, cfg.Maintenance.Timeout, maintenance.ReapJob(reaper)); err != nil {
		store.Close()
		return err
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	shutdown.RegisterServer(apiServer)
	shutdown.RegisterServer(healthServer)
	shutdown.RegisterShutdownFunc("database", func(context.Context) error { return store.Close() })
	if redisClient != nil {
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error { return redisClient.Close() })
	}
	shutdown.RegisterShutdownFunc("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		return listen(apiServer)
	})
	g.Go(func() error {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		return listen(healthServer)
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		recordStats(gctx, store, cachedTokens, metrics)
		return nil
	})
	g.Go(func() error {
		return shutdown.WaitForShutdown(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Server stopped with error")
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// listen runs srv until it is shut down
func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server %s failed: %w", srv.Addr, err)
	}
	return nil
}

func newImageStore(ctx context.Context, cfg storage.Config) (storage.ImageStore, error) {
	switch cfg.ImageBackend {
	case "s3":
		return sqlstore.NewS3ImageStore(ctx, cfg)
	default:
		return storage.NewFileSystemImageStore(cfg.MediaRoot, cfg.MediaURL)
	}
}

// newLimiters shares counters through Redis when it is available so every
// instance enforces the same budget
func newLimiters(cfg *config.Config, redisClient *redis.Client) (loginLimiter, apiLimiter middleware.Limiter) {
	if redisClient != nil && cfg.RateLimit.Distributed {
		return middleware.NewDistributedRateLimiter(redisClient, cfg.LoginRateLimit(), middleware.DefaultRedisPrefix+":login"),
			middleware.NewDistributedRateLimiter(redisClient, cfg.APIRateLimit(), middleware.DefaultRedisPrefix+":api")
	}
	return middleware.NewRateLimiter(cfg.LoginRateLimit(), limiterMaxKeys),
		middleware.NewRateLimiter(cfg.APIRateLimit(), limiterMaxKeys)
}

func healthHandler(checker *observability.HealthChecker, registry *prometheus.Registry, withMetrics bool) http.Handler {
	router := mux.NewRouter()
	observability.RegisterHealthRoutes(router, checker)

	serveMux := http.NewServeMux()
	if withMetrics {
		observability.RegisterMetricsEndpoint(serveMux, registry)
	}
	serveMux.Handle("/", router)
	return serveMux
}

// recordStats refreshes the pool and cache gauges until ctx is done
func recordStats(ctx context.Context, store *sqlstore.Store, cache *sqlstore.CachedTokenStore, metrics *observability.Metrics) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		metrics.UpdateDBStats(store.DB().Stats())
		if cache != nil {
			metrics.TokenCacheEntries.Set(float64(cache.Len()))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
