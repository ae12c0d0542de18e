// Package observability provides structured logging, Prometheus metrics,
// health checks, OpenTelemetry setup and graceful shutdown for pantry.
//
// # Structured Logging
//
// Logger wraps logrus with a JSON formatter:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("recipe_id", id).Info("recipe created")
//
// Handlers use the request-scoped logger, which carries request_id and user_id:
//
//	observability.FromContext(r.Context()).WithError(err).Error("list recipes")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	metrics.RecordAuth("cookie", "success")
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	checker.AddCheck("images", s3Store.HealthCheck)
//	observability.RegisterHealthRoutes(router, checker)
//
// The database decides between healthy and unhealthy; Redis and extra checks
// can only degrade the status.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: observability settings
//   - pkg/httputil: request logging middleware
package observability
