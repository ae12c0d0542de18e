// Package config loads pantry configuration from an optional YAML file and
// environment variables.
//
// Values are applied in order: struct tag defaults, the file named by
// PANTRY_CONFIG_FILE, then PANTRY_* environment variables.
//
// Server:
//
//	PANTRY_HOST="0.0.0.0"
//	PANTRY_PORT="8000"
//	PANTRY_HEALTH_PORT="9090"
//	PANTRY_CORS_ORIGINS="https://app.example.com"
//	PANTRY_TRUST_PROXY_HEADERS="false"
//
// Database and media:
//
//	PANTRY_DB_DRIVER="postgres"  # postgres, sqlite3
//	PANTRY_DB_DSN="postgres://pantry@db/pantry"
//	PANTRY_MEDIA_BACKEND="filesystem"  # filesystem, s3
//	PANTRY_MEDIA_S3_BUCKET="pantry-media"
//	PANTRY_REDIS_URL="redis://redis:6379/0"
//
// Authentication:
//
//	PANTRY_AUTH_KEYWORD="Token"
//	PANTRY_AUTH_COOKIE="auth_token"
//	PANTRY_AUTH_COOKIE_SECURE="true"
//	PANTRY_AUTH_COOKIE_HTTP_ONLY="true"
//	PANTRY_AUTH_COOKIE_SAMESITE="Lax"
//	PANTRY_AUTH_TRUSTED_ORIGINS="https://app.example.com"
//
// Observability and maintenance:
//
//	PANTRY_LOG_LEVEL="info"
//	PANTRY_OTEL_ENABLED="false"
//	PANTRY_TOKEN_REAP_SCHEDULE="@hourly"
//
// Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	authCfg, _ := cfg.AuthConfig()
package config
