package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/pantry/pkg/auth"
	"github.com/platinummonkey/pantry/pkg/middleware"
	"github.com/platinummonkey/pantry/pkg/observability"
	"github.com/platinummonkey/pantry/pkg/storage"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "PANTRY_"

// ConfigFileEnv names the optional YAML file loaded before the environment
const ConfigFileEnv = EnvPrefix + "CONFIG_FILE"

// noDefaultsTag is a tag name no field carries, so the second parse only
// applies variables that are actually set
const noDefaultsTag = "envDefaultDisabled"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `envPrefix:"" yaml:"server"`
	Database      DatabaseConfig      `envPrefix:"DB_" yaml:"database"`
	Media         MediaConfig         `envPrefix:"MEDIA_" yaml:"media"`
	Redis         RedisConfig         `envPrefix:"REDIS_" yaml:"redis"`
	Cache         CacheConfig         `envPrefix:"TOKEN_CACHE_" yaml:"token_cache"`
	Auth          AuthConfig          `envPrefix:"AUTH_" yaml:"auth"`
	RateLimit     RateLimitConfig     `envPrefix:"RATE_LIMIT_" yaml:"rate_limit"`
	Observability ObservabilityConfig `envPrefix:"" yaml:"observability"`
	Maintenance   MaintenanceConfig   `envPrefix:"TOKEN_REAP_" yaml:"maintenance"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0" yaml:"host"`
	Port            string        `env:"PORT" envDefault:"8000" yaml:"port"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s" yaml:"read_timeout"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s" yaml:"write_timeout"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s" yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"20s" yaml:"request_timeout"`
	MaxBodyBytes    int64         `env:"MAX_BODY_BYTES" envDefault:"10485760" yaml:"max_body_bytes"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `env:"HEALTH_PORT" envDefault:"9090" yaml:"health_port"`

	CORSOrigins       []string `env:"CORS_ORIGINS" envSeparator:"," yaml:"cors_origins"`
	TrustProxyHeaders bool     `env:"TRUST_PROXY_HEADERS" envDefault:"false" yaml:"trust_proxy_headers"`
}

// DatabaseConfig selects and sizes the SQL database
type DatabaseConfig struct {
	Driver      string        `env:"DRIVER" envDefault:"postgres" yaml:"driver"`
	DSN         string        `env:"DSN" yaml:"dsn"`
	MaxConns    int           `env:"MAX_CONNS" envDefault:"20" yaml:"max_conns"`
	MinConns    int           `env:"MIN_CONNS" envDefault:"2" yaml:"min_conns"`
	ConnTimeout time.Duration `env:"CONN_TIMEOUT" envDefault:"10s" yaml:"conn_timeout"`
	MaxLifetime time.Duration `env:"MAX_LIFETIME" envDefault:"1h" yaml:"max_lifetime"`
	MaxIdleTime time.Duration `env:"MAX_IDLE_TIME" envDefault:"10m" yaml:"max_idle_time"`
}

// MediaConfig selects where recipe images are stored
type MediaConfig struct {
	Backend string `env:"BACKEND" envDefault:"filesystem" yaml:"backend"`
	Root    string `env:"ROOT" envDefault:"/vol/web/media" yaml:"root"`
	URL     string `env:"URL" envDefault:"/media/" yaml:"url"`

	S3Endpoint     string `env:"S3_ENDPOINT" yaml:"s3_endpoint"`
	S3Region       string `env:"S3_REGION" envDefault:"us-east-1" yaml:"s3_region"`
	S3Bucket       string `env:"S3_BUCKET" yaml:"s3_bucket"`
	S3AccessKey    string `env:"S3_ACCESS_KEY" yaml:"s3_access_key"`
	S3SecretKey    string `env:"S3_SECRET_KEY" yaml:"s3_secret_key"`
	S3UsePathStyle bool   `env:"S3_USE_PATH_STYLE" envDefault:"false" yaml:"s3_use_path_style"`
	S3PublicURL    string `env:"S3_PUBLIC_URL" yaml:"s3_public_url"`
}

// RedisConfig holds the optional Redis connection. An empty URL disables Redis.
type RedisConfig struct {
	URL        string `env:"URL" yaml:"url"`
	Password   string `env:"PASSWORD" yaml:"password"`
	DB         int    `env:"DB" envDefault:"0" yaml:"db"`
	MaxRetries int    `env:"MAX_RETRIES" envDefault:"3" yaml:"max_retries"`
	PoolSize   int    `env:"POOL_SIZE" envDefault:"10" yaml:"pool_size"`
}

// CacheConfig sizes the token lookup cache
type CacheConfig struct {
	Enabled bool          `env:"ENABLED" envDefault:"true" yaml:"enabled"`
	Size    int           `env:"SIZE" envDefault:"10000" yaml:"size"`
	TTL     time.Duration `env:"TTL" envDefault:"30s" yaml:"ttl"`
}

// AuthConfig holds token authentication settings
type AuthConfig struct {
	Keyword        string   `env:"KEYWORD" envDefault:"Token" yaml:"keyword"`
	Cookie         string   `env:"COOKIE" envDefault:"auth_token" yaml:"cookie"`
	CookieDomain   string   `env:"COOKIE_DOMAIN" yaml:"cookie_domain"`
	CookieSecure   bool     `env:"COOKIE_SECURE" envDefault:"true" yaml:"cookie_secure"`
	CookieHTTPOnly bool     `env:"COOKIE_HTTP_ONLY" envDefault:"true" yaml:"cookie_http_only"`
	CookieSameSite string   `env:"COOKIE_SAMESITE" envDefault:"Lax" yaml:"cookie_samesite"`
	CSRFCookieName string   `env:"CSRF_COOKIE" envDefault:"csrftoken" yaml:"csrf_cookie"`
	CSRFHeaderName string   `env:"CSRF_HEADER" envDefault:"X-CSRFToken" yaml:"csrf_header"`
	TrustedOrigins []string `env:"TRUSTED_ORIGINS" envSeparator:"," yaml:"trusted_origins"`
	BcryptCost     int      `env:"BCRYPT_COST" envDefault:"12" yaml:"bcrypt_cost"`
}

// RateLimitConfig holds the throttles of the login route and the API
type RateLimitConfig struct {
	Enabled bool `env:"ENABLED" envDefault:"true" yaml:"enabled"`
	// Distributed shares counters through Redis when Redis is configured
	Distributed bool `env:"DISTRIBUTED" envDefault:"true" yaml:"distributed"`

	LoginRequests int           `env:"LOGIN_REQUESTS" envDefault:"10" yaml:"login_requests"`
	LoginWindow   time.Duration `env:"LOGIN_WINDOW" envDefault:"1m" yaml:"login_window"`
	LoginBurst    int           `env:"LOGIN_BURST" envDefault:"5" yaml:"login_burst"`

	APIRequests int           `env:"API_REQUESTS" envDefault:"600" yaml:"api_requests"`
	APIWindow   time.Duration `env:"API_WINDOW" envDefault:"1m" yaml:"api_window"`
	APIBurst    int           `env:"API_BURST" envDefault:"60" yaml:"api_burst"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info" yaml:"log_level"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true" yaml:"metrics_enabled"`

	OTelEnabled        bool    `env:"OTEL_ENABLED" envDefault:"false" yaml:"otel_enabled"`
	OTelEndpoint       string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4317" yaml:"otel_endpoint"`
	OTelServiceName    string  `env:"OTEL_SERVICE_NAME" envDefault:"pantry" yaml:"otel_service_name"`
	OTelServiceVersion string  `env:"OTEL_SERVICE_VERSION" envDefault:"1.0.0" yaml:"otel_service_version"`
	OTelInsecure       bool    `env:"OTEL_INSECURE" envDefault:"true" yaml:"otel_insecure"`
	OTelSampleRatio    float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1" yaml:"otel_sample_ratio"`
}

// MaintenanceConfig schedules background jobs
type MaintenanceConfig struct {
	Schedule string        `env:"SCHEDULE" envDefault:"@hourly" yaml:"schedule"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"5m" yaml:"timeout"`
}

// Load reads configuration from the file named by PANTRY_CONFIG_FILE (if
// any) and the environment, then validates it
func Load() (*Config, error) {
	return LoadFile(os.Getenv(ConfigFileEnv))
}

// LoadFile is Load with an explicit config file; an empty path reads the
// environment only
func LoadFile(path string) (*Config, error) {
	return load(path, nil)
}

// load applies defaults, then the YAML file, then environment variables.
// A nil environ reads the process environment.
func load(path string, environ map[string]string) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{
		Prefix:      EnvPrefix,
		Environment: map[string]string{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix:              EnvPrefix,
		Environment:         environ,
		DefaultValueTagName: noDefaultsTag,
	}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	switch c.Media.Backend {
	case "filesystem":
		if c.Media.Root == "" {
			return fmt.Errorf("media root is required for filesystem image storage")
		}
	case "s3":
		if c.Media.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 image storage")
		}
	default:
		return fmt.Errorf("invalid media backend: %s (must be filesystem or s3)", c.Media.Backend)
	}

	authCfg, err := c.AuthConfig()
	if err != nil {
		return err
	}
	if err := authCfg.Validate(); err != nil {
		return err
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 4 and 31")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.LoginRequests <= 0 || c.RateLimit.LoginWindow <= 0 {
			return fmt.Errorf("login rate limit needs positive requests and window")
		}
		if c.RateLimit.APIRequests <= 0 || c.RateLimit.APIWindow <= 0 {
			return fmt.Errorf("api rate limit needs positive requests and window")
		}
	}

	if _, err := observability.ParseLogLevel(c.Observability.LogLevel); err != nil {
		return err
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	if _, err := cron.ParseStandard(c.Maintenance.Schedule); err != nil {
		return fmt.Errorf("invalid token reap schedule %q: %w", c.Maintenance.Schedule, err)
	}

	return nil
}

// Addr returns the API listen address
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// HealthAddr returns the health and metrics listen address
func (c *Config) HealthAddr() string {
	return c.Server.Host + ":" + c.Server.HealthPort
}

// LogLevel returns the parsed log level, InfoLevel when unparseable
func (c *Config) LogLevel() observability.LogLevel {
	level, _ := observability.ParseLogLevel(c.Observability.LogLevel)
	return level
}

// AuthConfig builds the settings of the auth package
func (c *Config) AuthConfig() (auth.Config, error) {
	sameSite, err := auth.ParseSameSite(c.Auth.CookieSameSite)
	if err != nil {
		return auth.Config{}, err
	}

	cfg := auth.DefaultConfig()
	cfg.Keyword = c.Auth.Keyword
	cfg.CookieName = c.Auth.Cookie
	cfg.CookieDomain = c.Auth.CookieDomain
	cfg.CookieSecure = c.Auth.CookieSecure
	cfg.CookieHTTPOnly = c.Auth.CookieHTTPOnly
	cfg.CookieSameSite = sameSite
	cfg.CSRFCookieName = c.Auth.CSRFCookieName
	cfg.CSRFHeaderName = c.Auth.CSRFHeaderName
	cfg.TrustedOrigins = c.Auth.TrustedOrigins
	return cfg, nil
}

// StorageConfig builds the settings of the storage backends
func (c *Config) StorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	cfg.Driver = c.Database.Driver
	cfg.DSN = c.Database.DSN
	cfg.MaxConns = c.Database.MaxConns
	cfg.MinConns = c.Database.MinConns
	cfg.ConnTimeout = c.Database.ConnTimeout
	cfg.MaxLifetime = c.Database.MaxLifetime
	cfg.MaxIdleTime = c.Database.MaxIdleTime

	cfg.ImageBackend = c.Media.Backend
	cfg.MediaRoot = c.Media.Root
	cfg.MediaURL = c.Media.URL
	cfg.S3Endpoint = c.Media.S3Endpoint
	cfg.S3Region = c.Media.S3Region
	cfg.S3Bucket = c.Media.S3Bucket
	cfg.S3AccessKey = c.Media.S3AccessKey
	cfg.S3SecretKey = c.Media.S3SecretKey
	cfg.S3UsePathStyle = c.Media.S3UsePathStyle
	cfg.S3PublicURL = c.Media.S3PublicURL

	cfg.RedisURL = c.Redis.URL
	cfg.RedisPassword = c.Redis.Password
	cfg.RedisDB = c.Redis.DB
	cfg.RedisMaxRetries = c.Redis.MaxRetries
	cfg.RedisPoolSize = c.Redis.PoolSize

	cfg.CacheEnabled = c.Cache.Enabled
	cfg.TokenCacheSize = c.Cache.Size
	cfg.TokenCacheTTL = c.Cache.TTL

	return cfg
}

// OTelConfig builds the OpenTelemetry settings
func (c *Config) OTelConfig() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		ServiceName:    c.Observability.OTelServiceName,
		ServiceVersion: c.Observability.OTelServiceVersion,
		Insecure:       c.Observability.OTelInsecure,
		SampleRatio:    c.Observability.OTelSampleRatio,
	}
}

// LoginRateLimit returns the throttle of the credential endpoints
func (c *Config) LoginRateLimit() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		RequestsPerWindow: c.RateLimit.LoginRequests,
		WindowDuration:    c.RateLimit.LoginWindow,
		BurstSize:         c.RateLimit.LoginBurst,
	}
}

// APIRateLimit returns the throttle of authenticated API traffic
func (c *Config) APIRateLimit() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		RequestsPerWindow: c.RateLimit.APIRequests,
		WindowDuration:    c.RateLimit.APIWindow,
		BurstSize:         c.RateLimit.APIBurst,
	}
}
