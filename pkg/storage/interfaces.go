package storage

import (
	"context"
	"io"
	"time"
)

// ImageStore stores uploaded recipe images
type ImageStore interface {
	// Put stores the content under key, replacing any previous object
	Put(ctx context.Context, key, contentType string, content io.Reader, size int64) error
	// Delete removes the object; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
	// URL returns the public location of the object
	URL(key string) string
}

// Config for storage backends
type Config struct {
	// Database config
	Driver      string // "postgres" or "sqlite3"
	DSN         string
	MaxConns    int
	MinConns    int
	ConnTimeout time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration

	// Image storage config
	ImageBackend string // "filesystem" or "s3"
	MediaRoot    string
	MediaURL     string

	// S3 config
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
	S3PublicURL    string

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// Token cache config
	CacheEnabled   bool
	TokenCacheSize int
	TokenCacheTTL  time.Duration
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Driver:          "postgres",
		MaxConns:        20,
		MinConns:        2,
		ConnTimeout:     10 * time.Second,
		MaxLifetime:     1 * time.Hour,
		MaxIdleTime:     10 * time.Minute,
		ImageBackend:    "filesystem",
		MediaRoot:       "/vol/web/media",
		MediaURL:        "/media/",
		S3Region:        "us-east-1",
		RedisDB:         0,
		RedisMaxRetries: 3,
		RedisPoolSize:   10,
		CacheEnabled:    true,
		TokenCacheSize:  10000,
		TokenCacheTTL:   30 * time.Second,
	}
}
