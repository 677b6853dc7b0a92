package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Session store backends.
const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// Config holds the complete application configuration, loadable from
// environment variables (TECHSTORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (TECHSTORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for admin API key hashing" flag:"api-key-pepper"`
	Catalog      CatalogConfig
	Session      SessionConfig
	Kafka        KafkaConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// CatalogConfig controls the in-process voucher catalog cache.
type CatalogConfig struct {
	TTL      time.Duration `default:"30s" usage:"How long a loaded voucher catalog is served"`
	MaxStale time.Duration `default:"5m"  usage:"How long a stale catalog is served while the database is failing"`
}

// SessionConfig selects where checkout sessions live.
type SessionConfig struct {
	Backend       string        `default:"memory" usage:"Checkout session store: memory or redis"`
	TTL           time.Duration `default:"24h"    usage:"Checkout session lifetime since last change"`
	RedisAddr     string        `default:"localhost:6379" usage:"Redis address for the redis backend"`
	RedisPassword string        `usage:"Redis password"`
	RedisDB       int           `default:"0" usage:"Redis database number"`
}

// KafkaConfig enables order event publishing when Brokers is set.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka brokers for order events; empty disables publishing"`
	Topic   string   `default:"techstore.orders" usage:"Kafka topic for order events"`
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	RPS   float64 `default:"10" usage:"Sustained requests per second per client"`
	Burst int     `default:"40" usage:"Burst size per client"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from command-line args, environment
// variables and YAML config files, and applies platform-specific defaults.
func LoadConfig(args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "TECHSTORE",
		Args:      args,
		Files:     []string{"config.yaml", "/etc/techstore/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration the server cannot start with.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set TECHSTORE_DATABASE_URL or DATABASE_URL")
	case c.Session.Backend != SessionMemory && c.Session.Backend != SessionRedis:
		return errors.Errorf("unknown session backend %q", c.Session.Backend)
	case c.Session.TTL <= 0:
		return errors.New("session TTL must be positive")
	case c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0:
		return errors.New("rate limit RPS and burst must be positive")
	case len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "":
		return errors.New("kafka topic is required when brokers are set")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's TECHSTORE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
