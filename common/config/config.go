// Package config provides configuration loading for the BFF gateway.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultBackendBaseURL is used for session forwarding when backend.http_base_url is unset.
const DefaultBackendBaseURL = "http://localhost:5021"

// Config holds all configuration for the gateway.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	NATS      NATSConfig      `mapstructure:"nats"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Cookies   CookieConfig    `mapstructure:"cookies"`
	Updates   UpdatesConfig   `mapstructure:"updates"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
// WriteTimeout applies to ordinary responses; stream responses clear it.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// BackendConfig locates the agent-management service.
type BackendConfig struct {
	GRPCAddress    string        `mapstructure:"grpc_address"`
	HTTPBaseURL    string        `mapstructure:"http_base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	TLS            bool          `mapstructure:"tls"`
	CAFile         string        `mapstructure:"ca_file"`
}

// StreamConfig tunes analytics stream sessions.
// Zero durations disable the corresponding limit. OpenTimeout bounds
// connecting to the backend; it never limits the wait for the first sample.
type StreamConfig struct {
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
	MaxDuration time.Duration `mapstructure:"max_duration"`
}

// DatabaseConfig holds PostgreSQL configuration. An empty DSN disables the
// audit store and the readiness probe reports the database as not configured.
type DatabaseConfig struct {
	DSN  string     `mapstructure:"dsn"`
	Pool PoolConfig `mapstructure:"pool"`
}

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// RedisConfig holds Redis configuration for the session cache and rate limiter.
type RedisConfig struct {
	URL        string        `mapstructure:"url"`
	Enabled    bool          `mapstructure:"enabled"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// NATSConfig holds NATS message broker configuration.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Enabled       bool          `mapstructure:"enabled"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	// SigningKey, when set, signs every published event with HMAC-SHA256.
	SigningKey string `mapstructure:"signing_key"`
}

// RateLimitConfig configures per-client request limiting.
// Backend is "redis" or "local". The local limiter is a token bucket of
// RequestsPerSecond and Burst; the Redis limiter admits Burst requests per
// Window across all instances.
type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Backend           string        `mapstructure:"backend"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Window            time.Duration `mapstructure:"window"`
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxAge         int      `mapstructure:"max_age"`
}

// CookieConfig names the backend session cookie. Secure marks the
// deployment as HTTPS-only and enables HSTS.
type CookieConfig struct {
	SessionName string `mapstructure:"session_name"`
	Secure      bool   `mapstructure:"secure"`
}

// UpdatesConfig points at the binary distribution directory.
// An empty Dir disables /updates/.
type UpdatesConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from defaults, an optional YAML file and
// BFF_-prefixed environment variables, in increasing precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/avika/bff")
	}

	// Environment variables override (BFF_SERVER_PORT, BFF_BACKEND_GRPC_ADDRESS, etc.)
	v.SetEnvPrefix("BFF")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Backend.HTTPBaseURL == "" {
		cfg.Backend.HTTPBaseURL = DefaultBackendBaseURL
	}
	cfg.Backend.HTTPBaseURL = strings.TrimRight(cfg.Backend.HTTPBaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the gateway cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Backend.GRPCAddress == "" {
		return errors.New("backend.grpc_address is required")
	}
	if c.Stream.OpenTimeout < 0 || c.Stream.MaxDuration < 0 {
		return errors.New("stream durations must not be negative")
	}
	switch c.RateLimit.Backend {
	case "redis", "local":
	default:
		return fmt.Errorf("invalid rate_limit.backend %q", c.RateLimit.Backend)
	}
	if c.RateLimit.Enabled && c.RateLimit.Backend == "redis" && !c.Redis.Enabled {
		return errors.New("rate_limit.backend redis requires redis.enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5022)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("backend.grpc_address", "localhost:5020")
	v.SetDefault("backend.http_base_url", DefaultBackendBaseURL)
	v.SetDefault("backend.request_timeout", "10s")
	v.SetDefault("backend.tls", false)
	v.SetDefault("backend.ca_file", "")

	v.SetDefault("stream.open_timeout", "10s")
	v.SetDefault("stream.max_duration", "0s")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.pool.max_open_conns", 25)
	v.SetDefault("database.pool.max_idle_conns", 5)
	v.SetDefault("database.pool.conn_max_lifetime", "5m")
	v.SetDefault("database.pool.conn_max_idle_time", "10m")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.session_ttl", "30s")

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.signing_key", "")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.backend", "local")
	v.SetDefault("rate_limit.requests_per_second", 50)
	v.SetDefault("rate_limit.burst", 100)
	v.SetDefault("rate_limit.window", "1s")

	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("cookies.session_name", "avika_session")
	v.SetDefault("cookies.secure", false)

	v.SetDefault("updates.dir", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
