package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lMazer/pocket-finance-dashboard/internal/auth"
	pkgconfig "github.com/lMazer/pocket-finance-dashboard/pkg/config"
	"github.com/lMazer/pocket-finance-dashboard/pkg/database"
	"github.com/lMazer/pocket-finance-dashboard/pkg/middleware"
	"github.com/lMazer/pocket-finance-dashboard/pkg/tracing"
)

// ServiceName identifies the API in logs, metrics, traces and events.
const ServiceName = "pocket-finance-api"

// DevelopmentSecret is the JWT secret used when none is configured. It is
// rejected outside development.
const DevelopmentSecret = "pocket-finance-dev-secret-change-me-0123456789"

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all configuration for the API.
type Config struct {
	Environment     string        `env:"ENVIRONMENT" envDefault:"development" validate:"oneof=development staging production"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Storage
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres" validate:"oneof=postgres memory"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432" validate:"min=1,max=65535"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"pocket"`
	PostgresPass     string `env:"POSTGRES_PASSWORD" envDefault:"pocket"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"pocket_finance"`
	PostgresSSL      string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10" validate:"min=1"`
	PostgresMinConns int32  `env:"POSTGRES_MIN_CONNS" envDefault:"2" validate:"min=0"`
	RunMigrations    bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	// Statements slower than this are logged. Zero disables the log.
	SlowQueryThreshold time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// JWT
	JWTSecret        string `env:"JWT_SECRET" envDefault:"pocket-finance-dev-secret-change-me-0123456789" validate:"notblank"`
	JWTIssuer        string `env:"JWT_ISSUER" envDefault:"pocket-finance-api" validate:"notblank"`
	JWTAccessMinutes int    `env:"JWT_ACCESS_TOKEN_MINUTES" envDefault:"15" validate:"min=1"`
	JWTRefreshDays   int    `env:"JWT_REFRESH_TOKEN_DAYS" envDefault:"7" validate:"min=1"`
	BcryptCost       int    `env:"BCRYPT_COST" envDefault:"12" validate:"min=4,max=31"`

	// Redis
	RedisEnabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379" validate:"min=1,max=65535"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0" validate:"min=0"`

	// Login throttling
	LoginRateLimitEnabled bool          `env:"LOGIN_RATE_LIMIT_ENABLED" envDefault:"true"`
	LoginRateLimit        int           `env:"LOGIN_RATE_LIMIT" envDefault:"10" validate:"min=1"`
	LoginRateLimitWindow  time.Duration `env:"LOGIN_RATE_LIMIT_WINDOW" envDefault:"1m"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTelSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0" validate:"gte=0,lte=1"`

	// CORS
	CORSAllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	CORSAllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"`

	// Profiling
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`

	// Demo data. Empty means on in development and off elsewhere.
	SeedDemoUser string `env:"SEED_DEMO_USER" validate:"omitempty,oneof=true false"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load api config: %w", err)
	}

	if !cfg.IsDevelopment() {
		if cfg.JWTSecret == DevelopmentSecret {
			return nil, fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", cfg.Environment)
		}
		if cfg.StorageDriver == StorageMemory {
			return nil, fmt.Errorf("STORAGE_DRIVER %q is only allowed in development", StorageMemory)
		}
	}
	if cfg.PostgresMinConns > cfg.PostgresMaxConns {
		return nil, fmt.Errorf("POSTGRES_MIN_CONNS (%d) exceeds POSTGRES_MAX_CONNS (%d)", cfg.PostgresMinConns, cfg.PostgresMaxConns)
	}
	if cfg.LoginRateLimitWindow < time.Second {
		return nil, errors.New("LOGIN_RATE_LIMIT_WINDOW must be at least 1s")
	}

	// Fails on secrets shorter than the HS256 minimum.
	if _, err := auth.NewJWTManager(cfg.JWTConfig()); err != nil {
		return nil, fmt.Errorf("invalid JWT configuration: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the API runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// SeedDemo reports whether the demo user should be created on startup.
func (c *Config) SeedDemo() bool {
	if c.SeedDemoUser == "" {
		return c.IsDevelopment()
	}
	v, _ := strconv.ParseBool(c.SeedDemoUser)
	return v
}

// JWTConfig returns the token signing settings.
func (c *Config) JWTConfig() auth.JWTConfig {
	return auth.JWTConfig{
		Secret:     c.JWTSecret,
		Issuer:     c.JWTIssuer,
		AccessTTL:  time.Duration(c.JWTAccessMinutes) * time.Minute,
		RefreshTTL: time.Duration(c.JWTRefreshDays) * 24 * time.Hour,
	}
}

// PostgresConfig returns the connection pool settings.
func (c *Config) PostgresConfig() *database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPass
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSL
	pg.MaxConns = c.PostgresMaxConns
	pg.MinConns = c.PostgresMinConns
	return &pg
}

// RedisConfig returns the Redis client settings.
func (c *Config) RedisConfig() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Host = c.RedisHost
	rc.Port = c.RedisPort
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	return rc
}

// TracingConfig returns the OpenTelemetry settings.
func (c *Config) TracingConfig(version string) tracing.Config {
	return tracing.Config{
		ServiceName:    ServiceName,
		ServiceVersion: version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTelEndpoint,
		SampleRate:     c.OTelSampleRate,
		Enabled:        c.OTelEnabled,
	}
}

// CORSConfig returns the CORS middleware settings.
func (c *Config) CORSConfig() middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = c.CORSAllowedOrigins
	cors.AllowCredentials = c.CORSAllowCredentials
	cors.Environment = c.Environment
	return cors
}
