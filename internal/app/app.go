package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/lMazer/pocket-finance-dashboard/internal/auth"
	"github.com/lMazer/pocket-finance-dashboard/internal/config"
	"github.com/lMazer/pocket-finance-dashboard/internal/event"
	handler "github.com/lMazer/pocket-finance-dashboard/internal/handler/http"
	"github.com/lMazer/pocket-finance-dashboard/internal/repository"
	"github.com/lMazer/pocket-finance-dashboard/internal/repository/memory"
	"github.com/lMazer/pocket-finance-dashboard/internal/repository/postgres"
	"github.com/lMazer/pocket-finance-dashboard/internal/service"
	"github.com/lMazer/pocket-finance-dashboard/internal/session"
	"github.com/lMazer/pocket-finance-dashboard/migrations"
	"github.com/lMazer/pocket-finance-dashboard/pkg/database"
	"github.com/lMazer/pocket-finance-dashboard/pkg/health"
	pkgkafka "github.com/lMazer/pocket-finance-dashboard/pkg/kafka"
	"github.com/lMazer/pocket-finance-dashboard/pkg/ratelimit"
	"github.com/lMazer/pocket-finance-dashboard/pkg/tracing"
)

// Version is reported in traces.
const Version = "0.1.0"

// App wires together all dependencies and runs the API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.closeResources()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger
	reg := prometheus.DefaultRegisterer

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.TracingConfig(Version))
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	// User storage.
	users, err := a.initStorage(ctx, reg, healthHandler)
	if err != nil {
		return err
	}

	// Login throttling.
	limiter, err := a.initLimiter(ctx, healthHandler)
	if err != nil {
		return err
	}

	// Audit events.
	var publisher pkgkafka.Publisher = pkgkafka.NopPublisher{}
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = pkgkafka.NewBreakerPublisher(a.producer, pkgkafka.DefaultBreakerConfig("kafka-audit"), logger)
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	events := event.NewProducer(publisher, logger)

	// Build the dependency graph.
	tokens, err := auth.NewJWTManager(cfg.JWTConfig())
	if err != nil {
		return fmt.Errorf("create jwt manager: %w", err)
	}
	passwords := auth.NewBcryptHasher(cfg.BcryptCost)
	sessions := session.NewStore(users, tokens)
	authService := service.NewAuthService(users, sessions, tokens, passwords, events, service.NewMetrics(reg), logger)

	if cfg.SeedDemo() {
		if err := service.SeedDemoUser(ctx, users, passwords, logger); err != nil {
			return fmt.Errorf("seed demo user: %w", err)
		}
	}

	// HTTP router.
	routerCfg := handler.RouterConfig{
		ServiceName:    config.ServiceName,
		CORS:           cfg.CORSConfig(),
		PprofAllowlist: cfg.PprofAllowedCIDRs,
		LoginLimiter:   limiter,
		Registerer:     reg,
		Gatherer:       prometheus.DefaultGatherer,
	}
	router := handler.NewRouter(authService, handler.TokenValidator(tokens), healthHandler, routerCfg, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

func (a *App) initStorage(ctx context.Context, reg prometheus.Registerer, healthHandler *health.Handler) (repository.UserRepository, error) {
	cfg, logger := a.cfg, a.logger

	if cfg.StorageDriver == config.StorageMemory {
		logger.Warn("using in-memory user storage; data is lost on restart")
		return memory.NewUserRepository(), nil
	}

	pgCfg := cfg.PostgresConfig()
	pool, err := database.NewPostgresPool(ctx, pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	logger.Info("connected to PostgreSQL",
		slog.String("host", pgCfg.Host),
		slog.Int("port", pgCfg.Port),
		slog.String("database", pgCfg.DBName),
	)

	if err := database.RegisterPoolMetrics(reg, pool, config.ServiceName); err != nil {
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}

	if cfg.RunMigrations {
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")
	}

	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	return postgres.NewUserRepository(pool), nil
}

func (a *App) initLimiter(ctx context.Context, healthHandler *health.Handler) (ratelimit.Limiter, error) {
	cfg := a.cfg
	if cfg.RedisEnabled {
		client, err := database.NewRedisClient(ctx, cfg.RedisConfig())
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		a.logger.Info("connected to Redis", slog.String("addr", cfg.RedisConfig().Addr()))
	}

	if !cfg.LoginRateLimitEnabled {
		return nil, nil
	}
	if a.redis != nil {
		return ratelimit.NewRedisLimiter(a.redis, "pocket:ratelimit", cfg.LoginRateLimit, cfg.LoginRateLimitWindow), nil
	}
	return ratelimit.NewMemoryLimiter(cfg.LoginRateLimit, cfg.LoginRateLimitWindow), nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.closeResources()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer, Redis client, PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.producer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return errors.Join(errs...)
}
