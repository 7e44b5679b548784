package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lMazer/pocket-finance-dashboard/internal/auth"
	"github.com/lMazer/pocket-finance-dashboard/pkg/health"
	"github.com/lMazer/pocket-finance-dashboard/pkg/httputil"
	"github.com/lMazer/pocket-finance-dashboard/pkg/middleware"
	"github.com/lMazer/pocket-finance-dashboard/pkg/ratelimit"
)

// RouterConfig carries the cross-cutting settings of the HTTP surface.
type RouterConfig struct {
	ServiceName string
	CORS        middleware.CORSConfig

	// PprofAllowlist lists the CIDRs allowed to reach /debug/pprof. Empty
	// disables the profiling routes.
	PprofAllowlist []string

	// LoginLimiter throttles /auth/login and /auth/refresh per client IP.
	// Nil disables throttling.
	LoginLimiter ratelimit.Limiter

	// Registerer and Gatherer default to the Prometheus default registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// TokenValidator adapts the JWT manager to the request authenticator.
func TokenValidator(tokens *auth.JWTManager) middleware.TokenValidator {
	return func(token string) (*middleware.Claims, error) {
		claims, err := tokens.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: claims.Subject,
			Email:  claims.Email,
			Name:   claims.Name,
		}, nil
	}
}

// NewRouter creates a chi router with all routes registered.
func NewRouter(
	authService AuthService,
	validate middleware.TokenValidator,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.NewHTTPMetrics(cfg.Registerer, cfg.ServiceName).Handler)
	r.Use(middleware.CORS(cfg.CORS))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteStatus(w, r, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteStatus(w, r, http.StatusMethodNotAllowed, "method "+r.Method+" not allowed")
	})

	// Operational endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	if len(cfg.PprofAllowlist) > 0 {
		middleware.RegisterPprof(r, cfg.PprofAllowlist, logger)
	}

	authHandler := NewAuthHandler(authService, logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(ContentTypeJSON)
		r.Use(middleware.Authenticate(validate))

		// Public
		r.Group(func(r chi.Router) {
			if cfg.LoginLimiter != nil {
				r.Use(ratelimit.Middleware(cfg.LoginLimiter, ratelimit.ClientIP, logger))
			}
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/refresh", authHandler.Refresh)
		})

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})
	})

	return r
}
