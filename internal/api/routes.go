// Package api provides the HTTP API for the Firekeeper agent.
package api

import (
	"time"

	"github.com/MacJediWizard/firekeeper/internal/api/handlers"
	"github.com/MacJediWizard/firekeeper/internal/api/middleware"
	"github.com/MacJediWizard/firekeeper/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
)

// Config holds configuration for the API router.
type Config struct {
	// ControllerToken authenticates every non-public route.
	ControllerToken string
	// Admin protects bucket configuration changes.
	Admin middleware.AdminCredential
	// RateLimitRequests is the number of requests allowed per period. Zero disables limiting.
	RateLimitRequests int64
	RateLimitPeriod   time.Duration
	// RateLimitStore is shared between instances when backed by Redis. Nil uses memory.
	RateLimitStore limiter.Store
	// MaxBodyBytes caps request bodies. Zero uses middleware.DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// Runtime is reported by the health and version endpoints.
	Runtime config.RuntimeEnvironment
	// TempDir is probed by the health endpoint.
	TempDir string
	// Version information for the version endpoint.
	Version   string
	Commit    string
	BuildDate string
}

// DefaultConfig returns a Config with sensible defaults for development.
func DefaultConfig() Config {
	return Config{
		RateLimitRequests: config.DefaultRateLimitRequests,
		RateLimitPeriod:   config.DefaultRateLimitPeriod,
		MaxBodyBytes:      middleware.DefaultMaxBodyBytes,
		Version:           "dev",
		Commit:            "unknown",
		BuildDate:         "unknown",
	}
}

// Dependencies are the services the routes delegate to.
type Dependencies struct {
	Backups  handlers.BackupService
	Buckets  handlers.BucketStore
	Gate     handlers.BucketGate
	Shutdown handlers.ShutdownStatusProvider
	// Gatherer serves /metrics. Nil uses the default Prometheus registry.
	Gatherer prometheus.Gatherer
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(cfg Config, deps Dependencies, logger zerolog.Logger) (*Router, error) {
	r := newBaseRouter(cfg, logger)

	// Rate limiting
	if cfg.RateLimitRequests > 0 {
		rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitPeriod, cfg.RateLimitStore)
		if err != nil {
			return nil, err
		}
		r.Engine.Use(rateLimiter)
	}

	// Health and version endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(deps.Shutdown, cfg.Runtime, cfg.TempDir, logger)
	healthHandler.RegisterPublicRoutes(r.Engine)

	versionHandler := handlers.NewVersionHandler(cfg.Version, cfg.Commit, cfg.BuildDate, cfg.Runtime, logger)
	versionHandler.RegisterPublicRoutes(r.Engine)

	// Controller routes (bearer token required)
	controller := r.Engine.Group("")
	controller.Use(middleware.ControllerTokenMiddleware(cfg.ControllerToken, logger))

	backupsHandler := handlers.NewBackupsHandler(deps.Backups, logger)
	backupsHandler.RegisterRoutes(controller)

	if deps.Buckets != nil {
		storageHandler := handlers.NewStorageHandler(deps.Buckets, deps.Gate, logger)
		storageHandler.RegisterRoutes(controller, middleware.AdminPasswordMiddleware(cfg.Admin, logger))
	}

	metricsHandler := handlers.NewMetricsHandler(deps.Gatherer, logger)
	metricsHandler.RegisterRoutes(controller)

	r.logger.Info().
		Bool("rate_limited", cfg.RateLimitRequests > 0).
		Bool("admin_configured", cfg.Admin.Configured()).
		Msg("API router initialized")
	return r, nil
}

// NewDisabledRouter creates a Router that answers every request with 503. It is
// used when the agent cannot determine its own runtime environment.
func NewDisabledRouter(cfg Config, reason string, logger zerolog.Logger) *Router {
	r := newBaseRouter(cfg, logger)
	handlers.NewDisabledHandler(reason, logger).Register(r.Engine)
	r.logger.Warn().Str("reason", reason).Msg("API router disabled")
	return r
}

func newBaseRouter(cfg Config, logger zerolog.Logger) *Router {
	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = middleware.DefaultMaxBodyBytes
	}

	// Global middleware
	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestLogger(logger))
	r.Engine.Use(middleware.SecurityHeaders())
	r.Engine.Use(middleware.BodyLimitMiddleware(maxBody))
	return r
}
