package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MacJediWizard/firekeeper/internal/agent"
	"github.com/MacJediWizard/firekeeper/internal/api"
	"github.com/MacJediWizard/firekeeper/internal/api/middleware"
	"github.com/MacJediWizard/firekeeper/internal/backup"
	"github.com/MacJediWizard/firekeeper/internal/backup/backends"
	"github.com/MacJediWizard/firekeeper/internal/config"
	"github.com/MacJediWizard/firekeeper/internal/export"
	"github.com/MacJediWizard/firekeeper/internal/httpclient"
	"github.com/MacJediWizard/firekeeper/internal/metrics"
	"github.com/MacJediWizard/firekeeper/internal/shutdown"
	pkgmodels "github.com/MacJediWizard/firekeeper/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// writeTimeout covers synchronous identity backups, which answer only once uploaded.
const writeTimeout = 10 * time.Minute

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent HTTP API",
		Long: `Serve the agent HTTP API.

Configuration is read from FIREKEEPER_CONFIG (YAML) and environment variables,
environment taking precedence. CONTROLLER_TOKEN is required.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.LoadAgentConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(os.Stdout, cfg.Environment, cfg.LogLevel)
	if cfg.Environment.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info().
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Str("environment", string(cfg.Environment)).
		Msg("Starting Firekeeper agent")

	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("Invalid configuration")
		return err
	}

	apiCfg := api.Config{
		ControllerToken:   cfg.ControllerToken,
		Admin:             middleware.AdminCredential{Password: cfg.AdminPassword, Hash: cfg.AdminPasswordHash},
		RateLimitRequests: int64(cfg.RateLimit.Requests),
		RateLimitPeriod:   cfg.RateLimit.Period,
		MaxBodyBytes:      middleware.DefaultMaxBodyBytes,
		TempDir:           cfg.TempDir,
		Version:           Version,
		Commit:            Commit,
		BuildDate:         BuildDate,
	}

	runtimeEnv, err := config.ResolveRuntimeEnvironment(ctx, config.NewMetadataSource(nil))
	apiCfg.Runtime = runtimeEnv
	if err != nil {
		if !errors.Is(err, config.ErrIncompleteEnvironment) {
			return fmt.Errorf("resolve runtime environment: %w", err)
		}
		logger.Error().Err(err).Msg("Runtime environment incomplete, serving disabled API")
		router := api.NewDisabledRouter(apiCfg, err.Error(), logger)
		return serveHTTP(ctx, cfg, router.Engine, nil, logger)
	}

	logger.Info().
		Str("project_id", runtimeEnv.ProjectID).
		Str("function", runtimeEnv.FunctionName).
		Str("region", runtimeEnv.Region).
		Str("url", runtimeEnv.URL).
		Msg("Runtime environment resolved")

	// Rate limit store, shared through Redis when configured
	if apiCfg.RateLimitRequests > 0 {
		store, closeStore, err := middleware.NewRateLimitStore(ctx, cfg.RateLimit.RedisURL)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create rate limit store")
			return err
		}
		defer func() {
			if err := closeStore(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close rate limit store")
			}
		}()
		apiCfg.RateLimitStore = store
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promMetrics, err := metrics.NewPrometheusMetrics(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	promMetrics.SetBuildInfo(Version)

	// Destination backend
	kind, err := backends.ParseKind(cfg.Destination.Backend)
	if err != nil {
		return err
	}
	backend, err := backends.New(ctx, backends.Config{
		Kind: kind,
		GCS: backends.GCSConfig{
			ProjectID:       runtimeEnv.ProjectID,
			CredentialsFile: cfg.Destination.GCSCredentialsFile,
			Endpoint:        cfg.Destination.GCSEndpoint,
		},
		S3: backends.S3Config{
			Endpoint:        cfg.Destination.S3Endpoint,
			Region:          cfg.Destination.S3Region,
			AccessKeyID:     cfg.Destination.S3AccessKeyID,
			SecretAccessKey: cfg.Destination.S3SecretAccessKey,
			UseSSL:          cfg.Destination.S3UseSSL,
		},
	}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create destination backend")
		return err
	}
	defer backend.Close()

	// Exporters
	documents, err := export.NewFirestoreExporter(ctx, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create Firestore exporter")
		return err
	}
	defer documents.Close()

	identity, err := export.NewFirebaseIdentityExporter(ctx, runtimeEnv.ProjectID, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create identity exporter")
		return err
	}

	// Graceful shutdown
	tracker := shutdown.NewOperationTracker(logger)
	shutdownMgr := shutdown.NewManager(shutdown.Config{Timeout: cfg.ShutdownTimeout}, tracker, logger)

	gate := backup.NewGate(backup.NewAllowlistPolicy(cfg.AllowedBuckets))
	if gate.Policy().IsRestricted() {
		logger.Info().Strs("buckets", gate.Policy().Buckets()).Msg("Bucket allowlist enabled")
	}

	orchestrator := backup.NewOrchestrator(
		backup.Config{ProjectID: runtimeEnv.ProjectID},
		gate,
		backup.NewTempStore(cfg.TempDir, logger),
		identity,
		documents,
		backend,
		logger,
		backup.WithMetrics(promMetrics),
		backup.WithTracker(tracker),
	)

	router, err := api.NewRouter(apiCfg, api.Dependencies{
		Backups:  orchestrator,
		Buckets:  backend,
		Gate:     gate,
		Shutdown: shutdown.NewHealthAdapter(shutdownMgr),
		Gatherer: registry,
	}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize router")
		return err
	}

	pingController(ctx, cfg, runtimeEnv, logger)

	return serveHTTP(ctx, cfg, router.Engine, shutdownMgr, logger)
}

// pingController announces the agent to its controller without delaying startup.
func pingController(ctx context.Context, cfg *config.AgentConfig, env config.RuntimeEnvironment, logger zerolog.Logger) {
	if cfg.ControllerURL == "" {
		logger.Info().Msg("CONTROLLER_URL not set, skipping controller ping")
		return
	}

	httpClient, err := httpclient.New(httpclient.Options{
		Timeout:     agent.DefaultPingTimeout,
		ProxyConfig: cfg.GetProxyConfig(),
		UserAgent:   "firekeeper-agent/" + Version,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create controller HTTP client, skipping ping")
		return
	}
	logger.Debug().Str("proxy", httpclient.ProxyInfo(cfg.GetProxyConfig())).Msg("Controller client configured")

	client := agent.NewClient(cfg.ControllerURL, cfg.ControllerToken, httpClient, logger)
	client.PingAsync(ctx, pkgmodels.PingRequest{
		URL:       env.URL,
		ProjectID: env.ProjectID,
		Token:     cfg.ControllerToken,
		Version:   Version,
		Region:    env.Region,
	}, agent.DefaultPingTimeout)
}

// serveHTTP runs the server until ctx is cancelled, then drains in-flight backups
// before closing connections. drain may be nil.
func serveHTTP(ctx context.Context, cfg *config.AgentConfig, handler http.Handler, drain *shutdown.Manager, logger zerolog.Logger) error {
	listenAddr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", listenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error().Err(err).Msg("HTTP server error")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down agent")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout+5*time.Second)
	defer cancel()

	if drain != nil {
		if err := drain.Shutdown(shutdownCtx); err != nil {
			ids := drain.Abandoned()
			abandoned := make([]string, len(ids))
			for i, id := range ids {
				abandoned[i] = id.String()
			}
			logger.Warn().Err(err).Strs("operation_ids", abandoned).Msg("Backups still running at shutdown")
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
		return err
	}

	logger.Info().Msg("Agent stopped gracefully")
	return nil
}
