// Package main is the entry point for the hookline server: an outbound
// event-notification service that fans events out to registered webhook
// endpoints with signed payloads and durable retries.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/hookline/hookline/internal/config"
	"github.com/hookline/hookline/internal/database"
	"github.com/hookline/hookline/internal/http/handlers"
	"github.com/hookline/hookline/internal/http/mw"
	"github.com/hookline/hookline/internal/logging"
	"github.com/hookline/hookline/internal/repository"
	"github.com/hookline/hookline/internal/service"
	"github.com/hookline/hookline/internal/shutdown"
	"github.com/hookline/hookline/internal/version"
	"github.com/hookline/hookline/internal/worker"
)

func main() {
	// Initialize logger with TTY detection and format control
	logger := logging.SetDefault()

	// Log version info first thing
	v := version.Get()
	logger.Info("starting hookline",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	// Run migrations
	if err := database.Migrate(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Log current schema version
	schemaVersion, err := database.GetLatestSchemaVersion(db)
	if err != nil {
		logger.Warn("failed to get schema version", "error", err)
	} else if schemaVersion != "" {
		migrationCount, _ := database.GetMigrationCount(db)
		logger.Info("database schema ready", "schema_version", schemaVersion, "migrations_applied", migrationCount)
	}

	// Initialize repositories
	repos := repository.NewRepositories(db)

	// Initialize services
	services, err := service.NewServices(cfg, repos, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	// Start background worker for retry queue processing
	retryWorker := worker.New(
		services.Scheduler,
		worker.Config{
			PollInterval: cfg.RetryInterval,
			BatchSize:    cfg.RetryBatch,
		},
		logger,
	)
	ctx, cancel := context.WithCancel(context.Background())
	retryWorker.Start(ctx)

	// Start ledger cleanup if enabled
	if cfg.CleanupEnabled {
		go services.Cleanup.RunScheduledCleanup(ctx, cfg.CleanupMaxAge, cfg.CleanupInterval)
		logger.Info("cleanup service started",
			"max_age", cfg.CleanupMaxAge.String(),
			"interval", cfg.CleanupInterval.String(),
		)
	}

	// Create router
	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(mw.APIVersion())

	// Idle shutdown for scale-to-zero deployments
	idleMonitor := shutdown.NewIdleMonitor(shutdown.IdleMonitorConfig{
		Timeout:      cfg.IdleTimeout,
		Logger:       logger,
		ExcludePaths: []string{"/healthz", "/readyz"},
		PendingCheck: func() bool {
			pending, err := services.Scheduler.PendingCount(context.Background())
			if err != nil {
				return true
			}
			return pending > 0
		},
	})
	router.Use(idleMonitor.Middleware)
	idleMonitor.Start()

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "X-API-Version"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Request size limit (1MB) - prevent large payload attacks
	router.Use(middleware.RequestSize(1 * 1024 * 1024))

	// Rate limit by IP
	router.Use(httprate.LimitByIP(cfg.RateLimit, cfg.RateLimitWindow))

	// Global concurrency throttle
	router.Use(middleware.Throttle(100))

	// Main API with OpenAPI docs
	humaConfig := huma.DefaultConfig("Hookline API", v.Short())
	humaConfig.Info.Description = "Outbound webhook delivery service with HMAC-signed payloads, a durable retry queue, and an append-only delivery ledger."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.BaseURL, Description: "API Server"},
	}
	api := humachi.New(router, humaConfig)

	// Config for hidden routes (K8s probes - no docs needed)
	hiddenConfig := huma.DefaultConfig("Hookline API", v.Short())
	hiddenConfig.DocsPath = ""
	hiddenConfig.OpenAPIPath = ""
	hiddenConfig.SchemasPath = ""
	hiddenAPI := humachi.New(router, hiddenConfig)

	// Health check (public, shown in docs)
	huma.Get(api, "/api/v1/health", handlers.HealthCheck)

	// Kubernetes probes (hidden from docs)
	huma.Get(hiddenAPI, "/healthz", handlers.Livez)
	readyzHandler := handlers.NewReadyzHandler(db)
	huma.Get(hiddenAPI, "/readyz", readyzHandler.Readyz)

	// Webhook registration routes
	webhookHandler := handlers.NewWebhookHandler(services.Registry)
	huma.Post(api, "/api/v1/webhooks", webhookHandler.CreateWebhook)
	huma.Get(api, "/api/v1/webhooks", webhookHandler.ListWebhooks)
	huma.Get(api, "/api/v1/webhooks/{id}", webhookHandler.GetWebhook)
	huma.Delete(api, "/api/v1/webhooks/{id}", webhookHandler.DeleteWebhook)
	huma.Get(api, "/api/v1/webhooks/{id}/deliveries", webhookHandler.ListDeliveries)

	// Event ingestion and retry queue stats
	eventHandler := handlers.NewEventHandler(services.Dispatcher, services.Scheduler)
	huma.Post(api, "/api/v1/events", eventHandler.ProcessEvent)
	huma.Get(api, "/api/v1/retries", eventHandler.RetryStats)

	// Inbound webhooks (signature verified by handler against the exact
	// request bytes, so it stays a raw chi route)
	inboundHandler := handlers.NewInboundHandler(services.Dispatcher, logger)
	router.Post("/api/v1/inbound/{eventType}", inboundHandler.HandleInbound)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-sigChan:
			logger.Info("shutting down server")
		case <-idleMonitor.ShutdownChan():
			logger.Info("idle timeout reached, shutting down")
		}

		// Stop background work first
		cancel()
		retryWorker.Stop()
		idleMonitor.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	// Start server
	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
