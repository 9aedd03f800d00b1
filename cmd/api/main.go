package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/checkfox/go_crm/internal/config"
	"github.com/checkfox/go_crm/internal/database"
	"github.com/checkfox/go_crm/internal/dispatch"
	"github.com/checkfox/go_crm/internal/handlers"
	"github.com/checkfox/go_crm/internal/logger"
	"github.com/checkfox/go_crm/internal/nurture"
	"github.com/checkfox/go_crm/internal/queue"
	"github.com/checkfox/go_crm/internal/repository"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	logger.Info(ctx, "API server starting",
		"host", cfg.API.Host,
		"port", cfg.API.Port,
		"auth_enabled", cfg.Auth.Enabled)

	// Initialize database connection
	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	logger.Info(ctx, "Database connection established")

	// Run database migrations
	if err := database.RunMigrations(db, "./migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	logger.Info(ctx, "Database migrations completed")

	// Initialize queue client
	jobQueue, err := queue.NewDBQueue(db.DB)
	if err != nil {
		log.Fatalf("Failed to initialize queue: %v", err)
	}
	defer jobQueue.Close()

	logger.Info(ctx, "Queue initialized")

	// Initialize repositories
	leadRepo := repository.NewLeadRepository(db.DB)
	eventRepo := repository.NewEventRepository(db.DB)
	sequenceRepo := repository.NewSequenceRepository(db.DB)
	enrollmentRepo := repository.NewEnrollmentRepository(db.DB)

	// Initialize the nurturing pipeline
	dispatcher := dispatch.NewActionsClient(cfg.Actions.URL, cfg.Actions.Token, cfg.Actions.Timeout)
	engine := nurture.NewEngine(dispatcher)
	runner := nurture.NewRunner(engine, leadRepo, eventRepo, sequenceRepo, enrollmentRepo)

	// Initialize handlers
	router := handlers.NewRouter(handlers.RouterDeps{
		Config:  cfg,
		Webhook: handlers.NewWebhookHandler(leadRepo, jobQueue, runner),
		Leads:   handlers.NewLeadHandler(leadRepo, eventRepo),
		Nurture: handlers.NewNurtureHandler(runner, sequenceRepo),
		Stats:   handlers.NewStatsHandler(leadRepo),
		Health:  db.HealthCheck,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.API.Host, cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(ctx, "HTTP server listening", "address", addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		log.Fatalf("Server error: %v", err)

	case sig := <-sigChan:
		logger.Info(ctx, "Received shutdown signal", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Server shutdown error", "error", err.Error())
			server.Close()
		}

		logger.Info(ctx, "Server shutdown complete")
	}
}
