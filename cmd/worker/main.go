package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/checkfox/go_crm/internal/config"
	"github.com/checkfox/go_crm/internal/database"
	"github.com/checkfox/go_crm/internal/dispatch"
	"github.com/checkfox/go_crm/internal/logger"
	"github.com/checkfox/go_crm/internal/nurture"
	"github.com/checkfox/go_crm/internal/queue"
	"github.com/checkfox/go_crm/internal/repository"
	"github.com/checkfox/go_crm/internal/worker"
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

	logger.Info(ctx, "Worker starting",
		"poll_interval", cfg.Worker.PollInterval,
		"nurture_cron", cfg.Nurture.CronSpec)

	// Initialize database connection
	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	logger.Info(ctx, "Database connection established")

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

	// Create worker processor
	processor := worker.NewProcessor(worker.ProcessorConfig{
		Queue:         jobQueue,
		LeadRepo:      leadRepo,
		EventRepo:     eventRepo,
		NurtureRunner: runner,
		PollInterval:  cfg.Worker.PollInterval,
	})

	// The scheduler enqueues periodic nurturing passes through the queue, so
	// exactly one worker executes each pass
	scheduler := worker.NewScheduler(jobQueue, cfg.Nurture.CronSpec)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start nurture scheduler: %v", err)
	}
	defer scheduler.Stop()

	logger.Info(ctx, "Nurture scheduler started", "cron", cfg.Nurture.CronSpec)

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Create context for worker
	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start worker in a goroutine
	workerErrors := make(chan error, 1)
	go func() {
		workerErrors <- processor.Start(workerCtx)
	}()

	logger.Info(ctx, "Worker started successfully")

	// Wait for shutdown signal or worker error
	select {
	case err := <-workerErrors:
		if err != nil && err != context.Canceled {
			logger.Error(ctx, "Worker error", "error", err.Error())
		}

	case sig := <-sigChan:
		logger.Info(ctx, "Received shutdown signal", "signal", sig.String())

		cancel()

		shutdownTimeout := time.NewTimer(30 * time.Second)
		defer shutdownTimeout.Stop()

		select {
		case <-workerErrors:
			logger.Info(ctx, "Worker stopped gracefully")
		case <-shutdownTimeout.C:
			logger.Warn(ctx, "Worker shutdown timeout exceeded, forcing exit")
		}
	}

	logger.Info(ctx, "Worker shutdown complete")
}
