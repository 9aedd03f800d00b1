package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/checkfox/go_crm/internal/logger"
	"github.com/checkfox/go_crm/internal/models"
	"github.com/checkfox/go_crm/internal/nurture"
	"github.com/checkfox/go_crm/internal/queue"
	"github.com/checkfox/go_crm/internal/repository"
	"github.com/checkfox/go_crm/internal/scoring"
)

// Processor handles background jobs: lead scoring and nurturing passes
type Processor struct {
	queue         queue.Queue
	leadRepo      repository.LeadRepository
	eventRepo     repository.EventRepository
	nurtureRunner *nurture.Runner
	pollInterval  time.Duration
	retryDelays   []time.Duration
	shutdownChan  chan struct{}
}

// ProcessorConfig holds configuration for the worker processor
type ProcessorConfig struct {
	Queue         queue.Queue
	LeadRepo      repository.LeadRepository
	EventRepo     repository.EventRepository
	NurtureRunner *nurture.Runner
	PollInterval  time.Duration
	RetryDelays   []time.Duration
}

// NewProcessor creates a new worker processor
func NewProcessor(config ProcessorConfig) *Processor {
	if config.PollInterval == 0 {
		config.PollInterval = 5 * time.Second
	}

	if len(config.RetryDelays) == 0 {
		config.RetryDelays = []time.Duration{
			30 * time.Second,
			60 * time.Second,
			120 * time.Second,
			240 * time.Second,
			480 * time.Second,
		}
	}

	return &Processor{
		queue:         config.Queue,
		leadRepo:      config.LeadRepo,
		eventRepo:     config.EventRepo,
		nurtureRunner: config.NurtureRunner,
		pollInterval:  config.PollInterval,
		retryDelays:   config.RetryDelays,
		shutdownChan:  make(chan struct{}),
	}
}

// Start begins the worker polling loop with graceful shutdown
func (p *Processor) Start(ctx context.Context) error {
	logger.Info(ctx, "Starting worker processor", "poll_interval", p.pollInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context cancelled, shutting down gracefully")
			return ctx.Err()

		case <-sigChan:
			logger.Info(ctx, "Received shutdown signal, shutting down gracefully")
			return nil

		case <-p.shutdownChan:
			logger.Info(ctx, "Shutdown requested, shutting down gracefully")
			return nil

		case <-ticker.C:
			if err := p.pollAndProcess(ctx); err != nil {
				logger.LogError(ctx, "Error polling and processing jobs", err)
				// Continue polling even if there's an error
			}
		}
	}
}

// Shutdown signals the worker to stop gracefully
func (p *Processor) Shutdown() {
	close(p.shutdownChan)
}

// pollAndProcess polls for a job and processes it
func (p *Processor) pollAndProcess(ctx context.Context) error {
	job, err := p.queue.Dequeue(ctx)
	if err != nil {
		return fmt.Errorf("failed to dequeue job: %w", err)
	}

	// No jobs available
	if job == nil {
		return nil
	}

	logger.Info(ctx, "Processing job", "job_id", job.ID, "job_type", job.Type)

	var processErr error
	switch job.Type {
	case queue.JobTypeScoreLead:
		processErr = p.processScoreLead(ctx, job)
	case queue.JobTypeRunNurturePass:
		processErr = p.processNurturePass(ctx)
	default:
		processErr = fmt.Errorf("%w: unknown job type %s", queue.ErrInvalidPayload, job.Type)
	}

	if processErr != nil {
		return p.handleFailure(ctx, job, processErr)
	}

	if err := p.queue.Complete(ctx, job.ID); err != nil {
		logger.LogError(ctx, "Failed to mark job as completed", err, "job_id", job.ID)
		return err
	}

	logger.Info(ctx, "Job completed successfully", "job_id", job.ID)
	return nil
}

// handleFailure retries transient failures with backoff and fails the rest.
// Malformed payloads and non-retriable dispatch rejections never retry; a
// later attempt cannot fix either.
func (p *Processor) handleFailure(ctx context.Context, job *queue.Job, processErr error) error {
	logger.LogError(ctx, "Job failed", processErr, "job_id", job.ID, "attempts", job.Attempts)

	permanent := errors.Is(processErr, queue.ErrInvalidPayload)
	var dispatchErr *models.DispatchError
	if errors.As(processErr, &dispatchErr) && !dispatchErr.IsRetriable() {
		permanent = true
	}

	if !permanent && job.Attempts <= len(p.retryDelays) {
		delay := p.retryDelays[job.Attempts-1]
		if err := p.queue.Retry(ctx, job.ID, delay); err != nil {
			logger.LogError(ctx, "Failed to schedule job retry", err, "job_id", job.ID)
			return err
		}
		logger.Info(ctx, "Job scheduled for retry", "job_id", job.ID, "delay", delay)
		return processErr
	}

	if err := p.queue.Fail(ctx, job.ID, processErr.Error()); err != nil {
		logger.LogError(ctx, "Failed to mark job as failed", err, "job_id", job.ID)
	}
	return processErr
}

// processScoreLead loads a lead with its interaction history, scores it, and
// persists the qualification
func (p *Processor) processScoreLead(ctx context.Context, job *queue.Job) error {
	startTime := time.Now()

	leadID, ok := queue.GetLeadID(job.Payload)
	if !ok {
		return fmt.Errorf("%w: missing lead_id", queue.ErrInvalidPayload)
	}

	ctx = context.WithValue(ctx, logger.LeadIDKey, leadID)

	lead, err := p.leadRepo.GetLeadByID(ctx, leadID)
	if err != nil {
		return fmt.Errorf("failed to load lead %d: %w", leadID, err)
	}

	communications, err := p.eventRepo.ListCommunicationsByLead(ctx, leadID)
	if err != nil {
		return fmt.Errorf("failed to load communications for lead %d: %w", leadID, err)
	}

	views, err := p.eventRepo.ListPropertyViewsByContact(ctx, leadID)
	if err != nil {
		return fmt.Errorf("failed to load property views for lead %d: %w", leadID, err)
	}

	now := time.Now()
	result := scoring.Score(lead, communications, views, now)

	if err := p.leadRepo.UpdateLeadQualification(ctx, leadID, result.Score, result.Status, now); err != nil {
		return fmt.Errorf("failed to persist qualification for lead %d: %w", leadID, err)
	}

	logger.Info(ctx, "Lead scored",
		"score", result.Score, "grade", result.Grade, "status", result.Status)
	logger.LogSlowOperation(ctx, "score_lead", time.Since(startTime))
	return nil
}

// processNurturePass runs one full nurturing pass. Per-enrollment failures
// stay inside the summary; only infrastructure failures fail the job.
func (p *Processor) processNurturePass(ctx context.Context) error {
	summary, err := p.nurtureRunner.Run(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("nurturing pass failed: %w", err)
	}

	if len(summary.Errors) > 0 {
		logger.Warn(ctx, "Nurturing pass finished with errors", "error_count", len(summary.Errors))
	}
	return nil
}
