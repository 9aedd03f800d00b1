package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/checkfox/go_crm/internal/logger"
	"github.com/checkfox/go_crm/internal/queue"
)

// Scheduler enqueues periodic nurturing passes on a cron schedule. The pass
// itself runs through the queue so a single worker executes it even when
// several schedulers are alive.
type Scheduler struct {
	queue    queue.Queue
	cronSpec string
	cron     *cron.Cron
}

// NewScheduler creates a new Scheduler
func NewScheduler(q queue.Queue, cronSpec string) *Scheduler {
	return &Scheduler{
		queue:    q,
		cronSpec: cronSpec,
		cron:     cron.New(),
	}
}

// Start registers the cron entry and starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	logger.Info(ctx, "Starting nurture scheduler", "cron", s.cronSpec)

	_, err := s.cron.AddFunc(s.cronSpec, func() {
		if err := s.queue.Enqueue(ctx, queue.JobTypeRunNurturePass, map[string]interface{}{}); err != nil {
			logger.LogError(ctx, "Failed to enqueue nurturing pass", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler; already-running entries finish on their own
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}
