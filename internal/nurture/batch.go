package nurture

import (
	"context"
	"time"

	"github.com/checkfox/go_crm/internal/logger"
	"github.com/checkfox/go_crm/internal/models"
	"github.com/checkfox/go_crm/internal/repository"
)

// BatchError reports one isolated failure inside a processing pass
type BatchError struct {
	EnrollmentID int64  `json:"enrollment_id,omitempty"`
	LeadID       int64  `json:"lead_id,omitempty"`
	Stage        string `json:"stage"`
	Message      string `json:"message"`
}

// Summary is the report of one "process all due enrollments" pass
type Summary struct {
	EnrollmentsCreated int          `json:"enrollments_created"`
	EmailsSent         int          `json:"emails_sent"`
	TasksCreated       int          `json:"tasks_created"`
	NotificationsSent  int          `json:"notifications_sent"`
	StepsSkipped       int          `json:"steps_skipped"`
	Completed          int          `json:"completed"`
	Exited             int          `json:"exited"`
	Errors             []BatchError `json:"errors"`
}

// Runner executes nurturing passes: it creates enrollments for leads matching
// sequence triggers, then advances every due enrollment. Failures on one
// enrollment never block the rest of the pass.
type Runner struct {
	engine         *Engine
	leadRepo       repository.LeadRepository
	eventRepo      repository.EventRepository
	sequenceRepo   repository.SequenceRepository
	enrollmentRepo repository.EnrollmentRepository
}

// NewRunner creates a new Runner
func NewRunner(engine *Engine, leadRepo repository.LeadRepository, eventRepo repository.EventRepository, sequenceRepo repository.SequenceRepository, enrollmentRepo repository.EnrollmentRepository) *Runner {
	return &Runner{
		engine:         engine,
		leadRepo:       leadRepo,
		eventRepo:      eventRepo,
		sequenceRepo:   sequenceRepo,
		enrollmentRepo: enrollmentRepo,
	}
}

// Run executes one full pass and returns its summary. Only infrastructure
// failures that prevent the pass from running at all are returned as errors;
// per-enrollment failures land in the summary.
func (r *Runner) Run(ctx context.Context, now time.Time) (*Summary, error) {
	startTime := time.Now()
	summary := &Summary{Errors: []BatchError{}}

	sequences, err := r.sequenceRepo.ListActiveSequences(ctx)
	if err != nil {
		return nil, err
	}

	sequencesByID := make(map[int64]*models.NurturingSequence, len(sequences))
	for _, seq := range sequences {
		sequencesByID[seq.ID] = seq
	}

	r.createEnrollments(ctx, sequences, now, summary)
	r.processDue(ctx, sequencesByID, now, summary)

	logger.Info(ctx, "Nurturing pass finished",
		"enrollments_created", summary.EnrollmentsCreated,
		"emails_sent", summary.EmailsSent,
		"tasks_created", summary.TasksCreated,
		"notifications_sent", summary.NotificationsSent,
		"completed", summary.Completed,
		"exited", summary.Exited,
		"errors", len(summary.Errors))
	logger.LogSlowOperation(ctx, "nurture_pass", time.Since(startTime))

	return summary, nil
}

// createEnrollments enrolls eligible leads into trigger-matching sequences.
// new_lead sequences are handled at lead creation time, not here.
func (r *Runner) createEnrollments(ctx context.Context, sequences []*models.NurturingSequence, now time.Time, summary *Summary) {
	var scheduled []*models.NurturingSequence
	for _, seq := range sequences {
		if seq.TriggerType != models.TriggerNewLead {
			scheduled = append(scheduled, seq)
		}
	}
	if len(scheduled) == 0 {
		return
	}

	leads, err := r.leadRepo.ListOpenLeads(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, BatchError{
			Stage:   "list_leads",
			Message: err.Error(),
		})
		return
	}

	for _, seq := range scheduled {
		for _, lead := range leads {
			if !Eligible(lead, seq, now) {
				continue
			}

			enrolled, err := r.enrollmentRepo.HasActiveEnrollment(ctx, lead.ID, seq.ID)
			if err != nil {
				summary.Errors = append(summary.Errors, BatchError{
					LeadID:  lead.ID,
					Stage:   "enrollment_check",
					Message: err.Error(),
				})
				continue
			}
			if enrolled {
				continue
			}

			enrollment := models.NewEnrollment(lead.ID, seq.ID, seq, now)
			if err := r.enrollmentRepo.CreateEnrollment(ctx, enrollment); err != nil {
				summary.Errors = append(summary.Errors, BatchError{
					LeadID:  lead.ID,
					Stage:   "enrollment_create",
					Message: err.Error(),
				})
				continue
			}

			summary.EnrollmentsCreated++
			logger.Info(ctx, "Lead enrolled in sequence",
				"lead_id", lead.ID, "sequence_id", seq.ID, "sequence", seq.Name)
		}
	}
}

// Enroll enrolls one lead into one sequence immediately when eligible.
// Used for new_lead triggers at creation time and for manual enrollment.
func (r *Runner) Enroll(ctx context.Context, lead *models.Lead, seq *models.NurturingSequence, now time.Time) (*models.Enrollment, error) {
	enrolled, err := r.enrollmentRepo.HasActiveEnrollment(ctx, lead.ID, seq.ID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		return nil, nil
	}

	enrollment := models.NewEnrollment(lead.ID, seq.ID, seq, now)
	if err := r.enrollmentRepo.CreateEnrollment(ctx, enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// EnrollNewLead enrolls a freshly created lead into every matching new_lead
// sequence
func (r *Runner) EnrollNewLead(ctx context.Context, lead *models.Lead, now time.Time) (int, error) {
	sequences, err := r.sequenceRepo.ListActiveSequences(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, seq := range sequences {
		if seq.TriggerType != models.TriggerNewLead {
			continue
		}
		if !Eligible(lead, seq, now) {
			continue
		}
		enrollment, err := r.Enroll(ctx, lead, seq, now)
		if err != nil {
			return created, err
		}
		if enrollment != nil {
			created++
		}
	}
	return created, nil
}

// processDue advances every due enrollment, isolating failures per enrollment
func (r *Runner) processDue(ctx context.Context, sequencesByID map[int64]*models.NurturingSequence, now time.Time, summary *Summary) {
	due, err := r.enrollmentRepo.ListDueEnrollments(ctx, now)
	if err != nil {
		summary.Errors = append(summary.Errors, BatchError{
			Stage:   "list_due",
			Message: err.Error(),
		})
		return
	}

	for _, enrollment := range due {
		r.processOne(ctx, enrollment, sequencesByID, now, summary)
	}
}

// processOne runs one enrollment through the engine and persists the result
func (r *Runner) processOne(ctx context.Context, enrollment *models.Enrollment, sequencesByID map[int64]*models.NurturingSequence, now time.Time, summary *Summary) {
	seq, ok := sequencesByID[enrollment.SequenceID]
	if !ok {
		// Sequence deactivated or deleted since enrollment; leave the
		// enrollment untouched for a later pass or manual cleanup.
		return
	}

	lead, err := r.leadRepo.GetLeadByID(ctx, enrollment.LeadID)
	if err != nil {
		summary.Errors = append(summary.Errors, batchError(enrollment, "load_lead", err))
		return
	}

	activity, err := r.buildActivity(ctx, lead, enrollment)
	if err != nil {
		summary.Errors = append(summary.Errors, batchError(enrollment, "activity", err))
		return
	}

	outcome, err := r.engine.Process(ctx, enrollment, seq, lead, activity, now)
	if err != nil {
		summary.Errors = append(summary.Errors, batchError(enrollment, "dispatch", err))
		logger.LogError(ctx, "Enrollment processing failed",
			models.NewEnrollmentError(enrollment.ID, enrollment.LeadID, "dispatch", err))
		return
	}

	if outcome.Changed {
		if err := r.enrollmentRepo.UpdateEnrollment(ctx, enrollment); err != nil {
			summary.Errors = append(summary.Errors, batchError(enrollment, "persist", err))
			return
		}
	}

	tally(summary, outcome)
}

// buildActivity assembles the engine's view of what happened since enrollment
func (r *Runner) buildActivity(ctx context.Context, lead *models.Lead, enrollment *models.Enrollment) (Activity, error) {
	inbound, err := r.eventRepo.CountCommunicationsSince(ctx, lead.ID, "inbound", enrollment.EnrolledAt)
	if err != nil {
		return Activity{}, err
	}

	outbound, err := r.eventRepo.CountCommunicationsSince(ctx, lead.ID, "outbound", enrollment.EnrolledAt)
	if err != nil {
		return Activity{}, err
	}

	appointment, err := r.eventRepo.HasAppointmentSince(ctx, lead.ID, enrollment.EnrolledAt)
	if err != nil {
		return Activity{}, err
	}

	return Activity{
		RepliedSinceEnrollment:   inbound > 0,
		ContactedSinceEnrollment: outbound > 0,
		ConvertedToContact:       lead.Status == models.LeadStatusWon,
		AppointmentBooked:        appointment,
	}, nil
}

func tally(summary *Summary, outcome *Outcome) {
	if outcome.Exited {
		summary.Exited++
		return
	}
	if outcome.Dispatched {
		switch outcome.ActionType {
		case models.ActionTypeEmail:
			summary.EmailsSent++
		case models.ActionTypeTask:
			summary.TasksCreated++
		case models.ActionTypeNotification:
			summary.NotificationsSent++
		}
	}
	if outcome.Skipped {
		summary.StepsSkipped++
	}
	if outcome.Completed {
		summary.Completed++
	}
}

// batchError wraps a per-enrollment failure as an EnrollmentError so the
// reported message carries the enrollment context
func batchError(enrollment *models.Enrollment, stage string, err error) BatchError {
	enrollErr := models.NewEnrollmentError(enrollment.ID, enrollment.LeadID, stage, err)
	return BatchError{
		EnrollmentID: enrollErr.EnrollmentID,
		LeadID:       enrollErr.LeadID,
		Stage:        enrollErr.Stage,
		Message:      enrollErr.Error(),
	}
}
