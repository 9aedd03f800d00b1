package nurture

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/checkfox/go_crm/internal/dispatch"
	"github.com/checkfox/go_crm/internal/models"
)

// Activity is a snapshot of what happened to a lead since it was enrolled.
// The caller assembles it from communication history and the lead record; the
// engine itself does no I/O beyond action dispatch.
type Activity struct {
	// RepliedSinceEnrollment is true when an inbound communication arrived
	// after the enrollment was created
	RepliedSinceEnrollment bool

	// ContactedSinceEnrollment is true when any outbound contact happened
	// after the enrollment was created
	ContactedSinceEnrollment bool

	// ConvertedToContact is true when the lead converted (won)
	ConvertedToContact bool

	// AppointmentBooked is true when a viewing or meeting was scheduled
	// after the enrollment was created
	AppointmentBooked bool
}

// Outcome describes what one processing pass did with one enrollment
type Outcome struct {
	Exited     bool
	ExitReason models.ExitReason
	Dispatched bool
	Skipped    bool
	Completed  bool
	ActionType models.ActionType
	Changed    bool
}

// Engine advances enrollments through their sequences one step at a time.
// Action dispatch is delegated to the injected Dispatcher.
type Engine struct {
	dispatcher dispatch.Dispatcher
}

// NewEngine creates a new Engine
func NewEngine(dispatcher dispatch.Dispatcher) *Engine {
	return &Engine{dispatcher: dispatcher}
}

// Process evaluates one enrollment against its sequence once. Exit conditions
// take precedence over due steps: if both apply, the enrollment exits and the
// step does not execute. Non-active enrollments are left untouched.
//
// The enrollment is mutated in place; the caller persists it when
// Outcome.Changed is set.
func (e *Engine) Process(ctx context.Context, enrollment *models.Enrollment, seq *models.NurturingSequence, lead *models.Lead, activity Activity, now time.Time) (*Outcome, error) {
	outcome := &Outcome{}

	if enrollment.Status != models.EnrollmentStatusActive {
		return outcome, nil
	}

	if reason, exit := checkExit(seq.ExitConditions, lead, activity, enrollment, now); exit {
		if err := enrollment.MarkExited(reason, now); err != nil {
			return outcome, err
		}
		outcome.Exited = true
		outcome.ExitReason = reason
		outcome.Changed = true
		return outcome, nil
	}

	if !enrollment.IsDue(now) {
		return outcome, nil
	}

	step, ok := seq.StepAt(enrollment.CurrentStep)
	if !ok {
		// Cursor already past the last step; close the enrollment out.
		if err := enrollment.MarkCompleted(now); err != nil {
			return outcome, err
		}
		outcome.Completed = true
		outcome.Changed = true
		return outcome, nil
	}

	switch {
	case step.SkipIfContacted && activity.ContactedSinceEnrollment:
		outcome.Skipped = true
	case step.ActionType == models.ActionTypeEmail && !lead.HasEmail():
		// Nothing to send to; record a skip instead of a send that never
		// happened.
		outcome.Skipped = true
	default:
		if err := e.dispatchStep(ctx, step, lead); err != nil {
			// Leave the cursor where it is; the failure is reported and the
			// step is reconsidered on the next pass.
			return outcome, err
		}
		outcome.Dispatched = true
		outcome.ActionType = step.ActionType
	}

	enrollment.AdvancePast(step, now)
	outcome.Changed = true

	if enrollment.CurrentStep > seq.LastStepIndex() {
		if err := enrollment.MarkCompleted(now); err != nil {
			return outcome, err
		}
		outcome.Completed = true
		return outcome, nil
	}

	next, _ := seq.StepAt(enrollment.CurrentStep)
	enrollment.ScheduleNext(next, now)
	return outcome, nil
}

// dispatchStep executes one step's action through the dispatcher
func (e *Engine) dispatchStep(ctx context.Context, step models.SequenceStep, lead *models.Lead) error {
	switch step.ActionType {
	case models.ActionTypeEmail:
		return e.dispatcher.SendEmail(ctx, *lead.BuyerEmail,
			renderTemplate(step.Subject, lead), renderTemplate(step.Body, lead))

	case models.ActionTypeTask:
		return e.dispatcher.CreateTask(ctx, lead.ID,
			renderTemplate(step.TaskTitle, lead), renderTemplate(step.TaskDetail, lead))

	case models.ActionTypeNotification:
		return e.dispatcher.Notify(ctx, lead.ID, renderTemplate(step.NotifyMessage, lead))

	default:
		return fmt.Errorf("unknown action type: %s", step.ActionType)
	}
}

// checkExit evaluates the configured exit conditions in a fixed order
func checkExit(conditions models.ExitConditions, lead *models.Lead, activity Activity, enrollment *models.Enrollment, now time.Time) (models.ExitReason, bool) {
	if conditions.OnReply && activity.RepliedSinceEnrollment {
		return models.ExitReasonReplied, true
	}
	if conditions.OnConversion && activity.ConvertedToContact {
		return models.ExitReasonConverted, true
	}
	if conditions.OnAppointment && activity.AppointmentBooked {
		return models.ExitReasonAppointment, true
	}
	for _, status := range conditions.OnStatuses {
		if lead.Status == status {
			return models.ExitReasonStatus, true
		}
	}
	if conditions.MaxDays > 0 && enrollment.DaysSinceEnrollment(now) > conditions.MaxDays {
		return models.ExitReasonMaxDays, true
	}
	return "", false
}

// renderTemplate substitutes lead placeholders in action payload text
func renderTemplate(text string, lead *models.Lead) string {
	name := ""
	if lead.BuyerName != nil {
		name = *lead.BuyerName
	}
	location := ""
	if lead.Location != nil {
		location = *lead.Location
	}
	propertyType := ""
	if lead.PropertyTypeInterest != nil {
		propertyType = *lead.PropertyTypeInterest
	}

	replacer := strings.NewReplacer(
		"{{buyer_name}}", name,
		"{{location}}", location,
		"{{property_type}}", propertyType,
	)
	return replacer.Replace(text)
}
