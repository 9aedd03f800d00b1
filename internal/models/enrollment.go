package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// IntList is a list of step numbers stored as a JSONB column
type IntList []int

// Value implements the driver.Valuer interface for IntList
func (l IntList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]int{})
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface for IntList
func (l *IntList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal int list value: %v", value)
	}
	return json.Unmarshal(bytes, l)
}

// Enrollment is the mutable cursor tracking one lead's progress through one
// nurturing sequence
type Enrollment struct {
	ID         int64            `json:"id" db:"id"`
	LeadID     int64            `json:"lead_id" db:"lead_id"`
	SequenceID int64            `json:"sequence_id" db:"sequence_id"`
	Status     EnrollmentStatus `json:"status" db:"status"`

	// CurrentStep is a 0-based index into the sequence's steps
	CurrentStep    int        `json:"current_step" db:"current_step"`
	NextActionDate *time.Time `json:"next_action_date,omitempty" db:"next_action_date"`

	// CompletedSteps holds the 1-based step numbers already executed or skipped
	CompletedSteps IntList `json:"completed_steps" db:"completed_steps"`

	ExitReason *string   `json:"exit_reason,omitempty" db:"exit_reason"`
	EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// NewEnrollment creates an active enrollment positioned before the first step.
// The first step becomes due after its own delay.
func NewEnrollment(leadID, sequenceID int64, seq *NurturingSequence, now time.Time) *Enrollment {
	e := &Enrollment{
		LeadID:         leadID,
		SequenceID:     sequenceID,
		Status:         EnrollmentStatusActive,
		CurrentStep:    0,
		CompletedSteps: IntList{},
		EnrolledAt:     now,
		UpdatedAt:      now,
	}
	if first, ok := seq.StepAt(0); ok {
		due := now.Add(first.Delay())
		e.NextActionDate = &due
	}
	return e
}

// DaysSinceEnrollment returns whole days elapsed since the enrollment was created
func (e *Enrollment) DaysSinceEnrollment(now time.Time) int {
	return int(now.Sub(e.EnrolledAt).Hours() / 24)
}

// CanTransitionTo checks if the enrollment can move from its current status
// to the target status
func (e *Enrollment) CanTransitionTo(target EnrollmentStatus) bool {
	if e.Status.IsTerminal() {
		return false
	}

	switch e.Status {
	case EnrollmentStatusActive:
		return target == EnrollmentStatusCompleted ||
			target == EnrollmentStatusPaused ||
			target == EnrollmentStatusExited

	case EnrollmentStatusPaused:
		return target == EnrollmentStatusActive || target == EnrollmentStatusExited

	default:
		return false
	}
}

// TransitionTo attempts to transition the enrollment to a new status.
// Returns an error if the transition is not allowed.
func (e *Enrollment) TransitionTo(target EnrollmentStatus, now time.Time) error {
	if !e.CanTransitionTo(target) {
		return fmt.Errorf("invalid enrollment transition from %s to %s", e.Status, target)
	}

	e.Status = target
	e.UpdatedAt = now
	return nil
}

// MarkCompleted marks the enrollment as completed; no further actions execute
func (e *Enrollment) MarkCompleted(now time.Time) error {
	if err := e.TransitionTo(EnrollmentStatusCompleted, now); err != nil {
		return err
	}
	e.NextActionDate = nil
	return nil
}

// MarkExited exits the enrollment early with the given reason
func (e *Enrollment) MarkExited(reason ExitReason, now time.Time) error {
	if err := e.TransitionTo(EnrollmentStatusExited, now); err != nil {
		return err
	}
	reasonStr := reason.String()
	e.ExitReason = &reasonStr
	e.NextActionDate = nil
	return nil
}

// Pause puts the enrollment on hold
func (e *Enrollment) Pause(now time.Time) error {
	return e.TransitionTo(EnrollmentStatusPaused, now)
}

// Resume reactivates a paused enrollment
func (e *Enrollment) Resume(now time.Time) error {
	return e.TransitionTo(EnrollmentStatusActive, now)
}

// IsDue reports whether the current step's action date has arrived
func (e *Enrollment) IsDue(now time.Time) bool {
	if e.Status != EnrollmentStatusActive || e.NextActionDate == nil {
		return false
	}
	return !now.Before(*e.NextActionDate)
}

// AdvancePast records the given step as done and moves the cursor forward.
// The caller decides whether the enrollment completes or schedules the next
// step.
func (e *Enrollment) AdvancePast(step SequenceStep, now time.Time) {
	e.CompletedSteps = append(e.CompletedSteps, step.StepNumber)
	e.CurrentStep++
	e.UpdatedAt = now
}

// ScheduleNext sets the due date for the step now under the cursor
func (e *Enrollment) ScheduleNext(step SequenceStep, now time.Time) {
	due := now.Add(step.Delay())
	e.NextActionDate = &due
}
