package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TriggerConditions narrows when a sequence's trigger fires. Zero values mean
// "no constraint" for that field.
type TriggerConditions struct {
	// DaysWithoutContact applies to no_contact and inactivity triggers
	DaysWithoutContact int `json:"days_without_contact,omitempty"`

	// TargetStatus applies to status_change triggers
	TargetStatus LeadStatus `json:"target_status,omitempty"`
}

// ExitConditions configures early termination of an enrollment. Any matching
// condition exits the enrollment before further steps execute.
type ExitConditions struct {
	OnReply       bool         `json:"on_reply,omitempty"`
	OnConversion  bool         `json:"on_conversion,omitempty"`
	OnAppointment bool         `json:"on_appointment,omitempty"`
	OnStatuses    []LeadStatus `json:"on_statuses,omitempty"`

	// MaxDays exits the enrollment once daysSinceEnrollment exceeds it.
	// Zero disables the limit.
	MaxDays int `json:"max_days,omitempty"`
}

// SequenceStep is one timed follow-up action within a sequence
type SequenceStep struct {
	// StepNumber is 1-based and contiguous within the sequence
	StepNumber int `json:"step_number"`

	DelayDays  int        `json:"delay_days"`
	DelayHours int        `json:"delay_hours"`
	ActionType ActionType `json:"action_type"`

	// Action payload fields; which ones apply depends on ActionType
	Subject       string `json:"subject,omitempty"`
	Body          string `json:"body,omitempty"`
	TaskTitle     string `json:"task_title,omitempty"`
	TaskDetail    string `json:"task_detail,omitempty"`
	NotifyMessage string `json:"notify_message,omitempty"`

	// SkipIfContacted advances past this step without dispatching when the
	// lead was contacted since enrollment
	SkipIfContacted bool `json:"skip_if_contacted,omitempty"`
}

// Delay returns the wait before this step becomes due
func (s SequenceStep) Delay() time.Duration {
	return time.Duration(s.DelayDays)*24*time.Hour + time.Duration(s.DelayHours)*time.Hour
}

// StepList is an ordered list of steps stored as a JSONB column
type StepList []SequenceStep

// Value implements the driver.Valuer interface for StepList
func (l StepList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface for StepList
func (l *StepList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal step list value: %v", value)
	}
	return json.Unmarshal(bytes, l)
}

// NurturingSequence is a scripted series of timed follow-up actions applied
// to matching leads
type NurturingSequence struct {
	ID                int64             `json:"id" db:"id"`
	Name              string            `json:"name" db:"name"`
	TriggerType       TriggerType       `json:"trigger_type" db:"trigger_type"`
	TriggerConditions TriggerConditions `json:"trigger_conditions" db:"trigger_conditions"`
	ExitConditions    ExitConditions    `json:"exit_conditions" db:"exit_conditions"`
	Steps             StepList          `json:"steps" db:"steps"`

	// LeadSources and LeadTypes are allow-lists narrowing eligibility;
	// an empty list matches all leads
	LeadSources []string `json:"lead_sources,omitempty" db:"lead_sources"`
	LeadTypes   []string `json:"lead_types,omitempty" db:"lead_types"`

	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LastStepIndex returns the 0-based index of the final step, or -1 for an
// empty sequence
func (s *NurturingSequence) LastStepIndex() int {
	return len(s.Steps) - 1
}

// StepAt returns the step at the given 0-based index
func (s *NurturingSequence) StepAt(index int) (SequenceStep, bool) {
	if index < 0 || index >= len(s.Steps) {
		return SequenceStep{}, false
	}
	return s.Steps[index], true
}

// Validate checks structural invariants: known trigger and action types and
// 1-based contiguous step numbering
func (s *NurturingSequence) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("sequence name is required")
	}
	if !s.TriggerType.IsValid() {
		return fmt.Errorf("invalid trigger type: %s", s.TriggerType)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("sequence must have at least one step")
	}
	for i, step := range s.Steps {
		if step.StepNumber != i+1 {
			return fmt.Errorf("step numbers must be 1-based and contiguous: step at index %d has number %d", i, step.StepNumber)
		}
		if !step.ActionType.IsValid() {
			return fmt.Errorf("invalid action type on step %d: %s", step.StepNumber, step.ActionType)
		}
		if step.DelayDays < 0 || step.DelayHours < 0 {
			return fmt.Errorf("step %d has a negative delay", step.StepNumber)
		}
	}
	return nil
}
