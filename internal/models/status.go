package models

// LeadStatus represents the position of a lead in the sales pipeline
type LeadStatus string

const (
	LeadStatusNew         LeadStatus = "new"
	LeadStatusContacted   LeadStatus = "contacted"
	LeadStatusQualified   LeadStatus = "qualified"
	LeadStatusProposal    LeadStatus = "proposal"
	LeadStatusNegotiation LeadStatus = "negotiation"
	LeadStatusWon         LeadStatus = "won"
	LeadStatusLost        LeadStatus = "lost"
)

// IsValid checks if the status is a valid LeadStatus value
func (s LeadStatus) IsValid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified,
		LeadStatusProposal, LeadStatusNegotiation, LeadStatusWon, LeadStatusLost:
		return true
	default:
		return false
	}
}

// IsClosed returns true if the lead has left the pipeline
func (s LeadStatus) IsClosed() bool {
	return s == LeadStatusWon || s == LeadStatusLost
}

// QualificationStatus is the hot/warm/cold classification derived from the
// qualification score. It is always written together with the score, never
// independently.
type QualificationStatus string

const (
	QualificationHot  QualificationStatus = "hot"
	QualificationWarm QualificationStatus = "warm"
	QualificationCold QualificationStatus = "cold"
)

// IsValid checks if the status is a valid QualificationStatus value
func (s QualificationStatus) IsValid() bool {
	switch s {
	case QualificationHot, QualificationWarm, QualificationCold:
		return true
	default:
		return false
	}
}

// QualificationStatusForScore maps a 0-100 qualification score to its
// classification: hot >= 70, warm >= 40, cold otherwise.
func QualificationStatusForScore(score int) QualificationStatus {
	switch {
	case score >= 70:
		return QualificationHot
	case score >= 40:
		return QualificationWarm
	default:
		return QualificationCold
	}
}

// EnrollmentStatus represents the current state of a lead's enrollment in a
// nurturing sequence
type EnrollmentStatus string

const (
	// EnrollmentStatusActive indicates the enrollment is progressing through steps
	EnrollmentStatusActive EnrollmentStatus = "active"

	// EnrollmentStatusCompleted indicates every step has executed
	EnrollmentStatusCompleted EnrollmentStatus = "completed"

	// EnrollmentStatusPaused indicates the enrollment is on hold and can resume
	EnrollmentStatusPaused EnrollmentStatus = "paused"

	// EnrollmentStatusExited indicates an exit condition fired before completion
	EnrollmentStatusExited EnrollmentStatus = "exited"
)

// IsValid checks if the status is a valid EnrollmentStatus value
func (s EnrollmentStatus) IsValid() bool {
	switch s {
	case EnrollmentStatusActive, EnrollmentStatusCompleted,
		EnrollmentStatusPaused, EnrollmentStatusExited:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the status represents a terminal state
func (s EnrollmentStatus) IsTerminal() bool {
	return s == EnrollmentStatusCompleted || s == EnrollmentStatusExited
}

// ActionType represents the kind of follow-up action a sequence step performs
type ActionType string

const (
	ActionTypeEmail        ActionType = "email"
	ActionTypeTask         ActionType = "task"
	ActionTypeNotification ActionType = "notification"
)

// IsValid checks if the action type is a known value
func (a ActionType) IsValid() bool {
	switch a {
	case ActionTypeEmail, ActionTypeTask, ActionTypeNotification:
		return true
	default:
		return false
	}
}

// TriggerType represents the condition class under which a lead is
// automatically enrolled into a sequence
type TriggerType string

const (
	// TriggerNewLead enrolls leads at creation time
	TriggerNewLead TriggerType = "new_lead"

	// TriggerNoContact enrolls leads never contacted within a day threshold
	TriggerNoContact TriggerType = "no_contact"

	// TriggerInactivity enrolls leads whose last contact is older than a threshold
	TriggerInactivity TriggerType = "inactivity"

	// TriggerStatusChange enrolls leads that reached a target pipeline status
	TriggerStatusChange TriggerType = "status_change"
)

// IsValid checks if the trigger type is a known value
func (t TriggerType) IsValid() bool {
	switch t {
	case TriggerNewLead, TriggerNoContact, TriggerInactivity, TriggerStatusChange:
		return true
	default:
		return false
	}
}

// ExitReason records why an enrollment exited early
type ExitReason string

const (
	ExitReasonReplied     ExitReason = "REPLIED"
	ExitReasonConverted   ExitReason = "CONVERTED"
	ExitReasonAppointment ExitReason = "APPOINTMENT_BOOKED"
	ExitReasonStatus      ExitReason = "STATUS_REACHED"
	ExitReasonMaxDays     ExitReason = "MAX_DAYS_EXCEEDED"
)

// String returns the string representation of the exit reason
func (r ExitReason) String() string {
	return string(r)
}
