package models

import (
	"strings"
	"time"
)

// Lead represents a prospective buyer inquiry tracked through the sales
// pipeline. Optional intake fields are pointers; an absent field contributes
// nothing to scoring and is never an error.
type Lead struct {
	ID                   int64                `json:"id" db:"id"`
	BuyerName            *string              `json:"buyer_name,omitempty" db:"buyer_name"`
	BuyerEmail           *string              `json:"buyer_email,omitempty" db:"buyer_email"`
	BuyerPhone           *string              `json:"buyer_phone,omitempty" db:"buyer_phone"`
	Budget               *float64             `json:"budget,omitempty" db:"budget"`
	Location             *string              `json:"location,omitempty" db:"location"`
	PropertyTypeInterest *string              `json:"property_type_interest,omitempty" db:"property_type_interest"`
	Message              *string              `json:"message,omitempty" db:"message"`
	Status               LeadStatus           `json:"status" db:"status"`
	LeadSource           *string              `json:"lead_source,omitempty" db:"lead_source"`
	LeadType             *string              `json:"lead_type,omitempty" db:"lead_type"`
	LastContactDate      *time.Time           `json:"last_contact_date,omitempty" db:"last_contact_date"`
	QualificationScore   *int                 `json:"qualification_score,omitempty" db:"qualification_score"`
	QualificationStatus  *QualificationStatus `json:"qualification_status,omitempty" db:"qualification_status"`
	QualificationDate    *time.Time           `json:"qualification_date,omitempty" db:"qualification_date"`
	CreatedAt            time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at" db:"updated_at"`
}

// HasEmail reports whether the lead carries a non-empty email address
func (l *Lead) HasEmail() bool {
	return l.BuyerEmail != nil && strings.TrimSpace(*l.BuyerEmail) != ""
}

// HasPhone reports whether the lead carries a non-empty phone number
func (l *Lead) HasPhone() bool {
	return l.BuyerPhone != nil && strings.TrimSpace(*l.BuyerPhone) != ""
}

// HasFullName reports whether the buyer name has at least two space-separated
// tokens
func (l *Lead) HasFullName() bool {
	if l.BuyerName == nil {
		return false
	}
	return len(strings.Fields(*l.BuyerName)) >= 2
}

// LastTouch returns the reference timestamp for recency scoring: the last
// contact date when set, the creation date otherwise.
func (l *Lead) LastTouch() time.Time {
	if l.LastContactDate != nil {
		return *l.LastContactDate
	}
	return l.CreatedAt
}

// ApplyQualification writes the derived qualification fields as one unit.
// Score and status must never be updated independently of each other.
func (l *Lead) ApplyQualification(score int, now time.Time) {
	status := QualificationStatusForScore(score)
	l.QualificationScore = &score
	l.QualificationStatus = &status
	l.QualificationDate = &now
	l.UpdatedAt = now
}

// CommunicationEvent represents one logged interaction with a lead
// (call, email, message). Consumed read-only by the scorer.
type CommunicationEvent struct {
	ID         int64     `json:"id" db:"id"`
	LeadID     int64     `json:"lead_id" db:"lead_id"`
	Direction  string    `json:"direction" db:"direction"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
}

// PropertyViewEvent represents a property detail view attributed to a contact.
// Consumed read-only by the scorer.
type PropertyViewEvent struct {
	ID         int64     `json:"id" db:"id"`
	ContactID  int64     `json:"contact_id" db:"contact_id"`
	PropertyID int64     `json:"property_id" db:"property_id"`
	ViewedAt   time.Time `json:"viewed_at" db:"viewed_at"`
}
