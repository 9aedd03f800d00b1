package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/checkfox/go_crm/internal/models"
)

// EventRepository defines read access to the interaction history the scorer
// and the nurturing engine consume
type EventRepository interface {
	// CreateCommunication logs one interaction with a lead
	CreateCommunication(ctx context.Context, event *models.CommunicationEvent) error

	// ListCommunicationsByLead returns all communications for a lead
	ListCommunicationsByLead(ctx context.Context, leadID int64) ([]models.CommunicationEvent, error)

	// ListPropertyViewsByContact returns all property views for a contact
	ListPropertyViewsByContact(ctx context.Context, contactID int64) ([]models.PropertyViewEvent, error)

	// CountCommunicationsSince counts communications in the given direction
	// ("inbound"/"outbound") after the given time
	CountCommunicationsSince(ctx context.Context, leadID int64, direction string, since time.Time) (int, error)

	// HasAppointmentSince reports whether an appointment was booked for the
	// lead after the given time
	HasAppointmentSince(ctx context.Context, leadID int64, since time.Time) (bool, error)
}

// eventRepository is the concrete implementation of EventRepository
type eventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new EventRepository instance
func NewEventRepository(db *sql.DB) EventRepository {
	return &eventRepository{
		db: db,
	}
}

// CreateCommunication logs one interaction with a lead
func (r *eventRepository) CreateCommunication(ctx context.Context, event *models.CommunicationEvent) error {
	query := `
		INSERT INTO communication_events (lead_id, direction, occurred_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	err := r.db.QueryRowContext(ctx, query, event.LeadID, event.Direction, event.OccurredAt).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to create communication event: %w", err)
	}

	return nil
}

// ListCommunicationsByLead returns all communications for a lead
func (r *eventRepository) ListCommunicationsByLead(ctx context.Context, leadID int64) ([]models.CommunicationEvent, error) {
	query := `
		SELECT id, lead_id, direction, occurred_at
		FROM communication_events
		WHERE lead_id = $1
		ORDER BY occurred_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query communications: %w", err)
	}
	defer rows.Close()

	events := []models.CommunicationEvent{}
	for rows.Next() {
		var event models.CommunicationEvent
		if err := rows.Scan(&event.ID, &event.LeadID, &event.Direction, &event.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan communication event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return events, nil
}

// ListPropertyViewsByContact returns all property views for a contact
func (r *eventRepository) ListPropertyViewsByContact(ctx context.Context, contactID int64) ([]models.PropertyViewEvent, error) {
	query := `
		SELECT id, contact_id, property_id, viewed_at
		FROM property_view_events
		WHERE contact_id = $1
		ORDER BY viewed_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to query property views: %w", err)
	}
	defer rows.Close()

	views := []models.PropertyViewEvent{}
	for rows.Next() {
		var view models.PropertyViewEvent
		if err := rows.Scan(&view.ID, &view.ContactID, &view.PropertyID, &view.ViewedAt); err != nil {
			return nil, fmt.Errorf("failed to scan property view event: %w", err)
		}
		views = append(views, view)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return views, nil
}

// CountCommunicationsSince counts communications in one direction after a time
func (r *eventRepository) CountCommunicationsSince(ctx context.Context, leadID int64, direction string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM communication_events
		WHERE lead_id = $1 AND direction = $2 AND occurred_at > $3
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, leadID, direction, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count communications: %w", err)
	}

	return count, nil
}

// HasAppointmentSince reports whether an appointment was booked after a time
func (r *eventRepository) HasAppointmentSince(ctx context.Context, leadID int64, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE lead_id = $1 AND created_at > $2
		)
	`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, leadID, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check appointments: %w", err)
	}

	return exists, nil
}
