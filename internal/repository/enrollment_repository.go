package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/checkfox/go_crm/internal/models"
)

// EnrollmentRepository defines the interface for enrollment persistence
type EnrollmentRepository interface {
	// CreateEnrollment creates a new enrollment record
	CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error

	// GetEnrollmentByID retrieves an enrollment by its ID
	GetEnrollmentByID(ctx context.Context, id int64) (*models.Enrollment, error)

	// UpdateEnrollment persists the mutable cursor fields of an enrollment
	UpdateEnrollment(ctx context.Context, enrollment *models.Enrollment) error

	// ListDueEnrollments returns active enrollments whose next action date
	// has arrived
	ListDueEnrollments(ctx context.Context, now time.Time) ([]*models.Enrollment, error)

	// ListActiveEnrollments returns all active enrollments
	ListActiveEnrollments(ctx context.Context) ([]*models.Enrollment, error)

	// HasActiveEnrollment reports whether the lead is actively enrolled in
	// the sequence
	HasActiveEnrollment(ctx context.Context, leadID, sequenceID int64) (bool, error)
}

// enrollmentRepository is the concrete implementation of EnrollmentRepository
type enrollmentRepository struct {
	db *sql.DB
}

// NewEnrollmentRepository creates a new EnrollmentRepository instance
func NewEnrollmentRepository(db *sql.DB) EnrollmentRepository {
	return &enrollmentRepository{
		db: db,
	}
}

const enrollmentColumns = `
	id, lead_id, sequence_id, status, current_step, next_action_date,
	completed_steps, exit_reason, enrolled_at, updated_at
`

// CreateEnrollment creates a new enrollment record
func (r *enrollmentRepository) CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	query := `
		INSERT INTO sequence_enrollments (
			lead_id, sequence_id, status, current_step, next_action_date,
			completed_steps, exit_reason, enrolled_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	now := time.Now()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	if enrollment.UpdatedAt.IsZero() {
		enrollment.UpdatedAt = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}

	err := r.db.QueryRowContext(
		ctx,
		query,
		enrollment.LeadID,
		enrollment.SequenceID,
		enrollment.Status,
		enrollment.CurrentStep,
		enrollment.NextActionDate,
		enrollment.CompletedSteps,
		enrollment.ExitReason,
		enrollment.EnrolledAt,
		enrollment.UpdatedAt,
	).Scan(&enrollment.ID)

	if err != nil {
		return fmt.Errorf("failed to create enrollment: %w", err)
	}

	return nil
}

// GetEnrollmentByID retrieves an enrollment by its ID
func (r *enrollmentRepository) GetEnrollmentByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM sequence_enrollments WHERE id = $1`

	enrollment, err := scanEnrollment(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("enrollment not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}

	return enrollment, nil
}

// UpdateEnrollment persists the mutable cursor fields of an enrollment
func (r *enrollmentRepository) UpdateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	query := `
		UPDATE sequence_enrollments
		SET status = $1, current_step = $2, next_action_date = $3,
		    completed_steps = $4, exit_reason = $5, updated_at = $6
		WHERE id = $7
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		enrollment.Status,
		enrollment.CurrentStep,
		enrollment.NextActionDate,
		enrollment.CompletedSteps,
		enrollment.ExitReason,
		enrollment.UpdatedAt,
		enrollment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update enrollment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("enrollment not found: %d", enrollment.ID)
	}

	return nil
}

// ListDueEnrollments returns active enrollments whose next action date has
// arrived
func (r *enrollmentRepository) ListDueEnrollments(ctx context.Context, now time.Time) ([]*models.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM sequence_enrollments
		WHERE status = $1 AND next_action_date IS NOT NULL AND next_action_date <= $2
		ORDER BY next_action_date ASC
	`

	rows, err := r.db.QueryContext(ctx, query, models.EnrollmentStatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due enrollments: %w", err)
	}
	defer rows.Close()

	return collectEnrollments(rows)
}

// ListActiveEnrollments returns all active enrollments
func (r *enrollmentRepository) ListActiveEnrollments(ctx context.Context) ([]*models.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM sequence_enrollments
		WHERE status = $1
		ORDER BY enrolled_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, models.EnrollmentStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active enrollments: %w", err)
	}
	defer rows.Close()

	return collectEnrollments(rows)
}

// HasActiveEnrollment reports whether the lead is actively enrolled in the
// sequence
func (r *enrollmentRepository) HasActiveEnrollment(ctx context.Context, leadID, sequenceID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sequence_enrollments
			WHERE lead_id = $1 AND sequence_id = $2 AND status = $3
		)
	`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, leadID, sequenceID, models.EnrollmentStatusActive).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active enrollment: %w", err)
	}

	return exists, nil
}

func scanEnrollment(row rowScanner) (*models.Enrollment, error) {
	enrollment := &models.Enrollment{}
	err := row.Scan(
		&enrollment.ID,
		&enrollment.LeadID,
		&enrollment.SequenceID,
		&enrollment.Status,
		&enrollment.CurrentStep,
		&enrollment.NextActionDate,
		&enrollment.CompletedSteps,
		&enrollment.ExitReason,
		&enrollment.EnrolledAt,
		&enrollment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return enrollment, nil
}

func collectEnrollments(rows *sql.Rows) ([]*models.Enrollment, error) {
	enrollments := []*models.Enrollment{}
	for rows.Next() {
		enrollment, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		enrollments = append(enrollments, enrollment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return enrollments, nil
}
