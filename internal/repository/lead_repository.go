package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/checkfox/go_crm/internal/models"
)

// LeadRepository defines the interface for lead persistence operations
type LeadRepository interface {
	// CreateLead creates a new lead record
	CreateLead(ctx context.Context, lead *models.Lead) error

	// GetLeadByID retrieves a lead by its ID
	GetLeadByID(ctx context.Context, id int64) (*models.Lead, error)

	// UpdateLeadQualification persists score, derived status, and
	// qualification date as one atomic write
	UpdateLeadQualification(ctx context.Context, id int64, score int, status models.QualificationStatus, qualifiedAt time.Time) error

	// UpdateLeadStatus moves a lead to a new pipeline status
	UpdateLeadStatus(ctx context.Context, id int64, status models.LeadStatus) error

	// ListOpenLeads returns leads still in the pipeline (not won or lost)
	ListOpenLeads(ctx context.Context) ([]*models.Lead, error)

	// GetQualificationCounts returns lead counts grouped by qualification status, with unscored leads under "unqualified"
	GetQualificationCounts(ctx context.Context) (map[string]int, error)

	// GetRecentLeads returns the most recent leads ordered by creation time
	GetRecentLeads(ctx context.Context, limit int) ([]*models.Lead, error)
}

// leadRepository is the concrete implementation of LeadRepository
type leadRepository struct {
	db *sql.DB
}

// NewLeadRepository creates a new LeadRepository instance
func NewLeadRepository(db *sql.DB) LeadRepository {
	return &leadRepository{
		db: db,
	}
}

const leadColumns = `
	id, buyer_name, buyer_email, buyer_phone, budget, location,
	property_type_interest, message, status, lead_source, lead_type,
	last_contact_date, qualification_score, qualification_status,
	qualification_date, created_at, updated_at
`

// CreateLead creates a new lead record
func (r *leadRepository) CreateLead(ctx context.Context, lead *models.Lead) error {
	query := `
		INSERT INTO leads (
			buyer_name, buyer_email, buyer_phone, budget, location,
			property_type_interest, message, status, lead_source, lead_type,
			last_contact_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	now := time.Now()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	if lead.UpdatedAt.IsZero() {
		lead.UpdatedAt = now
	}
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}

	err := r.db.QueryRowContext(
		ctx,
		query,
		lead.BuyerName,
		lead.BuyerEmail,
		lead.BuyerPhone,
		lead.Budget,
		lead.Location,
		lead.PropertyTypeInterest,
		lead.Message,
		lead.Status,
		lead.LeadSource,
		lead.LeadType,
		lead.LastContactDate,
		lead.CreatedAt,
		lead.UpdatedAt,
	).Scan(&lead.ID)

	if err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}

	return nil
}

// GetLeadByID retrieves a lead by its ID
func (r *leadRepository) GetLeadByID(ctx context.Context, id int64) (*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	lead, err := scanLead(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("lead not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	return lead, nil
}

// UpdateLeadQualification persists score, status, and date together.
// Status is recomputed from the score here as a last line of defense against
// callers passing an inconsistent pair.
func (r *leadRepository) UpdateLeadQualification(ctx context.Context, id int64, score int, status models.QualificationStatus, qualifiedAt time.Time) error {
	if derived := models.QualificationStatusForScore(score); status != derived {
		return fmt.Errorf("qualification status %s inconsistent with score %d (expected %s)", status, score, derived)
	}

	query := `
		UPDATE leads
		SET qualification_score = $1, qualification_status = $2,
		    qualification_date = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := r.db.ExecContext(ctx, query, score, status, qualifiedAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update lead qualification: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("lead not found: %d", id)
	}

	return nil
}

// UpdateLeadStatus moves a lead to a new pipeline status
func (r *leadRepository) UpdateLeadStatus(ctx context.Context, id int64, status models.LeadStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid lead status: %s", status)
	}

	query := `
		UPDATE leads
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("lead not found: %d", id)
	}

	return nil
}

// ListOpenLeads returns leads still in the pipeline
func (r *leadRepository) ListOpenLeads(ctx context.Context) ([]*models.Lead, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE status NOT IN ($1, $2)
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, models.LeadStatusWon, models.LeadStatusLost)
	if err != nil {
		return nil, fmt.Errorf("failed to query open leads: %w", err)
	}
	defer rows.Close()

	return collectLeads(rows)
}

// GetQualificationCounts returns lead counts grouped by qualification status, with unscored leads under "unqualified"
func (r *leadRepository) GetQualificationCounts(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT COALESCE(qualification_status, 'unqualified'), COUNT(*) as count
		FROM leads
		GROUP BY COALESCE(qualification_status, 'unqualified')
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query qualification counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return counts, nil
}

// GetRecentLeads returns the most recent leads ordered by creation time
func (r *leadRepository) GetRecentLeads(ctx context.Context, limit int) ([]*models.Lead, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent leads: %w", err)
	}
	defer rows.Close()

	return collectLeads(rows)
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row rowScanner) (*models.Lead, error) {
	lead := &models.Lead{}
	err := row.Scan(
		&lead.ID,
		&lead.BuyerName,
		&lead.BuyerEmail,
		&lead.BuyerPhone,
		&lead.Budget,
		&lead.Location,
		&lead.PropertyTypeInterest,
		&lead.Message,
		&lead.Status,
		&lead.LeadSource,
		&lead.LeadType,
		&lead.LastContactDate,
		&lead.QualificationScore,
		&lead.QualificationStatus,
		&lead.QualificationDate,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return lead, nil
}

func collectLeads(rows *sql.Rows) ([]*models.Lead, error) {
	leads := []*models.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, lead)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return leads, nil
}
