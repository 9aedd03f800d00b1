package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/checkfox/go_crm/internal/models"
)

// SequenceRepository defines the interface for nurturing sequence persistence
type SequenceRepository interface {
	// CreateSequence creates a new sequence record
	CreateSequence(ctx context.Context, seq *models.NurturingSequence) error

	// GetSequenceByID retrieves a sequence by its ID
	GetSequenceByID(ctx context.Context, id int64) (*models.NurturingSequence, error)

	// ListActiveSequences returns all sequences with is_active = true
	ListActiveSequences(ctx context.Context) ([]*models.NurturingSequence, error)

	// SetSequenceActive toggles a sequence on or off
	SetSequenceActive(ctx context.Context, id int64, active bool) error
}

// sequenceRepository is the concrete implementation of SequenceRepository
type sequenceRepository struct {
	db *sql.DB
}

// NewSequenceRepository creates a new SequenceRepository instance
func NewSequenceRepository(db *sql.DB) SequenceRepository {
	return &sequenceRepository{
		db: db,
	}
}

// CreateSequence creates a new sequence record after validating it
func (r *sequenceRepository) CreateSequence(ctx context.Context, seq *models.NurturingSequence) error {
	if err := seq.Validate(); err != nil {
		return fmt.Errorf("invalid sequence: %w", err)
	}

	query := `
		INSERT INTO nurturing_sequences (
			name, trigger_type, trigger_conditions, exit_conditions, steps,
			lead_sources, lead_types, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	now := time.Now()
	if seq.CreatedAt.IsZero() {
		seq.CreatedAt = now
	}
	if seq.UpdatedAt.IsZero() {
		seq.UpdatedAt = now
	}

	triggerJSON, exitJSON, err := marshalConditions(seq)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(
		ctx,
		query,
		seq.Name,
		seq.TriggerType,
		triggerJSON,
		exitJSON,
		seq.Steps,
		pq.Array(seq.LeadSources),
		pq.Array(seq.LeadTypes),
		seq.IsActive,
		seq.CreatedAt,
		seq.UpdatedAt,
	).Scan(&seq.ID)

	if err != nil {
		return fmt.Errorf("failed to create sequence: %w", err)
	}

	return nil
}

// GetSequenceByID retrieves a sequence by its ID
func (r *sequenceRepository) GetSequenceByID(ctx context.Context, id int64) (*models.NurturingSequence, error) {
	query := `
		SELECT id, name, trigger_type, trigger_conditions, exit_conditions,
		       steps, lead_sources, lead_types, is_active, created_at, updated_at
		FROM nurturing_sequences
		WHERE id = $1
	`

	seq, err := scanSequence(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("sequence not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sequence: %w", err)
	}

	return seq, nil
}

// ListActiveSequences returns all sequences with is_active = true
func (r *sequenceRepository) ListActiveSequences(ctx context.Context) ([]*models.NurturingSequence, error) {
	query := `
		SELECT id, name, trigger_type, trigger_conditions, exit_conditions,
		       steps, lead_sources, lead_types, is_active, created_at, updated_at
		FROM nurturing_sequences
		WHERE is_active = true
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active sequences: %w", err)
	}
	defer rows.Close()

	sequences := []*models.NurturingSequence{}
	for rows.Next() {
		seq, err := scanSequence(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sequence: %w", err)
		}
		sequences = append(sequences, seq)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return sequences, nil
}

// SetSequenceActive toggles a sequence on or off
func (r *sequenceRepository) SetSequenceActive(ctx context.Context, id int64, active bool) error {
	query := `
		UPDATE nurturing_sequences
		SET is_active = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update sequence: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("sequence not found: %d", id)
	}

	return nil
}

func marshalConditions(seq *models.NurturingSequence) ([]byte, []byte, error) {
	triggerJSON, err := jsonMarshal(seq.TriggerConditions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal trigger conditions: %w", err)
	}
	exitJSON, err := jsonMarshal(seq.ExitConditions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal exit conditions: %w", err)
	}
	return triggerJSON, exitJSON, nil
}

func scanSequence(row rowScanner) (*models.NurturingSequence, error) {
	seq := &models.NurturingSequence{}
	var triggerJSON, exitJSON []byte

	err := row.Scan(
		&seq.ID,
		&seq.Name,
		&seq.TriggerType,
		&triggerJSON,
		&exitJSON,
		&seq.Steps,
		pq.Array(&seq.LeadSources),
		pq.Array(&seq.LeadTypes),
		&seq.IsActive,
		&seq.CreatedAt,
		&seq.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := jsonUnmarshal(triggerJSON, &seq.TriggerConditions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger conditions: %w", err)
	}
	if err := jsonUnmarshal(exitJSON, &seq.ExitConditions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal exit conditions: %w", err)
	}

	return seq, nil
}
