package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oakmont-tuition/omt-api/internal/models"
)

const followupColumns = "id, issue, solution, due_date, is_completed, completed_at, created_by, created_at, updated_at"

// FollowupRepository provides persistence for staff followups.
type FollowupRepository struct {
	db *sqlx.DB
}

// NewFollowupRepository creates a new followup repository.
func NewFollowupRepository(db *sqlx.DB) *FollowupRepository {
	return &FollowupRepository{db: db}
}

// List returns followups ordered by due date, soonest first.
func (r *FollowupRepository) List(ctx context.Context, filter models.FollowupFilter) ([]models.Followup, int, error) {
	base := "FROM followups WHERE 1=1"
	var args []interface{}

	if filter.IsCompleted != nil {
		base += fmt.Sprintf(" AND is_completed = $%d", len(args)+1)
		args = append(args, *filter.IsCompleted)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY due_date ASC LIMIT %d OFFSET %d", followupColumns, base, size, offset)
	var followups []models.Followup
	if err := r.db.SelectContext(ctx, &followups, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list followups: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count followups: %w", err)
	}
	return followups, total, nil
}

// FindByID loads a followup by id.
func (r *FollowupRepository) FindByID(ctx context.Context, id string) (*models.Followup, error) {
	query := fmt.Sprintf(`SELECT %s FROM followups WHERE id = $1 LIMIT 1`, followupColumns)
	var followup models.Followup
	if err := r.db.GetContext(ctx, &followup, query, id); err != nil {
		return nil, err
	}
	return &followup, nil
}

// Create stores a new followup.
func (r *FollowupRepository) Create(ctx context.Context, followup *models.Followup) error {
	if followup.ID == "" {
		followup.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if followup.CreatedAt.IsZero() {
		followup.CreatedAt = now
	}
	followup.UpdatedAt = now

	const query = `INSERT INTO followups (id, issue, solution, due_date, is_completed, completed_at, created_by, created_at, updated_at) VALUES (:id, :issue, :solution, :due_date, :is_completed, :completed_at, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, followup); err != nil {
		return fmt.Errorf("create followup: %w", err)
	}
	return nil
}

// Update modifies a followup record, completion state included.
func (r *FollowupRepository) Update(ctx context.Context, followup *models.Followup) error {
	followup.UpdatedAt = time.Now().UTC()
	const query = `UPDATE followups SET issue = :issue, solution = :solution, due_date = :due_date, is_completed = :is_completed, completed_at = :completed_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, followup); err != nil {
		return fmt.Errorf("update followup: %w", err)
	}
	return nil
}

// Delete removes a followup by id.
func (r *FollowupRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM followups WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete followup: %w", err)
	}
	return nil
}
