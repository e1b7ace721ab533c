package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oakmont-tuition/omt-api/internal/models"
)

const progressColumns = "id, name, term_id, year, weekly_content, created_at, updated_at"

const progressDetailColumns = `p.id, p.name, p.term_id, p.year, p.weekly_content, p.created_at, p.updated_at,
	t.name AS term_name, t.type AS term_type`

// ProgressRepository provides persistence for term progress plans.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository creates a new progress repository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// List returns progress plans joined with their term's display fields,
// newest term first then year ascending.
func (r *ProgressRepository) List(ctx context.Context, filter models.ProgressFilter) ([]models.ProgressPlanDetail, int, error) {
	base := "FROM progress_plans p JOIN terms t ON t.id = p.term_id WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("p.term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.Year != "" {
		conditions = append(conditions, fmt.Sprintf("p.year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY t.start_date DESC, p.year ASC LIMIT %d OFFSET %d", progressDetailColumns, base, size, offset)
	var plans []models.ProgressPlanDetail
	if err := r.db.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list progress plans: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count progress plans: %w", err)
	}
	return plans, total, nil
}

// FindByID loads a progress plan with its term's display fields.
func (r *ProgressRepository) FindByID(ctx context.Context, id string) (*models.ProgressPlanDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM progress_plans p JOIN terms t ON t.id = p.term_id WHERE p.id = $1 LIMIT 1`, progressDetailColumns)
	var plan models.ProgressPlanDetail
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Create stores a new progress plan.
func (r *ProgressRepository) Create(ctx context.Context, plan *models.ProgressPlan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now

	const query = `INSERT INTO progress_plans (id, name, term_id, year, weekly_content, created_at, updated_at) VALUES (:id, :name, :term_id, :year, :weekly_content, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("create progress plan: %w", err)
	}
	return nil
}

// Update modifies a progress plan, weekly content included.
func (r *ProgressRepository) Update(ctx context.Context, plan *models.ProgressPlan) error {
	plan.UpdatedAt = time.Now().UTC()
	const query = `UPDATE progress_plans SET name = :name, term_id = :term_id, year = :year, weekly_content = :weekly_content, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("update progress plan: %w", err)
	}
	return nil
}

// Delete removes a progress plan by id.
func (r *ProgressRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM progress_plans WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete progress plan: %w", err)
	}
	return nil
}
