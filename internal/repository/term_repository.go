package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oakmont-tuition/omt-api/internal/models"
)

const termColumns = "id, name, type, start_date, weeks, is_first_term_of_year, is_current, created_by, created_at, updated_at"

// TermRepository handles persistence for scheduling terms.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// List returns terms matching provided filters.
func (r *TermRepository) List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error) {
	base := "FROM terms WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.IsCurrent != nil {
		conditions = append(conditions, fmt.Sprintf("is_current = $%d", len(args)+1))
		args = append(args, *filter.IsCurrent)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "start_date"
	}
	allowedSorts := map[string]bool{
		"name":       true,
		"start_date": true,
		"weeks":      true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "start_date"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", termColumns, base, sortBy, order, size, offset)
	var terms []models.Term
	if err := r.db.SelectContext(ctx, &terms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list terms: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count terms: %w", err)
	}

	return terms, total, nil
}

// FindByID loads a term by id.
func (r *TermRepository) FindByID(ctx context.Context, id string) (*models.Term, error) {
	query := fmt.Sprintf(`SELECT %s FROM terms WHERE id = $1 LIMIT 1`, termColumns)
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindCurrent returns the term flagged as current, or sql.ErrNoRows.
func (r *TermRepository) FindCurrent(ctx context.Context) (*models.Term, error) {
	query := fmt.Sprintf(`SELECT %s FROM terms WHERE is_current = TRUE LIMIT 1`, termColumns)
	var term models.Term
	if err := r.db.GetContext(ctx, &term, query); err != nil {
		return nil, err
	}
	return &term, nil
}

// ExistsByName reports whether another term already uses the name.
func (r *TermRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	query := `SELECT 1 FROM terms WHERE LOWER(name) = LOWER($1)`
	args := []interface{}{name}
	if excludeID != "" {
		query += ` AND id != $2`
		args = append(args, excludeID)
	}
	query += ` LIMIT 1`

	var one int
	err := r.db.GetContext(ctx, &one, query, args...)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check term name: %w", err)
	}
	return true, nil
}

// Create stores a new term record.
func (r *TermRepository) Create(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if term.CreatedAt.IsZero() {
		term.CreatedAt = now
	}
	term.UpdatedAt = now

	const query = `INSERT INTO terms (id, name, type, start_date, weeks, is_first_term_of_year, is_current, created_by, created_at, updated_at) VALUES (:id, :name, :type, :start_date, :weeks, :is_first_term_of_year, :is_current, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("create term: %w", err)
	}
	return nil
}

// Update modifies a term record.
func (r *TermRepository) Update(ctx context.Context, term *models.Term) error {
	term.UpdatedAt = time.Now().UTC()
	const query = `UPDATE terms SET name = :name, type = :type, start_date = :start_date, weeks = :weeks, is_first_term_of_year = :is_first_term_of_year, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("update term: %w", err)
	}
	return nil
}

// SetCurrent flips the is_current flag to the target term in one
// transaction: every other term is cleared first so the singleton
// invariant holds regardless of prior state.
func (r *TermRepository) SetCurrent(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set current term: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE terms SET is_current = FALSE, updated_at = $1 WHERE is_current = TRUE`, now); err != nil {
		return fmt.Errorf("clear current terms: %w", err)
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx, `UPDATE terms SET is_current = TRUE, updated_at = $2 WHERE id = $1`, id, now)
	if err != nil {
		return fmt.Errorf("set current term: %w", err)
	}
	if affected, affErr := res.RowsAffected(); affErr == nil && affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit set current term: %w", err)
	}
	return nil
}

// Delete removes a term by id.
func (r *TermRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM terms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete term: %w", err)
	}
	return nil
}

// CountClasses returns how many classes reference the term.
func (r *TermRepository) CountClasses(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM classes WHERE term_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count term classes: %w", err)
	}
	return count, nil
}
