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

const classColumns = "id, name, year, teacher_id, classroom_id, term_id, schedule, copy_to_next_term, is_active, created_at, updated_at"

// ClassRepository provides persistence for classes and their embedded schedules.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes with optional filtering and pagination.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	base := "FROM classes WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.ClassroomID != "" {
		conditions = append(conditions, fmt.Sprintf("classroom_id = $%d", len(args)+1))
		args = append(args, filter.ClassroomID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Year != "" {
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)+1))
		args = append(args, *filter.IsActive)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"year":       true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", classColumns, base, sortBy, order, size, offset)
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}

	return classes, total, nil
}

// FindByID loads a class by id.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := fmt.Sprintf(`SELECT %s FROM classes WHERE id = $1 LIMIT 1`, classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListActiveByClassroomTerm returns the active classes sharing a
// classroom and term; the conflict checker scans their schedules.
func (r *ClassRepository) ListActiveByClassroomTerm(ctx context.Context, classroomID, termID string) ([]models.Class, error) {
	query := fmt.Sprintf(`SELECT %s FROM classes WHERE classroom_id = $1 AND term_id = $2 AND is_active = TRUE`, classColumns)
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, classroomID, termID); err != nil {
		return nil, fmt.Errorf("list classes by classroom and term: %w", err)
	}
	return classes, nil
}

// ListActiveByTerm returns the active classes of a term ordered by name.
func (r *ClassRepository) ListActiveByTerm(ctx context.Context, termID string) ([]models.Class, error) {
	query := fmt.Sprintf(`SELECT %s FROM classes WHERE term_id = $1 AND is_active = TRUE ORDER BY name ASC`, classColumns)
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, termID); err != nil {
		return nil, fmt.Errorf("list classes by term: %w", err)
	}
	return classes, nil
}

// ListDetailByTerm returns the active classes of a term joined with
// teacher, classroom and term names for export rendering.
func (r *ClassRepository) ListDetailByTerm(ctx context.Context, termID string) ([]models.ClassDetail, error) {
	const query = `SELECT c.id, c.name, c.year, c.teacher_id, c.classroom_id, c.term_id, c.schedule, c.copy_to_next_term, c.is_active, c.created_at, c.updated_at,
	u.full_name AS teacher_name, r.name AS classroom_name, t.name AS term_name
	FROM classes c
	JOIN users u ON u.id = c.teacher_id
	JOIN classrooms r ON r.id = c.classroom_id
	JOIN terms t ON t.id = c.term_id
	WHERE c.term_id = $1 AND c.is_active = TRUE
	ORDER BY c.name ASC`
	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, termID); err != nil {
		return nil, fmt.Errorf("list class detail by term: %w", err)
	}
	return classes, nil
}

// Create stores a new class record.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO classes (id, name, year, teacher_id, classroom_id, term_id, schedule, copy_to_next_term, is_active, created_at, updated_at) VALUES (:id, :name, :year, :teacher_id, :classroom_id, :term_id, :schedule, :copy_to_next_term, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update modifies a class record.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, year = :year, teacher_id = :teacher_id, classroom_id = :classroom_id, term_id = :term_id, schedule = :schedule, copy_to_next_term = :copy_to_next_term, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Deactivate marks a class inactive, removing it from conflict checks.
func (r *ClassRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE classes SET is_active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate class: %w", err)
	}
	return nil
}
