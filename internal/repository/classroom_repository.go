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

const classroomColumns = "id, name, capacity, is_active, created_at, updated_at"

// ClassroomRepository provides persistence for classrooms.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository creates a new classroom repository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// List returns classrooms with optional filtering and pagination.
func (r *ClassroomRepository) List(ctx context.Context, filter models.ClassroomFilter) ([]models.Classroom, int, error) {
	base := "FROM classrooms WHERE 1=1"
	var conditions []string
	var args []interface{}

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
		"capacity":   true,
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", classroomColumns, base, sortBy, order, size, offset)
	var classrooms []models.Classroom
	if err := r.db.SelectContext(ctx, &classrooms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classrooms: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classrooms: %w", err)
	}

	return classrooms, total, nil
}

// FindByID loads a classroom by id.
func (r *ClassroomRepository) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	query := fmt.Sprintf(`SELECT %s FROM classrooms WHERE id = $1 LIMIT 1`, classroomColumns)
	var classroom models.Classroom
	if err := r.db.GetContext(ctx, &classroom, query, id); err != nil {
		return nil, err
	}
	return &classroom, nil
}

// Create stores a new classroom.
func (r *ClassroomRepository) Create(ctx context.Context, classroom *models.Classroom) error {
	if classroom.ID == "" {
		classroom.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if classroom.CreatedAt.IsZero() {
		classroom.CreatedAt = now
	}
	classroom.UpdatedAt = now

	const query = `INSERT INTO classrooms (id, name, capacity, is_active, created_at, updated_at) VALUES (:id, :name, :capacity, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, classroom); err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}
	return nil
}

// Update modifies a classroom record.
func (r *ClassroomRepository) Update(ctx context.Context, classroom *models.Classroom) error {
	classroom.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classrooms SET name = :name, capacity = :capacity, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, classroom); err != nil {
		return fmt.Errorf("update classroom: %w", err)
	}
	return nil
}

// Delete removes a classroom by id.
func (r *ClassroomRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM classrooms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete classroom: %w", err)
	}
	return nil
}

// CountSlots returns how many detention slots reference the classroom.
func (r *ClassroomRepository) CountSlots(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM detention_slots WHERE classroom_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count classroom slots: %w", err)
	}
	return count, nil
}
