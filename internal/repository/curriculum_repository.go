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

const topicColumns = "id, name, content, year, term_label, created_by, created_at, updated_at"
const assessmentColumns = "id, name, year, term_label, created_by, created_at, updated_at"

// curriculumListClause builds the shared WHERE/ORDER/LIMIT tail for topic
// and assessment listings. Both tables filter on the same columns.
func curriculumListClause(filter models.CurriculumFilter) (string, string, []interface{}) {
	base := "WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Year != "" {
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.TermLabel != "" {
		conditions = append(conditions, fmt.Sprintf("term_label = $%d", len(args)+1))
		args = append(args, filter.TermLabel)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"year":       true,
		"term_label": true,
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

	tail := fmt.Sprintf("ORDER BY %s %s LIMIT %d OFFSET %d", sortBy, order, size, offset)
	return base, tail, args
}

// TopicRepository provides persistence for curriculum topics.
type TopicRepository struct {
	db *sqlx.DB
}

// NewTopicRepository creates a new topic repository.
func NewTopicRepository(db *sqlx.DB) *TopicRepository {
	return &TopicRepository{db: db}
}

// List returns topics with optional filtering and pagination.
func (r *TopicRepository) List(ctx context.Context, filter models.CurriculumFilter) ([]models.Topic, int, error) {
	base, tail, args := curriculumListClause(filter)

	query := fmt.Sprintf("SELECT %s FROM topics %s %s", topicColumns, base, tail)
	var topics []models.Topic
	if err := r.db.SelectContext(ctx, &topics, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list topics: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM topics %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count topics: %w", err)
	}
	return topics, total, nil
}

// FindByID loads a topic by id.
func (r *TopicRepository) FindByID(ctx context.Context, id string) (*models.Topic, error) {
	query := fmt.Sprintf(`SELECT %s FROM topics WHERE id = $1 LIMIT 1`, topicColumns)
	var topic models.Topic
	if err := r.db.GetContext(ctx, &topic, query, id); err != nil {
		return nil, err
	}
	return &topic, nil
}

// Create stores a new topic.
func (r *TopicRepository) Create(ctx context.Context, topic *models.Topic) error {
	if topic.ID == "" {
		topic.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if topic.CreatedAt.IsZero() {
		topic.CreatedAt = now
	}
	topic.UpdatedAt = now

	const query = `INSERT INTO topics (id, name, content, year, term_label, created_by, created_at, updated_at) VALUES (:id, :name, :content, :year, :term_label, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, topic); err != nil {
		return fmt.Errorf("create topic: %w", err)
	}
	return nil
}

// Update modifies a topic record.
func (r *TopicRepository) Update(ctx context.Context, topic *models.Topic) error {
	topic.UpdatedAt = time.Now().UTC()
	const query = `UPDATE topics SET name = :name, content = :content, year = :year, term_label = :term_label, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, topic); err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	return nil
}

// Delete removes a topic by id.
func (r *TopicRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM topics WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	return nil
}

// AssessmentRepository provides persistence for curriculum assessments.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository creates a new assessment repository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// List returns assessments with optional filtering and pagination.
func (r *AssessmentRepository) List(ctx context.Context, filter models.CurriculumFilter) ([]models.Assessment, int, error) {
	base, tail, args := curriculumListClause(filter)

	query := fmt.Sprintf("SELECT %s FROM assessments %s %s", assessmentColumns, base, tail)
	var assessments []models.Assessment
	if err := r.db.SelectContext(ctx, &assessments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assessments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM assessments %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count assessments: %w", err)
	}
	return assessments, total, nil
}

// FindByID loads an assessment by id.
func (r *AssessmentRepository) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	query := fmt.Sprintf(`SELECT %s FROM assessments WHERE id = $1 LIMIT 1`, assessmentColumns)
	var assessment models.Assessment
	if err := r.db.GetContext(ctx, &assessment, query, id); err != nil {
		return nil, err
	}
	return &assessment, nil
}

// Create stores a new assessment.
func (r *AssessmentRepository) Create(ctx context.Context, assessment *models.Assessment) error {
	if assessment.ID == "" {
		assessment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assessment.CreatedAt.IsZero() {
		assessment.CreatedAt = now
	}
	assessment.UpdatedAt = now

	const query = `INSERT INTO assessments (id, name, year, term_label, created_by, created_at, updated_at) VALUES (:id, :name, :year, :term_label, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assessment); err != nil {
		return fmt.Errorf("create assessment: %w", err)
	}
	return nil
}

// Update modifies an assessment record.
func (r *AssessmentRepository) Update(ctx context.Context, assessment *models.Assessment) error {
	assessment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assessments SET name = :name, year = :year, term_label = :term_label, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, assessment); err != nil {
		return fmt.Errorf("update assessment: %w", err)
	}
	return nil
}

// Delete removes an assessment by id.
func (r *AssessmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM assessments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete assessment: %w", err)
	}
	return nil
}
