package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/oakmont-tuition/omt-api/internal/models"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
)

type topicRepository interface {
	List(ctx context.Context, filter models.CurriculumFilter) ([]models.Topic, int, error)
	FindByID(ctx context.Context, id string) (*models.Topic, error)
	Create(ctx context.Context, topic *models.Topic) error
	Update(ctx context.Context, topic *models.Topic) error
	Delete(ctx context.Context, id string) error
}

type assessmentRepository interface {
	List(ctx context.Context, filter models.CurriculumFilter) ([]models.Assessment, int, error)
	FindByID(ctx context.Context, id string) (*models.Assessment, error)
	Create(ctx context.Context, assessment *models.Assessment) error
	Update(ctx context.Context, assessment *models.Assessment) error
	Delete(ctx context.Context, id string) error
}

// CreateTopicRequest describes payload for creating topics.
type CreateTopicRequest struct {
	Name      string `json:"name" validate:"required"`
	Content   string `json:"content"`
	Year      string `json:"year" validate:"required"`
	TermLabel string `json:"term_label" validate:"required"`
}

// UpdateTopicRequest updates mutable fields on a topic.
type UpdateTopicRequest struct {
	Name      string  `json:"name" validate:"required"`
	Content   *string `json:"content"`
	Year      string  `json:"year" validate:"required"`
	TermLabel string  `json:"term_label" validate:"required"`
}

// CreateAssessmentRequest describes payload for creating assessments.
type CreateAssessmentRequest struct {
	Name      string `json:"name" validate:"required"`
	Year      string `json:"year" validate:"required"`
	TermLabel string `json:"term_label" validate:"required"`
}

// UpdateAssessmentRequest updates mutable fields on an assessment.
type UpdateAssessmentRequest struct {
	Name      string `json:"name" validate:"required"`
	Year      string `json:"year" validate:"required"`
	TermLabel string `json:"term_label" validate:"required"`
}

// CurriculumService manages teaching material: the topics taught per year
// and term label, and the assessments that examine them.
type CurriculumService struct {
	topics      topicRepository
	assessments assessmentRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCurriculumService creates a new curriculum service instance.
func NewCurriculumService(topics topicRepository, assessments assessmentRepository, validate *validator.Validate, logger *zap.Logger) *CurriculumService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CurriculumService{topics: topics, assessments: assessments, validator: validate, logger: logger}
}

func listPagination(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}

// validateCurriculumLabels rejects unknown year and term labels before
// they reach the store.
func validateCurriculumLabels(year, termLabel string) error {
	if !validYearLabel(year) {
		return appErrors.Clone(appErrors.ErrValidation, "unrecognised year label")
	}
	if !models.ValidTermLabel(termLabel) {
		return appErrors.Clone(appErrors.ErrValidation, "term label must be one of T1-T4")
	}
	return nil
}

// ListTopics returns paginated topics.
func (s *CurriculumService) ListTopics(ctx context.Context, filter models.CurriculumFilter) ([]models.Topic, *models.Pagination, error) {
	topics, total, err := s.topics.List(ctx, filter)
	if err != nil {
		return nil, nil, internalErr(err, "failed to list topics")
	}
	return topics, listPagination(filter.Page, filter.PageSize, total), nil
}

// GetTopic returns a topic by ID.
func (s *CurriculumService) GetTopic(ctx context.Context, id string) (*models.Topic, error) {
	topic, err := s.topics.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return nil, internalErr(err, "failed to load topic")
	}
	return topic, nil
}

// CreateTopic adds a new topic authored by the given user.
func (s *CurriculumService) CreateTopic(ctx context.Context, createdBy string, req CreateTopicRequest) (*models.Topic, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid topic payload")
	}
	if err := validateCurriculumLabels(req.Year, req.TermLabel); err != nil {
		return nil, err
	}

	topic := &models.Topic{
		Name:      strings.TrimSpace(req.Name),
		Content:   req.Content,
		Year:      req.Year,
		TermLabel: req.TermLabel,
		CreatedBy: createdBy,
	}
	if err := s.topics.Create(ctx, topic); err != nil {
		return nil, internalErr(err, "failed to create topic")
	}
	return topic, nil
}

// UpdateTopic modifies a topic. A nil Content leaves the existing text.
func (s *CurriculumService) UpdateTopic(ctx context.Context, id string, req UpdateTopicRequest) (*models.Topic, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid topic payload")
	}
	if err := validateCurriculumLabels(req.Year, req.TermLabel); err != nil {
		return nil, err
	}

	topic, err := s.topics.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return nil, internalErr(err, "failed to load topic")
	}

	topic.Name = strings.TrimSpace(req.Name)
	if req.Content != nil {
		topic.Content = *req.Content
	}
	topic.Year = req.Year
	topic.TermLabel = req.TermLabel

	if err := s.topics.Update(ctx, topic); err != nil {
		return nil, internalErr(err, "failed to update topic")
	}
	return topic, nil
}

// DeleteTopic removes a topic.
func (s *CurriculumService) DeleteTopic(ctx context.Context, id string) error {
	if _, err := s.topics.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return internalErr(err, "failed to load topic")
	}
	if err := s.topics.Delete(ctx, id); err != nil {
		return internalErr(err, "failed to delete topic")
	}
	return nil
}

// ListAssessments returns paginated assessments.
func (s *CurriculumService) ListAssessments(ctx context.Context, filter models.CurriculumFilter) ([]models.Assessment, *models.Pagination, error) {
	assessments, total, err := s.assessments.List(ctx, filter)
	if err != nil {
		return nil, nil, internalErr(err, "failed to list assessments")
	}
	return assessments, listPagination(filter.Page, filter.PageSize, total), nil
}

// GetAssessment returns an assessment by ID.
func (s *CurriculumService) GetAssessment(ctx context.Context, id string) (*models.Assessment, error) {
	assessment, err := s.assessments.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return nil, internalErr(err, "failed to load assessment")
	}
	return assessment, nil
}

// CreateAssessment adds a new assessment authored by the given user.
func (s *CurriculumService) CreateAssessment(ctx context.Context, createdBy string, req CreateAssessmentRequest) (*models.Assessment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment payload")
	}
	if err := validateCurriculumLabels(req.Year, req.TermLabel); err != nil {
		return nil, err
	}

	assessment := &models.Assessment{
		Name:      strings.TrimSpace(req.Name),
		Year:      req.Year,
		TermLabel: req.TermLabel,
		CreatedBy: createdBy,
	}
	if err := s.assessments.Create(ctx, assessment); err != nil {
		return nil, internalErr(err, "failed to create assessment")
	}
	return assessment, nil
}

// UpdateAssessment modifies an assessment.
func (s *CurriculumService) UpdateAssessment(ctx context.Context, id string, req UpdateAssessmentRequest) (*models.Assessment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment payload")
	}
	if err := validateCurriculumLabels(req.Year, req.TermLabel); err != nil {
		return nil, err
	}

	assessment, err := s.assessments.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return nil, internalErr(err, "failed to load assessment")
	}

	assessment.Name = strings.TrimSpace(req.Name)
	assessment.Year = req.Year
	assessment.TermLabel = req.TermLabel

	if err := s.assessments.Update(ctx, assessment); err != nil {
		return nil, internalErr(err, "failed to update assessment")
	}
	return assessment, nil
}

// DeleteAssessment removes an assessment.
func (s *CurriculumService) DeleteAssessment(ctx context.Context, id string) error {
	if _, err := s.assessments.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "assessment not found")
		}
		return internalErr(err, "failed to load assessment")
	}
	if err := s.assessments.Delete(ctx, id); err != nil {
		return internalErr(err, "failed to delete assessment")
	}
	return nil
}
