package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/oakmont-tuition/omt-api/internal/models"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
)

type progressRepository interface {
	List(ctx context.Context, filter models.ProgressFilter) ([]models.ProgressPlanDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ProgressPlanDetail, error)
	Create(ctx context.Context, plan *models.ProgressPlan) error
	Update(ctx context.Context, plan *models.ProgressPlan) error
	Delete(ctx context.Context, id string) error
}

type progressTermReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

// CreateProgressRequest describes payload for creating a progress plan.
type CreateProgressRequest struct {
	Name          string              `json:"name" validate:"required"`
	TermID        string              `json:"term_id" validate:"required"`
	Year          string              `json:"year" validate:"required"`
	WeeklyContent models.WeekContents `json:"weekly_content" validate:"dive"`
}

// UpdateProgressRequest updates mutable fields on a progress plan. A nil
// WeeklyContent leaves the existing breakdown untouched.
type UpdateProgressRequest struct {
	Name          string              `json:"name" validate:"required"`
	Year          string              `json:"year" validate:"required"`
	WeeklyContent models.WeekContents `json:"weekly_content" validate:"dive"`
}

// UpsertWeekRequest replaces the content recorded for one week.
type UpsertWeekRequest struct {
	TopicIDs     []string `json:"topic_ids"`
	AssessmentID *string  `json:"assessment_id"`
	Comments     *string  `json:"comments"`
}

// ProgressService tracks what each year group covers week by week across
// a term.
type ProgressService struct {
	repo      progressRepository
	terms     progressTermReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgressService creates a new progress service instance.
func NewProgressService(repo progressRepository, terms progressTermReader, validate *validator.Validate, logger *zap.Logger) *ProgressService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{repo: repo, terms: terms, validator: validate, logger: logger}
}

// List returns paginated progress plans with term display fields.
func (s *ProgressService) List(ctx context.Context, filter models.ProgressFilter) ([]models.ProgressPlanDetail, *models.Pagination, error) {
	plans, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalErr(err, "failed to list progress plans")
	}
	return plans, listPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a progress plan by ID.
func (s *ProgressService) Get(ctx context.Context, id string) (*models.ProgressPlanDetail, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "progress plan not found")
		}
		return nil, internalErr(err, "failed to load progress plan")
	}
	return plan, nil
}

// Create adds a progress plan for a term and year group. Weekly entries
// must fall inside the term and carry distinct week numbers.
func (s *ProgressService) Create(ctx context.Context, req CreateProgressRequest) (*models.ProgressPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}
	if !validYearLabel(req.Year) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unrecognised year label")
	}

	term, err := s.terms.FindByID(ctx, req.TermID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, internalErr(err, "failed to load term")
	}
	if err := validateWeeklyContent(req.WeeklyContent, term.Weeks); err != nil {
		return nil, err
	}

	plan := &models.ProgressPlan{
		Name:          strings.TrimSpace(req.Name),
		TermID:        term.ID,
		Year:          req.Year,
		WeeklyContent: sortedWeeks(req.WeeklyContent),
	}
	if err := s.repo.Create(ctx, plan); err != nil {
		return nil, internalErr(err, "failed to create progress plan")
	}
	return plan, nil
}

// Update modifies a progress plan. The owning term cannot be changed;
// plans are bound to the term they were created for.
func (s *ProgressService) Update(ctx context.Context, id string, req UpdateProgressRequest) (*models.ProgressPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}
	if !validYearLabel(req.Year) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unrecognised year label")
	}

	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "progress plan not found")
		}
		return nil, internalErr(err, "failed to load progress plan")
	}

	plan := detail.ProgressPlan
	plan.Name = strings.TrimSpace(req.Name)
	plan.Year = req.Year
	if req.WeeklyContent != nil {
		term, err := s.terms.FindByID(ctx, plan.TermID)
		if err != nil {
			return nil, internalErr(err, "failed to load term")
		}
		if err := validateWeeklyContent(req.WeeklyContent, term.Weeks); err != nil {
			return nil, err
		}
		plan.WeeklyContent = sortedWeeks(req.WeeklyContent)
	}

	if err := s.repo.Update(ctx, &plan); err != nil {
		return nil, internalErr(err, "failed to update progress plan")
	}
	return &plan, nil
}

// UpsertWeek replaces what one week records, adding the entry when the
// week has none yet. Nil fields keep the existing values on an update.
func (s *ProgressService) UpsertWeek(ctx context.Context, id string, week int, req UpsertWeekRequest) (*models.ProgressPlan, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "progress plan not found")
		}
		return nil, internalErr(err, "failed to load progress plan")
	}

	term, err := s.terms.FindByID(ctx, detail.TermID)
	if err != nil {
		return nil, internalErr(err, "failed to load term")
	}
	if week < 1 || week > term.Weeks {
		return nil, appErrors.Clone(appErrors.ErrValidation, "week is outside the term")
	}

	plan := detail.ProgressPlan
	idx := -1
	for i, entry := range plan.WeeklyContent {
		if entry.Week == week {
			idx = i
			break
		}
	}
	if idx == -1 {
		entry := models.WeekContent{Week: week, TopicIDs: req.TopicIDs}
		if req.AssessmentID != nil {
			entry.AssessmentID = req.AssessmentID
		}
		if req.Comments != nil {
			entry.Comments = *req.Comments
		}
		plan.WeeklyContent = sortedWeeks(append(plan.WeeklyContent, entry))
	} else {
		if req.TopicIDs != nil {
			plan.WeeklyContent[idx].TopicIDs = req.TopicIDs
		}
		if req.AssessmentID != nil {
			plan.WeeklyContent[idx].AssessmentID = req.AssessmentID
		}
		if req.Comments != nil {
			plan.WeeklyContent[idx].Comments = *req.Comments
		}
	}

	if err := s.repo.Update(ctx, &plan); err != nil {
		return nil, internalErr(err, "failed to update progress plan")
	}
	return &plan, nil
}

// Delete removes a progress plan.
func (s *ProgressService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "progress plan not found")
		}
		return internalErr(err, "failed to load progress plan")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return internalErr(err, "failed to delete progress plan")
	}
	return nil
}

func validateWeeklyContent(content models.WeekContents, termWeeks int) error {
	seen := make(map[int]bool, len(content))
	for _, entry := range content {
		if entry.Week < 1 || entry.Week > termWeeks {
			return appErrors.Clone(appErrors.ErrValidation, "weekly content has a week outside the term")
		}
		if seen[entry.Week] {
			return appErrors.Clone(appErrors.ErrValidation, "weekly content repeats a week")
		}
		seen[entry.Week] = true
	}
	return nil
}

func sortedWeeks(content models.WeekContents) models.WeekContents {
	sort.SliceStable(content, func(i, j int) bool {
		return content[i].Week < content[j].Week
	})
	return content
}
