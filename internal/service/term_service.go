package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/oakmont-tuition/omt-api/internal/models"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
	"github.com/oakmont-tuition/omt-api/pkg/timetable"
)

type termRepository interface {
	List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error)
	FindByID(ctx context.Context, id string) (*models.Term, error)
	FindCurrent(ctx context.Context) (*models.Term, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, term *models.Term) error
	Update(ctx context.Context, term *models.Term) error
	SetCurrent(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	CountClasses(ctx context.Context, id string) (int, error)
}

type studentRollover interface {
	ListActiveStudents(ctx context.Context) ([]models.User, error)
	UpdateYear(ctx context.Context, id, year string) error
	Delete(ctx context.Context, id string) error
}

// CreateTermRequest describes the payload for creating a term.
// Weeks defaults per type when omitted.
type CreateTermRequest struct {
	Name              string          `json:"name" validate:"required"`
	Type              models.TermType `json:"type" validate:"required,oneof=school_term holiday"`
	StartDate         time.Time       `json:"start_date" validate:"required"`
	Weeks             int             `json:"weeks" validate:"omitempty,min=1,max=52"`
	IsFirstTermOfYear bool            `json:"is_first_term_of_year"`
}

// UpdateTermRequest updates mutable fields on a term.
type UpdateTermRequest struct {
	Name              string    `json:"name" validate:"required"`
	StartDate         time.Time `json:"start_date" validate:"required"`
	Weeks             int       `json:"weeks" validate:"required,min=1,max=52"`
	IsFirstTermOfYear *bool     `json:"is_first_term_of_year"`
}

// TermService orchestrates term workflows: the current-term pointer, week
// arithmetic against the Saturday anchor, and the student year rollover
// that a first-term-of-year activation triggers.
type TermService struct {
	repo      termRepository
	students  studentRollover
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTermService creates a new term service instance. The cache is
// optional; when present the current-term pointer is served from it.
func NewTermService(repo termRepository, students studentRollover, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *TermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{repo: repo, students: students, cache: cache, validator: validate, logger: logger}
}

const currentTermCacheKey = "terms:current"

func (s *TermService) invalidateCurrentTerm(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, currentTermCacheKey); err != nil {
		s.logger.Warn("failed to invalidate current term cache", zap.Error(err))
	}
}

// List returns paginated terms.
func (s *TermService) List(ctx context.Context, filter models.TermFilter) ([]models.Term, *models.Pagination, error) {
	terms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	pagination := &models.Pagination{
		Page:       page,
		PageSize:   size,
		TotalCount: total,
	}
	return terms, pagination, nil
}

// Get returns a term by ID.
func (s *TermService) Get(ctx context.Context, id string) (*models.Term, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

// GetCurrent returns the current term.
func (s *TermService) GetCurrent(ctx context.Context) (*models.Term, error) {
	if s.cache != nil {
		var cached models.Term
		if hit, err := s.cache.Get(ctx, currentTermCacheKey, &cached); err != nil {
			s.logger.Warn("failed to read current term cache", zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	term, err := s.repo.FindCurrent(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current term is set")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current term")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, currentTermCacheKey, term, 0); err != nil {
			s.logger.Warn("failed to cache current term", zap.Error(err))
		}
	}
	return term, nil
}

// CurrentWeek computes the 1-based week number of the current term at the
// given instant, clamped to the term's week range.
func (s *TermService) CurrentWeek(ctx context.Context, now time.Time) (*models.Term, int, error) {
	term, err := s.GetCurrent(ctx)
	if err != nil {
		return nil, 0, err
	}
	week := timetable.WeekOf(term.StartDate, term.Weeks, now)
	return term, week, nil
}

// Create adds a new term. Start dates must land on the Saturday week
// anchor so slot date arithmetic stays aligned.
func (s *TermService) Create(ctx context.Context, req CreateTermRequest, createdBy string) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	if req.StartDate.Weekday() != time.Saturday {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be a Saturday")
	}

	exists, err := s.repo.ExistsByName(ctx, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check term name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a term with this name already exists")
	}

	weeks := req.Weeks
	if weeks == 0 {
		weeks = models.DefaultSchoolTermWeeks
		if req.Type == models.TermTypeHoliday {
			weeks = models.DefaultHolidayWeeks
		}
	}

	term := &models.Term{
		Name:              req.Name,
		Type:              req.Type,
		StartDate:         req.StartDate,
		Weeks:             weeks,
		IsFirstTermOfYear: req.IsFirstTermOfYear,
		CreatedBy:         createdBy,
	}

	if err := s.repo.Create(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create term")
	}
	return term, nil
}

// Update modifies a term record. The type is fixed after creation since
// existing slots were generated from its windows.
func (s *TermService) Update(ctx context.Context, id string, req UpdateTermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	if req.StartDate.Weekday() != time.Saturday {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be a Saturday")
	}

	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}

	exists, err := s.repo.ExistsByName(ctx, req.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check term name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a term with this name already exists")
	}

	term.Name = req.Name
	term.StartDate = req.StartDate
	term.Weeks = req.Weeks
	if req.IsFirstTermOfYear != nil {
		term.IsFirstTermOfYear = *req.IsFirstTermOfYear
	}

	if err := s.repo.Update(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update term")
	}
	if term.IsCurrent {
		s.invalidateCurrentTerm(ctx)
	}
	return term, nil
}

// Activate makes a term the current one. Activating a first-term-of-year
// additionally rolls every active student forward a year; rollover is
// best effort and per-student failures are reported, not fatal.
func (s *TermService) Activate(ctx context.Context, id string) (*models.TermActivation, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}

	alreadyCurrent := term.IsCurrent

	if err := s.repo.SetCurrent(ctx, term.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate term")
	}
	term.IsCurrent = true
	s.invalidateCurrentTerm(ctx)

	activation := &models.TermActivation{Term: term}

	// Re-activating the already-current term must not roll students twice.
	if term.IsFirstTermOfYear && !alreadyCurrent {
		activation.Rollover = s.rolloverStudentYears(ctx)
	}

	return activation, nil
}

// Delete removes a term when it is not current and has no classes.
func (s *TermService) Delete(ctx context.Context, id string) error {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}

	if term.IsCurrent {
		return appErrors.Clone(appErrors.ErrCurrentTerm, "the current term cannot be deleted")
	}

	count, err := s.repo.CountClasses(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check term dependencies")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "term has classes associated")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete term")
	}
	return nil
}

// rolloverStudentYears advances every active student one year. Terminal
// years (Y12 and its extension streams) graduate: the student is
// deactivated and keeps their final year label.
func (s *TermService) rolloverStudentYears(ctx context.Context) []models.YearRolloverResult {
	students, err := s.students.ListActiveStudents(ctx)
	if err != nil {
		s.logger.Error("year rollover aborted: cannot list students", zap.Error(err))
		return []models.YearRolloverResult{{Error: "failed to list active students"}}
	}

	results := make([]models.YearRolloverResult, 0, len(students))
	for _, student := range students {
		if student.Year == nil || *student.Year == "" {
			continue
		}
		result := models.YearRolloverResult{
			StudentID: student.ID,
			Name:      student.FullName,
			OldYear:   *student.Year,
		}

		if models.TerminalYear(*student.Year) {
			if err := s.students.Delete(ctx, student.ID); err != nil {
				s.logger.Error("year rollover: failed to graduate student",
					zap.String("student_id", student.ID), zap.Error(err))
				result.Error = "failed to deactivate graduating student"
			} else {
				result.Graduated = true
			}
			results = append(results, result)
			continue
		}

		next, ok := models.NextYear[*student.Year]
		if !ok {
			s.logger.Warn("year rollover: unrecognised year label",
				zap.String("student_id", student.ID), zap.String("year", *student.Year))
			result.Error = "unrecognised year label"
			results = append(results, result)
			continue
		}

		if err := s.students.UpdateYear(ctx, student.ID, next); err != nil {
			s.logger.Error("year rollover: failed to advance student",
				zap.String("student_id", student.ID), zap.Error(err))
			result.Error = "failed to advance year"
		} else {
			result.NewYear = &next
		}
		results = append(results, result)
	}

	s.logger.Info("student year rollover finished", zap.Int("students", len(results)))
	return results
}
