package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/oakmont-tuition/omt-api/internal/models"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
	"github.com/oakmont-tuition/omt-api/pkg/timetable"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ListActiveByClassroomTerm(ctx context.Context, classroomID, termID string) ([]models.Class, error)
	ListActiveByTerm(ctx context.Context, termID string) ([]models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Deactivate(ctx context.Context, id string) error
}

type classUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type classTermReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
	FindCurrent(ctx context.Context) (*models.Term, error)
}

// CreateClassRequest describes payload for creating a class. When Name is
// empty a name is generated from the teacher, year and first schedule entry.
type CreateClassRequest struct {
	Name           string                 `json:"name"`
	Year           string                 `json:"year" validate:"required"`
	TeacherID      string                 `json:"teacher_id" validate:"required"`
	ClassroomID    string                 `json:"classroom_id" validate:"required"`
	TermID         string                 `json:"term_id" validate:"required"`
	Schedule       []models.ScheduleEntry `json:"schedule" validate:"required,min=1,dive"`
	CopyToNextTerm bool                   `json:"copy_to_next_term"`
}

// UpdateClassRequest updates mutable fields on a class.
type UpdateClassRequest struct {
	Name           string                 `json:"name"`
	Year           string                 `json:"year" validate:"required"`
	TeacherID      string                 `json:"teacher_id" validate:"required"`
	ClassroomID    string                 `json:"classroom_id" validate:"required"`
	Schedule       []models.ScheduleEntry `json:"schedule" validate:"required,min=1,dive"`
	CopyToNextTerm *bool                  `json:"copy_to_next_term"`
}

// ClassService manages recurring weekly classes and guards the
// no-double-booking invariant per classroom and term.
type ClassService struct {
	repo      classRepository
	users     classUserReader
	terms     classTermReader
	validator *validator.Validate
	logger    *zap.Logger

	// Conflict checks for the same classroom+term are serialized so two
	// concurrent creates cannot both pass validation and then overlap.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewClassService creates a new class service instance.
func NewClassService(repo classRepository, users classUserReader, terms classTermReader, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{
		repo:      repo,
		users:     users,
		terms:     terms,
		validator: validate,
		logger:    logger,
		locks:     map[string]*sync.Mutex{},
	}
}

func (s *ClassService) roomLock(classroomID, termID string) *sync.Mutex {
	key := classroomID + "|" + termID
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// List returns paginated classes.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return classes, pagination, nil
}

// Get returns a class by ID.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Create validates the schedule against every active class in the same
// classroom and term, then stores the class. The first conflicting
// interval aborts the whole create.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if err := validateScheduleEntries(req.Schedule); err != nil {
		return nil, err
	}

	if _, err := s.terms.FindByID(ctx, req.TermID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}

	name := req.Name
	if name == "" {
		generated, err := s.generateName(ctx, req.TeacherID, req.Year, req.Schedule)
		if err != nil {
			return nil, err
		}
		name = generated
	}

	lock := s.roomLock(req.ClassroomID, req.TermID)
	lock.Lock()
	defer lock.Unlock()

	if conflict, err := s.findConflict(ctx, req.Schedule, req.ClassroomID, req.TermID, ""); err != nil {
		return nil, err
	} else if conflict != nil {
		return nil, appErrors.Clone(appErrors.ErrScheduleConflict,
			fmt.Sprintf("schedule conflicts with %s", conflict.ClassName))
	}

	class := &models.Class{
		Name:           name,
		Year:           req.Year,
		TeacherID:      req.TeacherID,
		ClassroomID:    req.ClassroomID,
		TermID:         req.TermID,
		Schedule:       req.Schedule,
		CopyToNextTerm: req.CopyToNextTerm,
		IsActive:       true,
	}

	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Update modifies a class, re-validating the schedule against the other
// classes in its classroom and term.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if err := validateScheduleEntries(req.Schedule); err != nil {
		return nil, err
	}

	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	lock := s.roomLock(req.ClassroomID, class.TermID)
	lock.Lock()
	defer lock.Unlock()

	if conflict, err := s.findConflict(ctx, req.Schedule, req.ClassroomID, class.TermID, id); err != nil {
		return nil, err
	} else if conflict != nil {
		return nil, appErrors.Clone(appErrors.ErrScheduleConflict,
			fmt.Sprintf("schedule conflicts with %s", conflict.ClassName))
	}

	class.Name = req.Name
	if class.Name == "" {
		generated, err := s.generateName(ctx, req.TeacherID, req.Year, req.Schedule)
		if err != nil {
			return nil, err
		}
		class.Name = generated
	}
	class.Year = req.Year
	class.TeacherID = req.TeacherID
	class.ClassroomID = req.ClassroomID
	class.Schedule = req.Schedule
	if req.CopyToNextTerm != nil {
		class.CopyToNextTerm = *req.CopyToNextTerm
	}

	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Delete deactivates a class. Its slots and detentions are untouched.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	return nil
}

// CopyToTerm clones every flagged class of the source term into the
// target term, skipping any clone whose schedule now conflicts.
func (s *ClassService) CopyToTerm(ctx context.Context, sourceTermID, targetTermID string) ([]models.Class, error) {
	if sourceTermID == targetTermID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "source and target terms must differ")
	}
	if _, err := s.terms.FindByID(ctx, targetTermID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target term")
	}

	classes, err := s.repo.ListActiveByTerm(ctx, sourceTermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list source classes")
	}

	var copied []models.Class
	for _, original := range classes {
		if !original.CopyToNextTerm {
			continue
		}

		lock := s.roomLock(original.ClassroomID, targetTermID)
		lock.Lock()
		conflict, err := s.findConflict(ctx, original.Schedule, original.ClassroomID, targetTermID, "")
		if err != nil {
			lock.Unlock()
			return nil, err
		}
		if conflict != nil {
			lock.Unlock()
			s.logger.Warn("skipping class copy due to schedule conflict",
				zap.String("class_id", original.ID), zap.String("conflicts_with", conflict.ClassName))
			continue
		}

		clone := original
		clone.ID = ""
		clone.TermID = targetTermID
		clone.IsActive = true
		clone.CreatedAt = time.Time{}
		if err := s.repo.Create(ctx, &clone); err != nil {
			lock.Unlock()
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to copy class")
		}
		lock.Unlock()
		copied = append(copied, clone)
	}

	return copied, nil
}

// Today returns the active classes of the current term that meet on the
// given date's weekday, for the daily overview.
func (s *ClassService) Today(ctx context.Context, now time.Time) ([]models.Class, error) {
	term, err := s.terms.FindCurrent(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current term is set")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current term")
	}

	classes, err := s.repo.ListActiveByTerm(ctx, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}

	weekday := int(now.Weekday())
	var today []models.Class
	for _, class := range classes {
		for _, entry := range class.Schedule {
			if entry.DayOfWeek == weekday {
				today = append(today, class)
				break
			}
		}
	}
	return today, nil
}

// findConflict compares the candidate schedule against every active class
// in the classroom and term, excluding excludeClassID, and returns the
// first overlapping interval found.
func (s *ClassService) findConflict(ctx context.Context, schedule []models.ScheduleEntry, classroomID, termID, excludeClassID string) (*models.ScheduleConflict, error) {
	existing, err := s.repo.ListActiveByClassroomTerm(ctx, classroomID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule conflicts")
	}

	for _, entry := range schedule {
		candidate, err := timetable.NewRange(entry.StartTime, entry.DurationMinutes)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}

		for _, class := range existing {
			if class.ID == excludeClassID {
				continue
			}
			for _, other := range class.Schedule {
				if other.DayOfWeek != entry.DayOfWeek {
					continue
				}
				theirs, err := timetable.NewRange(other.StartTime, other.DurationMinutes)
				if err != nil {
					s.logger.Warn("stored schedule entry is unparsable",
						zap.String("class_id", class.ID), zap.Error(err))
					continue
				}
				if candidate.Overlaps(theirs) {
					return &models.ScheduleConflict{
						ClassID:   class.ID,
						ClassName: class.Name,
						DayOfWeek: other.DayOfWeek,
						StartTime: other.StartTime,
						EndTime:   timetable.FormatClock(theirs.End),
					}, nil
				}
			}
		}
	}
	return nil, nil
}

var dayAbbrev = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// generateName builds "<teacher> <year> <day> <time>" from the first
// schedule entry, e.g. "J Smith Y9 Mon 4:00pm".
func (s *ClassService) generateName(ctx context.Context, teacherID, year string, schedule []models.ScheduleEntry) (string, error) {
	teacher, err := s.users.FindByID(ctx, teacherID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	primary := schedule[0]
	start, err := timetable.ParseClock(primary.StartTime)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	return fmt.Sprintf("%s %s %s %s", teacher.FullName, year, dayAbbrev[primary.DayOfWeek], formatClock12(start)), nil
}

// formatClock12 renders minutes since midnight as "h:mmam"/"h:mmpm".
func formatClock12(minutes int) string {
	hours := minutes / 60
	mins := minutes % 60
	period := "am"
	if hours >= 12 {
		period = "pm"
	}
	display := hours % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%d:%02d%s", display, mins, period)
}

// validateScheduleEntries applies the interval rules a struct tag cannot:
// parsable clocks and no self-overlap within the submitted schedule.
func validateScheduleEntries(schedule []models.ScheduleEntry) error {
	ranges := make([]timetable.Range, len(schedule))
	for i, entry := range schedule {
		r, err := timetable.NewRange(entry.StartTime, entry.DurationMinutes)
		if err != nil {
			return appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		ranges[i] = r
	}
	for i := range schedule {
		for j := i + 1; j < len(schedule); j++ {
			if schedule[i].DayOfWeek == schedule[j].DayOfWeek && ranges[i].Overlaps(ranges[j]) {
				return appErrors.Clone(appErrors.ErrValidation, "schedule entries overlap each other")
			}
		}
	}
	return nil
}
