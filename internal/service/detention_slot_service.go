package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/oakmont-tuition/omt-api/internal/models"
	"github.com/oakmont-tuition/omt-api/internal/repository"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
	"github.com/oakmont-tuition/omt-api/pkg/timetable"
)

type detentionSlotRepository interface {
	List(ctx context.Context, filter models.DetentionSlotFilter) ([]models.DetentionSlot, int, error)
	ListGrid(ctx context.Context, termID, classroomID string) ([]models.DetentionSlot, error)
	FindByID(ctx context.Context, id string) (*models.DetentionSlot, error)
	FindByCoordinate(ctx context.Context, termID, classroomID string, week int, date time.Time, startTime, endTime string) (*models.DetentionSlot, error)
	Create(ctx context.Context, slot *models.DetentionSlot) error
	CreateBatch(ctx context.Context, slots []models.DetentionSlot) error
	Update(ctx context.Context, slot *models.DetentionSlot) error
	Delete(ctx context.Context, id string) error
}

type slotClassroomReader interface {
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
}

type slotTermReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

// CreateSlotRequest creates one slot, or one per date when Dates is set.
// Capacity always follows the classroom.
type CreateSlotRequest struct {
	Date        *time.Time  `json:"date"`
	Dates       []time.Time `json:"dates"`
	StartTime   string      `json:"start_time" validate:"required"`
	EndTime     string      `json:"end_time" validate:"required"`
	ClassroomID string      `json:"classroom_id" validate:"required"`
}

// UpdateSlotRequest moves a slot to a new window or classroom.
type UpdateSlotRequest struct {
	Date        *time.Time `json:"date"`
	StartTime   string     `json:"start_time"`
	EndTime     string     `json:"end_time"`
	ClassroomID string     `json:"classroom_id"`
}

// ToggleSlotRequest enables or disables the slot at a grid coordinate.
type ToggleSlotRequest struct {
	models.SlotCoordinate
	Enable bool `json:"enable"`
}

// ToggleSlotResult reports what a toggle actually did; toggles are
// idempotent, so "created" and "deleted" are both false on a no-op.
type ToggleSlotResult struct {
	Created bool                  `json:"created"`
	Deleted bool                  `json:"deleted"`
	Slot    *models.DetentionSlot `json:"slot,omitempty"`
}

// SlotGridCell is one coordinate of the weekly toggle grid.
type SlotGridCell struct {
	Week        int    `json:"week"`
	DayOfWeek   int    `json:"day_of_week"`
	SlotNumber  int    `json:"slot_number"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Enabled     bool   `json:"enabled"`
	SlotID      string `json:"slot_id,omitempty"`
	Capacity    int    `json:"capacity,omitempty"`
	BookedCount int    `json:"booked_count"`
}

// DetentionSlotService manages the bookable slot inventory: explicit
// creation, coordinate toggles on the term grid, and the grid view.
type DetentionSlotService struct {
	repo       detentionSlotRepository
	classrooms slotClassroomReader
	terms      slotTermReader
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewDetentionSlotService creates a new detention slot service instance.
// The cache is optional; when present the grid view is served from it and
// invalidated on every slot mutation.
func NewDetentionSlotService(repo detentionSlotRepository, classrooms slotClassroomReader, terms slotTermReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *DetentionSlotService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetentionSlotService{repo: repo, classrooms: classrooms, terms: terms, cache: cache, validator: validate, logger: logger}
}

func slotGridCacheKey(termID, classroomID string) string {
	return "slots:grid:" + termID + ":" + classroomID
}

func (s *DetentionSlotService) invalidateGrid(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "slots:grid:*"); err != nil {
		s.logger.Warn("failed to invalidate slot grid cache", zap.Error(err))
	}
}

// List returns paginated slots.
func (s *DetentionSlotService) List(ctx context.Context, filter models.DetentionSlotFilter) ([]models.DetentionSlot, *models.Pagination, error) {
	slots, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list detention slots")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return slots, pagination, nil
}

// Get returns a slot by ID.
func (s *DetentionSlotService) Get(ctx context.Context, id string) (*models.DetentionSlot, error) {
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "detention slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load detention slot")
	}
	return slot, nil
}

// Create stores one slot, or a batch when Dates is provided. Batch
// creation is all-or-nothing.
func (s *DetentionSlotService) Create(ctx context.Context, req CreateSlotRequest, createdBy string) ([]models.DetentionSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	if err := validateWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	classroom, err := s.classrooms.FindByID(ctx, req.ClassroomID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}

	dates := req.Dates
	if len(dates) == 0 {
		if req.Date == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date or dates is required")
		}
		dates = []time.Time{*req.Date}
	}

	slots := make([]models.DetentionSlot, len(dates))
	for i, date := range dates {
		slots[i] = models.DetentionSlot{
			Date:        date,
			StartTime:   req.StartTime,
			EndTime:     req.EndTime,
			ClassroomID: req.ClassroomID,
			Capacity:    classroom.Capacity,
			CreatedBy:   createdBy,
		}
	}

	if len(slots) == 1 {
		if err := s.repo.Create(ctx, &slots[0]); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create detention slot")
		}
		s.invalidateGrid(ctx)
		return slots, nil
	}

	if err := s.repo.CreateBatch(ctx, slots); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create detention slots")
	}
	s.invalidateGrid(ctx)
	return slots, nil
}

// Update moves a slot. Capacity follows the classroom when it changes;
// booked seats are preserved.
func (s *DetentionSlotService) Update(ctx context.Context, id string, req UpdateSlotRequest) (*models.DetentionSlot, error) {
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "detention slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load detention slot")
	}

	if req.Date != nil {
		slot.Date = *req.Date
	}
	if req.StartTime != "" {
		slot.StartTime = req.StartTime
	}
	if req.EndTime != "" {
		slot.EndTime = req.EndTime
	}
	if err := validateWindow(slot.StartTime, slot.EndTime); err != nil {
		return nil, err
	}

	if req.ClassroomID != "" && req.ClassroomID != slot.ClassroomID {
		classroom, err := s.classrooms.FindByID(ctx, req.ClassroomID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
		}
		if classroom.Capacity < slot.BookedCount {
			return nil, appErrors.Clone(appErrors.ErrValidation, "classroom is smaller than the current booking count")
		}
		slot.ClassroomID = classroom.ID
		slot.Capacity = classroom.Capacity
	}

	if err := s.repo.Update(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update detention slot")
	}
	s.invalidateGrid(ctx)
	return slot, nil
}

// Delete removes a slot unless it holds bookings.
func (s *DetentionSlotService) Delete(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if err == nil {
		s.invalidateGrid(ctx)
		return nil
	}
	if err == sql.ErrNoRows {
		return appErrors.Clone(appErrors.ErrNotFound, "detention slot not found")
	}
	if errors.Is(err, repository.ErrSlotHasBookings) {
		return appErrors.Clone(appErrors.ErrSlotInUse, "cannot delete slot with active bookings")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete detention slot")
}

// Toggle enables or disables the slot at a grid coordinate. Enabling an
// existing slot and disabling a missing one are no-ops, so repeated
// toggles converge.
func (s *DetentionSlotService) Toggle(ctx context.Context, req ToggleSlotRequest, createdBy string) (*ToggleSlotResult, error) {
	if err := s.validator.Struct(req.SlotCoordinate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot coordinate")
	}

	term, err := s.terms.FindByID(ctx, req.TermID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	classroom, err := s.classrooms.FindByID(ctx, req.ClassroomID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	if req.Week > term.Weeks {
		return nil, appErrors.Clone(appErrors.ErrValidation, "week is beyond the end of the term")
	}

	resolved, err := timetable.ResolveSlot(timetable.TermKind(term.Type), term.StartDate, req.Week, req.DayOfWeek, req.SlotNumber)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	existing, err := s.repo.FindByCoordinate(ctx, term.ID, classroom.ID, req.Week, resolved.Date, resolved.Start, resolved.End)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up slot coordinate")
	}

	if req.Enable {
		if existing != nil {
			return &ToggleSlotResult{Slot: existing}, nil
		}
		week := req.Week
		slot := &models.DetentionSlot{
			Date:        resolved.Date,
			StartTime:   resolved.Start,
			EndTime:     resolved.End,
			ClassroomID: classroom.ID,
			TermID:      &term.ID,
			Week:        &week,
			Capacity:    classroom.Capacity,
			CreatedBy:   createdBy,
		}
		if err := s.repo.Create(ctx, slot); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create detention slot")
		}
		s.invalidateGrid(ctx)
		return &ToggleSlotResult{Created: true, Slot: slot}, nil
	}

	if existing == nil {
		return &ToggleSlotResult{}, nil
	}
	if err := s.repo.Delete(ctx, existing.ID); err != nil {
		if errors.Is(err, repository.ErrSlotHasBookings) {
			return nil, appErrors.Clone(appErrors.ErrSlotInUse, "cannot disable slot with active bookings")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete detention slot")
	}
	s.invalidateGrid(ctx)
	return &ToggleSlotResult{Deleted: true}, nil
}

// Grid renders every coordinate of a term+classroom with its enabled
// state, merged from the slots that actually exist.
func (s *DetentionSlotService) Grid(ctx context.Context, termID, classroomID string) ([]SlotGridCell, bool, error) {
	cacheKey := slotGridCacheKey(termID, classroomID)
	if s.cache != nil {
		var cached []SlotGridCell
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			s.logger.Warn("failed to read slot grid cache", zap.Error(err))
		} else if hit {
			return cached, true, nil
		}
	}

	term, err := s.terms.FindByID(ctx, termID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}

	slots, err := s.repo.ListGrid(ctx, termID, classroomID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list slots")
	}

	type key struct {
		date  string
		start string
	}
	existing := make(map[key]*models.DetentionSlot, len(slots))
	for i := range slots {
		existing[key{slots[i].Date.Format("2006-01-02"), slots[i].StartTime}] = &slots[i]
	}

	kind := timetable.TermKind(term.Type)
	perDay := timetable.SlotsPerDay(kind)

	var cells []SlotGridCell
	for week := 1; week <= term.Weeks; week++ {
		for weekday := 0; weekday < 7; weekday++ {
			for slotNumber := 0; slotNumber < perDay; slotNumber++ {
				resolved, err := timetable.ResolveSlot(kind, term.StartDate, week, weekday, slotNumber)
				if err != nil {
					return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve slot coordinate")
				}
				cell := SlotGridCell{
					Week:       week,
					DayOfWeek:  weekday,
					SlotNumber: slotNumber,
					Date:       resolved.Date.Format("2006-01-02"),
					StartTime:  resolved.Start,
					EndTime:    resolved.End,
				}
				if slot, ok := existing[key{cell.Date, cell.StartTime}]; ok {
					cell.Enabled = true
					cell.SlotID = slot.ID
					cell.Capacity = slot.Capacity
					cell.BookedCount = slot.BookedCount
				}
				cells = append(cells, cell)
			}
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, cells, 0); err != nil {
			s.logger.Warn("failed to cache slot grid", zap.Error(err))
		}
	}
	return cells, false, nil
}

// validateWindow checks both clocks parse and start precedes end.
func validateWindow(startTime, endTime string) error {
	start, err := timetable.ParseClock(startTime)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	end, err := timetable.ParseClock(endTime)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if start >= end {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	return nil
}
