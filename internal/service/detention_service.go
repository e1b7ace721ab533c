package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/oakmont-tuition/omt-api/internal/models"
	"github.com/oakmont-tuition/omt-api/internal/repository"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
)

type detentionRepository interface {
	List(ctx context.Context, filter models.DetentionFilter) ([]models.DetentionDetail, int, error)
	ListBookedForDate(ctx context.Context, day time.Time) ([]models.DetentionDetail, error)
	FindByID(ctx context.Context, id string) (*models.Detention, error)
	Create(ctx context.Context, detention *models.Detention) error
	Book(ctx context.Context, detention *models.Detention, newSlotID string) error
	Resolve(ctx context.Context, detention *models.Detention, releaseSlotID *string) (bool, error)
	Delete(ctx context.Context, detention *models.Detention) (bool, error)
}

type detentionSlotReader interface {
	FindByID(ctx context.Context, id string) (*models.DetentionSlot, error)
}

type detentionUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type detentionClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type detentionNotifier interface {
	Notify(ctx context.Context, notification models.Notification)
}

// AssignDetentionRequest assigns a detention to a student.
type AssignDetentionRequest struct {
	ClassID   string `json:"class_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
	Week      int    `json:"week" validate:"min=1"`
	Reason    string `json:"reason" validate:"required"`
}

// BookDetentionRequest books a detention onto a slot.
type BookDetentionRequest struct {
	SlotID string `json:"slot_id" validate:"required"`
}

// ResolveDetentionRequest records the outcome of a booked detention.
type ResolveDetentionRequest struct {
	CompletionStatus models.CompletionStatus `json:"completion_status" validate:"required"`
}

// DetentionService drives the detention lifecycle. Every transition that
// moves a reservation runs as one repository transaction so slot counters
// and detention state cannot drift apart.
type DetentionService struct {
	repo      detentionRepository
	slots     detentionSlotReader
	users     detentionUserReader
	classes   detentionClassReader
	notifier  detentionNotifier
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDetentionService creates a new detention service instance. The cache
// is optional; bookings move seat counters, so every transition drops the
// cached slot grids.
func NewDetentionService(repo detentionRepository, slots detentionSlotReader, users detentionUserReader, classes detentionClassReader, notifier detentionNotifier, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *DetentionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetentionService{
		repo:      repo,
		slots:     slots,
		users:     users,
		classes:   classes,
		notifier:  notifier,
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
}

func (s *DetentionService) invalidateGrid(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "slots:grid:*"); err != nil {
		s.logger.Warn("failed to invalidate slot grid cache", zap.Error(err))
	}
}

// List returns paginated detentions with joined display fields.
func (s *DetentionService) List(ctx context.Context, filter models.DetentionFilter) ([]models.DetentionDetail, *models.Pagination, error) {
	detentions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list detentions")
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
	return detentions, pagination, nil
}

// Today returns the booked detentions whose slots fall on the given day.
func (s *DetentionService) Today(ctx context.Context, now time.Time) ([]models.DetentionDetail, error) {
	detentions, err := s.repo.ListBookedForDate(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list today's detentions")
	}
	return detentions, nil
}

// Get returns a detention by ID.
func (s *DetentionService) Get(ctx context.Context, id string) (*models.Detention, error) {
	detention, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "detention not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load detention")
	}
	return detention, nil
}

// Assign creates a detention in the assigned state and notifies the student.
func (s *DetentionService) Assign(ctx context.Context, req AssignDetentionRequest, assignedBy string) (*models.Detention, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid detention payload")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	detention := &models.Detention{
		ClassID:    req.ClassID,
		StudentID:  req.StudentID,
		Week:       req.Week,
		Reason:     req.Reason,
		Status:     models.DetentionAssigned,
		AssignedBy: assignedBy,
	}

	if err := s.repo.Create(ctx, detention); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create detention")
	}

	s.notify(ctx, models.Notification{
		Kind:        models.NotificationDetentionAssigned,
		Recipient:   student.Email,
		StudentName: student.FullName,
		Subject:     "Detention assigned",
		Body:        fmt.Sprintf("A detention has been assigned for %s (week %d): %s. Please book a detention slot.", class.Name, req.Week, req.Reason),
	})

	return detention, nil
}

// Book places a detention onto a slot. Rebooking releases the previous
// reservation in the same transaction, so a full new slot leaves the old
// booking intact. AsStudent restricts booking to the caller's own detention.
func (s *DetentionService) Book(ctx context.Context, id string, req BookDetentionRequest, actorID string, asStudent bool) (*models.Detention, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	detention, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "detention not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load detention")
	}
	if asStudent && detention.StudentID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only book their own detentions")
	}
	if detention.Status == models.DetentionCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a completed detention cannot be booked")
	}

	slot, err := s.slots.FindByID(ctx, req.SlotID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "detention slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load detention slot")
	}
	if detention.BookedSlotID != nil && *detention.BookedSlotID == slot.ID {
		return detention, nil
	}

	if err := s.repo.Book(ctx, detention, slot.ID); err != nil {
		if errors.Is(err, repository.ErrSlotCapacityExhausted) {
			return nil, appErrors.Clone(appErrors.ErrSlotFull, "detention slot is full")
		}
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "detention slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to book detention")
	}
	s.invalidateGrid(ctx)

	if student, err := s.users.FindByID(ctx, detention.StudentID); err == nil {
		s.notify(ctx, models.Notification{
			Kind:        models.NotificationDetentionBooked,
			Recipient:   student.Email,
			StudentName: student.FullName,
			Subject:     "Detention booked",
			Body:        fmt.Sprintf("Your detention is booked for %s %s-%s.", slot.Date.Format("Mon 2 Jan"), slot.StartTime, slot.EndTime),
		})
	}

	return detention, nil
}

// Resolve records the session outcome of a booked detention:
//   - complete: detention is done; the slot reservation is kept as a record
//     of attendance and attempts increments.
//   - incomplete: the seat is released, the detention returns to assigned
//     for rebooking, and attempts increments.
//   - absent: as incomplete, but the no-show does not count as an attempt.
func (s *DetentionService) Resolve(ctx context.Context, id string, req ResolveDetentionRequest) (*models.Detention, error) {
	if !models.ValidCompletionStatus(req.CompletionStatus) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "completion_status must be complete, incomplete or absent")
	}

	detention, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "detention not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load detention")
	}
	if detention.Status != models.DetentionBooked {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only a booked detention can be resolved")
	}

	outcome := req.CompletionStatus
	detention.CompletionStatus = &outcome

	var releaseSlotID *string
	switch outcome {
	case models.CompletionComplete:
		detention.Status = models.DetentionCompleted
		detention.Attempts++
	case models.CompletionIncomplete:
		releaseSlotID = detention.BookedSlotID
		detention.Status = models.DetentionAssigned
		detention.BookedSlotID = nil
		detention.Attempts++
	case models.CompletionAbsent:
		releaseSlotID = detention.BookedSlotID
		detention.Status = models.DetentionAssigned
		detention.BookedSlotID = nil
	}

	underflow, err := s.repo.Resolve(ctx, detention, releaseSlotID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve detention")
	}
	if underflow {
		s.logger.Error("slot counter underflow on release",
			zap.String("detention_id", detention.ID),
			zap.Stringp("slot_id", releaseSlotID))
	}
	if releaseSlotID != nil {
		s.invalidateGrid(ctx)
	}

	if student, err := s.users.FindByID(ctx, detention.StudentID); err == nil {
		body := "Your detention session was marked " + string(outcome) + "."
		if detention.Status == models.DetentionAssigned {
			body += " Please book another detention slot."
		}
		s.notify(ctx, models.Notification{
			Kind:        models.NotificationDetentionResolved,
			Recipient:   student.Email,
			StudentName: student.FullName,
			Subject:     "Detention outcome recorded",
			Body:        body,
		})
	}

	return detention, nil
}

// Delete removes a detention, releasing its reservation when one is held.
func (s *DetentionService) Delete(ctx context.Context, id string) error {
	detention, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "detention not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load detention")
	}

	underflow, err := s.repo.Delete(ctx, detention)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete detention")
	}
	if underflow {
		s.logger.Error("slot counter underflow on release",
			zap.String("detention_id", detention.ID),
			zap.Stringp("slot_id", detention.BookedSlotID))
	}
	if detention.BookedSlotID != nil {
		s.invalidateGrid(ctx)
	}
	return nil
}

func (s *DetentionService) notify(ctx context.Context, notification models.Notification) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, notification)
}
