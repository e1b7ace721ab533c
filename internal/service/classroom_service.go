package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/oakmont-tuition/omt-api/internal/models"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
)

type classroomRepository interface {
	List(ctx context.Context, filter models.ClassroomFilter) ([]models.Classroom, int, error)
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
	Create(ctx context.Context, classroom *models.Classroom) error
	Update(ctx context.Context, classroom *models.Classroom) error
	Delete(ctx context.Context, id string) error
	CountSlots(ctx context.Context, id string) (int, error)
}

// CreateClassroomRequest describes payload for creating classrooms.
// Capacity doubles as the seat count for detention slots held in the room.
type CreateClassroomRequest struct {
	Name     string `json:"name" validate:"required"`
	Capacity int    `json:"capacity" validate:"required,min=1"`
}

// UpdateClassroomRequest updates mutable fields on a classroom.
type UpdateClassroomRequest struct {
	Name     string `json:"name" validate:"required"`
	Capacity int    `json:"capacity" validate:"required,min=1"`
	IsActive *bool  `json:"is_active"`
}

// ClassroomService manages classrooms.
type ClassroomService struct {
	repo      classroomRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassroomService creates a new classroom service instance.
func NewClassroomService(repo classroomRepository, validate *validator.Validate, logger *zap.Logger) *ClassroomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassroomService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated classrooms.
func (s *ClassroomService) List(ctx context.Context, filter models.ClassroomFilter) ([]models.Classroom, *models.Pagination, error) {
	classrooms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classrooms")
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
	return classrooms, pagination, nil
}

// Get returns a classroom by ID.
func (s *ClassroomService) Get(ctx context.Context, id string) (*models.Classroom, error) {
	classroom, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	return classroom, nil
}

// Create adds a new classroom.
func (s *ClassroomService) Create(ctx context.Context, req CreateClassroomRequest) (*models.Classroom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}

	classroom := &models.Classroom{
		Name:     req.Name,
		Capacity: req.Capacity,
		IsActive: true,
	}
	if err := s.repo.Create(ctx, classroom); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create classroom")
	}
	return classroom, nil
}

// Update modifies a classroom. Shrinking capacity never touches existing
// slots; they keep the capacity they were created with.
func (s *ClassroomService) Update(ctx context.Context, id string, req UpdateClassroomRequest) (*models.Classroom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}

	classroom, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}

	classroom.Name = req.Name
	classroom.Capacity = req.Capacity
	if req.IsActive != nil {
		classroom.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, classroom); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update classroom")
	}
	return classroom, nil
}

// Delete removes a classroom that has no detention slots.
func (s *ClassroomService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}

	count, err := s.repo.CountSlots(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check classroom dependencies")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "classroom has detention slots associated")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete classroom")
	}
	return nil
}
