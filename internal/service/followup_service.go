package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/oakmont-tuition/omt-api/internal/models"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
)

type followupRepository interface {
	List(ctx context.Context, filter models.FollowupFilter) ([]models.Followup, int, error)
	FindByID(ctx context.Context, id string) (*models.Followup, error)
	Create(ctx context.Context, followup *models.Followup) error
	Update(ctx context.Context, followup *models.Followup) error
	Delete(ctx context.Context, id string) error
}

// CreateFollowupRequest describes payload for raising a followup.
type CreateFollowupRequest struct {
	Issue    string    `json:"issue" validate:"required"`
	Solution string    `json:"solution"`
	DueDate  time.Time `json:"due_date" validate:"required"`
}

// UpdateFollowupRequest updates mutable fields on a followup. Nil fields
// keep the existing values; toggling IsCompleted moves the completion
// timestamp with it.
type UpdateFollowupRequest struct {
	Issue       *string    `json:"issue"`
	Solution    *string    `json:"solution"`
	DueDate     *time.Time `json:"due_date"`
	IsCompleted *bool      `json:"is_completed"`
}

// FollowupService manages staff action items.
type FollowupService struct {
	repo      followupRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFollowupService creates a new followup service instance.
func NewFollowupService(repo followupRepository, validate *validator.Validate, logger *zap.Logger) *FollowupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FollowupService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated followups, soonest due first.
func (s *FollowupService) List(ctx context.Context, filter models.FollowupFilter) ([]models.Followup, *models.Pagination, error) {
	followups, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalErr(err, "failed to list followups")
	}
	return followups, listPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a followup by ID.
func (s *FollowupService) Get(ctx context.Context, id string) (*models.Followup, error) {
	followup, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "followup not found")
		}
		return nil, internalErr(err, "failed to load followup")
	}
	return followup, nil
}

// Create raises a new followup authored by the given user.
func (s *FollowupService) Create(ctx context.Context, createdBy string, req CreateFollowupRequest) (*models.Followup, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid followup payload")
	}

	followup := &models.Followup{
		Issue:     strings.TrimSpace(req.Issue),
		Solution:  req.Solution,
		DueDate:   req.DueDate,
		CreatedBy: createdBy,
	}
	if err := s.repo.Create(ctx, followup); err != nil {
		return nil, internalErr(err, "failed to create followup")
	}
	return followup, nil
}

// Update modifies a followup. Marking it complete stamps CompletedAt;
// reopening clears the stamp again.
func (s *FollowupService) Update(ctx context.Context, id string, req UpdateFollowupRequest) (*models.Followup, error) {
	followup, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "followup not found")
		}
		return nil, internalErr(err, "failed to load followup")
	}

	if req.Issue != nil {
		if strings.TrimSpace(*req.Issue) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "issue cannot be empty")
		}
		followup.Issue = strings.TrimSpace(*req.Issue)
	}
	if req.Solution != nil {
		followup.Solution = *req.Solution
	}
	if req.DueDate != nil {
		followup.DueDate = *req.DueDate
	}
	if req.IsCompleted != nil {
		followup.IsCompleted = *req.IsCompleted
		if *req.IsCompleted {
			now := time.Now().UTC()
			followup.CompletedAt = &now
		} else {
			followup.CompletedAt = nil
		}
	}

	if err := s.repo.Update(ctx, followup); err != nil {
		return nil, internalErr(err, "failed to update followup")
	}
	return followup, nil
}

// Complete marks a followup as done. Completing twice keeps the original
// timestamp.
func (s *FollowupService) Complete(ctx context.Context, id string) (*models.Followup, error) {
	followup, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "followup not found")
		}
		return nil, internalErr(err, "failed to load followup")
	}

	if followup.IsCompleted {
		return followup, nil
	}
	now := time.Now().UTC()
	followup.IsCompleted = true
	followup.CompletedAt = &now

	if err := s.repo.Update(ctx, followup); err != nil {
		return nil, internalErr(err, "failed to update followup")
	}
	return followup, nil
}

// Delete removes a followup.
func (s *FollowupService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "followup not found")
		}
		return internalErr(err, "failed to load followup")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return internalErr(err, "failed to delete followup")
	}
	return nil
}
