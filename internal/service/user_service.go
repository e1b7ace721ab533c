package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/oakmont-tuition/omt-api/internal/models"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateUserRequest represents payload for creating users. Year is
// required for students and rejected for other roles.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	FullName string          `json:"full_name" validate:"required"`
	Phone    *string         `json:"phone"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER STUDENT"`
	Year     *string         `json:"year"`
	Active   bool            `json:"active"`
	Password string          `json:"password" validate:"required,min=6"`
}

// UpdateUserRequest payload for updating users.
type UpdateUserRequest struct {
	FullName string          `json:"full_name" validate:"required"`
	Phone    *string         `json:"phone"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER STUDENT"`
	Year     *string         `json:"year"`
	Active   *bool           `json:"active"`
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns a page of users plus pagination metadata for the envelope.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalErr(err, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	pagination := &models.Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}

	return users, pagination, nil
}

// Get loads one user, mapping a missing row to a not-found error.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, internalErr(err, "failed to load user")
	}
	return user, nil
}

// Create registers an account. Emails are stored lowercased and must be
// unique; students must carry a valid year label.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest, actorID string, meta models.LoginRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}
	if err := validateYearForRole(req.Role, req.Year); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, internalErr(err, "failed to check email uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internalErr(err, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(req.Email),
		FullName:     req.FullName,
		Phone:        req.Phone,
		Role:         req.Role,
		Year:         req.Year,
		Active:       req.Active,
		PasswordHash: string(passwordHash),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, internalErr(err, "failed to create user")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"id": user.ID, "email": user.Email, "role": user.Role})
	s.audit(ctx, actorID, models.AuditActionUserCreate, user.ID, nil, newPayload, meta)

	return user, nil
}

// Update rewrites profile fields, re-checking the role/year pairing.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest, actorID string, meta models.LoginRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}
	if err := validateYearForRole(req.Role, req.Year); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, internalErr(err, "failed to load user")
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"role": user.Role, "year": user.Year, "active": user.Active})

	user.FullName = req.FullName
	user.Phone = req.Phone
	user.Role = req.Role
	user.Year = req.Year
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, internalErr(err, "failed to update user")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"role": user.Role, "year": user.Year, "active": user.Active})
	s.audit(ctx, actorID, models.AuditActionUserUpdate, user.ID, oldPayload, newPayload, meta)

	return user, nil
}

// Delete deactivates the account rather than removing the row.
func (s *UserService) Delete(ctx context.Context, id string, actorID string, meta models.LoginRequest) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return internalErr(err, "failed to load user")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return internalErr(err, "failed to delete user")
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"active": user.Active})
	newPayload, _ := json.Marshal(map[string]interface{}{"active": false})
	s.audit(ctx, actorID, models.AuditActionUserDelete, user.ID, oldPayload, newPayload, meta)

	return nil
}

// audit records a best-effort operation log row; failures are only logged.
func (s *UserService) audit(ctx context.Context, actorID, action, resourceID string, oldValues, newValues []byte, meta models.LoginRequest) {
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "users",
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", action), zap.Error(err))
	}
}

func validateYearForRole(role models.UserRole, year *string) error {
	if role == models.RoleStudent {
		if year == nil || *year == "" {
			return appErrors.Clone(appErrors.ErrValidation, "year is required for students")
		}
		if !validYearLabel(*year) {
			return appErrors.Clone(appErrors.ErrValidation, "unrecognised year label")
		}
		return nil
	}
	if year != nil && *year != "" {
		return appErrors.Clone(appErrors.ErrValidation, "year applies only to students")
	}
	return nil
}

func validYearLabel(year string) bool {
	if _, ok := models.NextYear[year]; ok {
		return true
	}
	return models.TerminalYear(year)
}
