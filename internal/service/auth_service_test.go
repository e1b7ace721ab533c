package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/oakmont-tuition/omt-api/internal/models"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
)

type mockAuthRepo struct {
	user             *models.User
	findByEmailErr   error
	findByIDErr      error
	sessions         map[string]*models.RefreshToken
	findSessionErr   error
	createSessionErr error
	revokeErr        error
	revokeAllErr     error
	passwordErr      error
	auditLogs        []*models.AuditLog
	lastLoginSet     bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	return m.user, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	return m.user, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginSet = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.passwordErr != nil {
		return m.passwordErr
	}
	if m.user != nil && m.user.ID == id {
		m.user.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	return m.revokeAllErr
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createSessionErr != nil {
		return m.createSessionErr
	}
	if m.sessions == nil {
		m.sessions = make(map[string]*models.RefreshToken)
	}
	m.sessions[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if m.findSessionErr != nil {
		return nil, m.findSessionErr
	}
	if rt, ok := m.sessions[token]; ok {
		return rt, nil
	}
	return nil, errors.New("not found")
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	if m.revokeErr != nil {
		return m.revokeErr
	}
	for _, rt := range m.sessions {
		if rt.ID == id {
			rt.Revoked = true
			rt.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
	})
}

func hashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := &mockAuthRepo{user: &models.User{
		ID: "123", Email: "user@example.com",
		PasswordHash: hashPassword(t, "password"),
		Active:       true, Role: models.RoleAdmin,
	}}
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.True(t, repo.lastLoginSet)
	assert.NotEmpty(t, repo.sessions)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := &mockAuthRepo{user: &models.User{
		ID: "123", Email: "user@example.com",
		PasswordHash: hashPassword(t, "password"),
		Active:       true, Role: models.RoleAdmin,
	}}
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := &mockAuthRepo{user: &models.User{
		ID: "123", Email: "user@example.com",
		PasswordHash: hashPassword(t, "password"),
		Active:       false,
	}}
	svc := newTestAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: "hash", Active: true, Role: models.RoleAdmin}
	repo := &mockAuthRepo{
		user: user,
		sessions: map[string]*models.RefreshToken{
			"token": {ID: "rt1", UserID: user.ID, Token: "token", ExpiresAt: time.Now().Add(time.Hour)},
		},
	}
	svc := newTestAuthService(repo)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.sessions["token"].Revoked)
}

func TestAuthServiceRefreshExpiredToken(t *testing.T) {
	user := &models.User{ID: "u1", Email: "user@example.com", Active: true, Role: models.RoleAdmin}
	repo := &mockAuthRepo{
		user: user,
		sessions: map[string]*models.RefreshToken{
			"stale": {ID: "rt1", UserID: user.ID, Token: "stale", ExpiresAt: time.Now().Add(-time.Minute)},
		},
	}
	svc := newTestAuthService(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
}

func TestAuthServiceChangePassword(t *testing.T) {
	oldHash := hashPassword(t, "old")
	repo := &mockAuthRepo{user: &models.User{ID: "u1", PasswordHash: oldHash, Active: true}}
	svc := newTestAuthService(repo)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "old", NewPassword: "newpassword"})
	require.NoError(t, err)
	assert.NotEqual(t, oldHash, repo.user.PasswordHash)
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{})
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleAdmin}

	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}
