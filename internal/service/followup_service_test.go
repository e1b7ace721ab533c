package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oakmont-tuition/omt-api/internal/models"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
)

type mockFollowupRepo struct {
	followups map[string]models.Followup
	findErr   error
}

func newMockFollowupRepo() *mockFollowupRepo {
	return &mockFollowupRepo{followups: map[string]models.Followup{}}
}

func (m *mockFollowupRepo) List(ctx context.Context, filter models.FollowupFilter) ([]models.Followup, int, error) {
	var out []models.Followup
	for _, followup := range m.followups {
		if filter.IsCompleted != nil && followup.IsCompleted != *filter.IsCompleted {
			continue
		}
		out = append(out, followup)
	}
	return out, len(out), nil
}

func (m *mockFollowupRepo) FindByID(ctx context.Context, id string) (*models.Followup, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if followup, ok := m.followups[id]; ok {
		return &followup, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFollowupRepo) Create(ctx context.Context, followup *models.Followup) error {
	if followup.ID == "" {
		followup.ID = "new-followup"
	}
	m.followups[followup.ID] = *followup
	return nil
}

func (m *mockFollowupRepo) Update(ctx context.Context, followup *models.Followup) error {
	m.followups[followup.ID] = *followup
	return nil
}

func (m *mockFollowupRepo) Delete(ctx context.Context, id string) error {
	delete(m.followups, id)
	return nil
}

func newTestFollowupService(repo *mockFollowupRepo) *FollowupService {
	return NewFollowupService(repo, validator.New(), zap.NewNop())
}

func TestFollowupCreate(t *testing.T) {
	repo := newMockFollowupRepo()
	svc := newTestFollowupService(repo)

	due := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	followup, err := svc.Create(context.Background(), "admin-1", CreateFollowupRequest{
		Issue:   " Chase Y9 homework records ",
		DueDate: due,
	})
	require.NoError(t, err)
	assert.Equal(t, "Chase Y9 homework records", followup.Issue)
	assert.Equal(t, "admin-1", followup.CreatedBy)
	assert.False(t, followup.IsCompleted)
	assert.Nil(t, followup.CompletedAt)
}

func TestFollowupCreateRequiresDueDate(t *testing.T) {
	svc := newTestFollowupService(newMockFollowupRepo())

	_, err := svc.Create(context.Background(), "admin-1", CreateFollowupRequest{Issue: "Chase records"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFollowupCompleteStampsTimestamp(t *testing.T) {
	repo := newMockFollowupRepo()
	repo.followups["f1"] = models.Followup{ID: "f1", Issue: "Chase records", DueDate: time.Now()}
	svc := newTestFollowupService(repo)

	followup, err := svc.Complete(context.Background(), "f1")
	require.NoError(t, err)
	assert.True(t, followup.IsCompleted)
	require.NotNil(t, followup.CompletedAt)

	// Completing again keeps the original timestamp.
	first := *followup.CompletedAt
	again, err := svc.Complete(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, first, *again.CompletedAt)
}

func TestFollowupReopenClearsTimestamp(t *testing.T) {
	repo := newMockFollowupRepo()
	done := time.Now().UTC()
	repo.followups["f1"] = models.Followup{ID: "f1", Issue: "Chase records", DueDate: time.Now(), IsCompleted: true, CompletedAt: &done}
	svc := newTestFollowupService(repo)

	reopened := false
	followup, err := svc.Update(context.Background(), "f1", UpdateFollowupRequest{IsCompleted: &reopened})
	require.NoError(t, err)
	assert.False(t, followup.IsCompleted)
	assert.Nil(t, followup.CompletedAt)
}

func TestFollowupUpdateRejectsBlankIssue(t *testing.T) {
	repo := newMockFollowupRepo()
	repo.followups["f1"] = models.Followup{ID: "f1", Issue: "Chase records", DueDate: time.Now()}
	svc := newTestFollowupService(repo)

	blank := "  "
	_, err := svc.Update(context.Background(), "f1", UpdateFollowupRequest{Issue: &blank})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFollowupStoreOutageIsRetryable(t *testing.T) {
	repo := newMockFollowupRepo()
	repo.findErr = fmt.Errorf("load followup: %w", driver.ErrBadConn)
	svc := newTestFollowupService(repo)

	_, err := svc.Get(context.Background(), "f1")
	require.Error(t, err)
	got := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrStoreUnavailable.Code, got.Code)
	assert.Equal(t, appErrors.ErrStoreUnavailable.Status, got.Status)
}
