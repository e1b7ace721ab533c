package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oakmont-tuition/omt-api/internal/models"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
)

type mockProgressRepo struct {
	plans map[string]models.ProgressPlan
	terms map[string]models.Term
}

func newMockProgressRepo() *mockProgressRepo {
	return &mockProgressRepo{plans: map[string]models.ProgressPlan{}, terms: map[string]models.Term{}}
}

func (m *mockProgressRepo) detail(plan models.ProgressPlan) models.ProgressPlanDetail {
	term := m.terms[plan.TermID]
	return models.ProgressPlanDetail{ProgressPlan: plan, TermName: term.Name, TermType: term.Type}
}

func (m *mockProgressRepo) List(ctx context.Context, filter models.ProgressFilter) ([]models.ProgressPlanDetail, int, error) {
	var out []models.ProgressPlanDetail
	for _, plan := range m.plans {
		out = append(out, m.detail(plan))
	}
	return out, len(out), nil
}

func (m *mockProgressRepo) FindByID(ctx context.Context, id string) (*models.ProgressPlanDetail, error) {
	if plan, ok := m.plans[id]; ok {
		d := m.detail(plan)
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProgressRepo) Create(ctx context.Context, plan *models.ProgressPlan) error {
	if plan.ID == "" {
		plan.ID = "new-plan"
	}
	m.plans[plan.ID] = *plan
	return nil
}

func (m *mockProgressRepo) Update(ctx context.Context, plan *models.ProgressPlan) error {
	m.plans[plan.ID] = *plan
	return nil
}

func (m *mockProgressRepo) Delete(ctx context.Context, id string) error {
	delete(m.plans, id)
	return nil
}

func progressFixture() (*ProgressService, *mockProgressRepo) {
	repo := newMockProgressRepo()
	repo.terms["term-1"] = models.Term{ID: "term-1", Name: "Term 1 2026", Type: models.TermTypeSchool, Weeks: 10}
	terms := &mockTermRepo{terms: map[string]models.Term{
		"term-1": repo.terms["term-1"],
	}}
	svc := NewProgressService(repo, terms, validator.New(), zap.NewNop())
	return svc, repo
}

func TestProgressCreate(t *testing.T) {
	svc, repo := progressFixture()

	plan, err := svc.Create(context.Background(), CreateProgressRequest{
		Name:   "Y9 maths",
		TermID: "term-1",
		Year:   models.YearY9,
		WeeklyContent: models.WeekContents{
			{Week: 2, TopicIDs: []string{"t2"}},
			{Week: 1, TopicIDs: []string{"t1"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, plan.WeeklyContent, 2)
	// Entries are stored sorted by week.
	assert.Equal(t, 1, plan.WeeklyContent[0].Week)
	assert.Equal(t, 2, plan.WeeklyContent[1].Week)
	assert.Len(t, repo.plans, 1)
}

func TestProgressCreateRejectsWeekOutsideTerm(t *testing.T) {
	svc, _ := progressFixture()

	_, err := svc.Create(context.Background(), CreateProgressRequest{
		Name:          "Y9 maths",
		TermID:        "term-1",
		Year:          models.YearY9,
		WeeklyContent: models.WeekContents{{Week: 11}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestProgressCreateRejectsDuplicateWeeks(t *testing.T) {
	svc, _ := progressFixture()

	_, err := svc.Create(context.Background(), CreateProgressRequest{
		Name:          "Y9 maths",
		TermID:        "term-1",
		Year:          models.YearY9,
		WeeklyContent: models.WeekContents{{Week: 3}, {Week: 3}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestProgressCreateUnknownTerm(t *testing.T) {
	svc, _ := progressFixture()

	_, err := svc.Create(context.Background(), CreateProgressRequest{
		Name:   "Y9 maths",
		TermID: "term-404",
		Year:   models.YearY9,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestProgressUpsertWeekAddsEntry(t *testing.T) {
	svc, repo := progressFixture()
	repo.plans["p1"] = models.ProgressPlan{ID: "p1", Name: "Y9 maths", TermID: "term-1", Year: models.YearY9}

	comments := "introduced surds"
	plan, err := svc.UpsertWeek(context.Background(), "p1", 4, UpsertWeekRequest{
		TopicIDs: []string{"t1"},
		Comments: &comments,
	})
	require.NoError(t, err)
	require.Len(t, plan.WeeklyContent, 1)
	assert.Equal(t, 4, plan.WeeklyContent[0].Week)
	assert.Equal(t, "introduced surds", plan.WeeklyContent[0].Comments)
}

func TestProgressUpsertWeekUpdatesExistingEntry(t *testing.T) {
	svc, repo := progressFixture()
	assessmentID := "a1"
	repo.plans["p1"] = models.ProgressPlan{
		ID: "p1", Name: "Y9 maths", TermID: "term-1", Year: models.YearY9,
		WeeklyContent: models.WeekContents{{Week: 4, TopicIDs: []string{"t1"}, Comments: "surds"}},
	}

	plan, err := svc.UpsertWeek(context.Background(), "p1", 4, UpsertWeekRequest{AssessmentID: &assessmentID})
	require.NoError(t, err)
	require.Len(t, plan.WeeklyContent, 1)
	// Nil fields keep the existing values.
	assert.Equal(t, []string{"t1"}, plan.WeeklyContent[0].TopicIDs)
	assert.Equal(t, "surds", plan.WeeklyContent[0].Comments)
	require.NotNil(t, plan.WeeklyContent[0].AssessmentID)
	assert.Equal(t, "a1", *plan.WeeklyContent[0].AssessmentID)
}

func TestProgressUpsertWeekOutsideTerm(t *testing.T) {
	svc, repo := progressFixture()
	repo.plans["p1"] = models.ProgressPlan{ID: "p1", Name: "Y9 maths", TermID: "term-1", Year: models.YearY9}

	_, err := svc.UpsertWeek(context.Background(), "p1", 11, UpsertWeekRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
