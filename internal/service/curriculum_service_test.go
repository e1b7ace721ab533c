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

type mockTopicRepo struct {
	topics  map[string]models.Topic
	listErr error
}

func newMockTopicRepo() *mockTopicRepo {
	return &mockTopicRepo{topics: map[string]models.Topic{}}
}

func (m *mockTopicRepo) List(ctx context.Context, filter models.CurriculumFilter) ([]models.Topic, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var out []models.Topic
	for _, topic := range m.topics {
		out = append(out, topic)
	}
	return out, len(out), nil
}

func (m *mockTopicRepo) FindByID(ctx context.Context, id string) (*models.Topic, error) {
	if topic, ok := m.topics[id]; ok {
		return &topic, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTopicRepo) Create(ctx context.Context, topic *models.Topic) error {
	if topic.ID == "" {
		topic.ID = "new-topic"
	}
	m.topics[topic.ID] = *topic
	return nil
}

func (m *mockTopicRepo) Update(ctx context.Context, topic *models.Topic) error {
	m.topics[topic.ID] = *topic
	return nil
}

func (m *mockTopicRepo) Delete(ctx context.Context, id string) error {
	delete(m.topics, id)
	return nil
}

type mockAssessmentRepo struct {
	assessments map[string]models.Assessment
}

func newMockAssessmentRepo() *mockAssessmentRepo {
	return &mockAssessmentRepo{assessments: map[string]models.Assessment{}}
}

func (m *mockAssessmentRepo) List(ctx context.Context, filter models.CurriculumFilter) ([]models.Assessment, int, error) {
	var out []models.Assessment
	for _, assessment := range m.assessments {
		out = append(out, assessment)
	}
	return out, len(out), nil
}

func (m *mockAssessmentRepo) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	if assessment, ok := m.assessments[id]; ok {
		return &assessment, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssessmentRepo) Create(ctx context.Context, assessment *models.Assessment) error {
	if assessment.ID == "" {
		assessment.ID = "new-assessment"
	}
	m.assessments[assessment.ID] = *assessment
	return nil
}

func (m *mockAssessmentRepo) Update(ctx context.Context, assessment *models.Assessment) error {
	m.assessments[assessment.ID] = *assessment
	return nil
}

func (m *mockAssessmentRepo) Delete(ctx context.Context, id string) error {
	delete(m.assessments, id)
	return nil
}

func newTestCurriculumService(topics *mockTopicRepo, assessments *mockAssessmentRepo) *CurriculumService {
	return NewCurriculumService(topics, assessments, validator.New(), zap.NewNop())
}

func TestCurriculumCreateTopic(t *testing.T) {
	topics := newMockTopicRepo()
	svc := newTestCurriculumService(topics, newMockAssessmentRepo())

	topic, err := svc.CreateTopic(context.Background(), "teacher-1", CreateTopicRequest{
		Name:      "  Quadratic equations ",
		Content:   "Completing the square",
		Year:      models.YearY10,
		TermLabel: models.TermLabelT2,
	})
	require.NoError(t, err)
	assert.Equal(t, "Quadratic equations", topic.Name)
	assert.Equal(t, "teacher-1", topic.CreatedBy)
	assert.Len(t, topics.topics, 1)
}

func TestCurriculumCreateTopicRejectsUnknownYear(t *testing.T) {
	svc := newTestCurriculumService(newMockTopicRepo(), newMockAssessmentRepo())

	_, err := svc.CreateTopic(context.Background(), "teacher-1", CreateTopicRequest{
		Name:      "Algebra",
		Year:      "Y13",
		TermLabel: models.TermLabelT1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCurriculumCreateTopicRejectsUnknownTermLabel(t *testing.T) {
	svc := newTestCurriculumService(newMockTopicRepo(), newMockAssessmentRepo())

	_, err := svc.CreateTopic(context.Background(), "teacher-1", CreateTopicRequest{
		Name:      "Algebra",
		Year:      models.YearY8,
		TermLabel: "T5",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCurriculumUpdateTopicKeepsContentWhenNil(t *testing.T) {
	topics := newMockTopicRepo()
	topics.topics["t1"] = models.Topic{ID: "t1", Name: "Algebra", Content: "Expanding brackets", Year: models.YearY8, TermLabel: models.TermLabelT1}
	svc := newTestCurriculumService(topics, newMockAssessmentRepo())

	topic, err := svc.UpdateTopic(context.Background(), "t1", UpdateTopicRequest{
		Name:      "Algebra II",
		Year:      models.YearY9,
		TermLabel: models.TermLabelT2,
	})
	require.NoError(t, err)
	assert.Equal(t, "Algebra II", topic.Name)
	assert.Equal(t, "Expanding brackets", topic.Content)
	assert.Equal(t, models.YearY9, topic.Year)
}

func TestCurriculumDeleteMissingTopic(t *testing.T) {
	svc := newTestCurriculumService(newMockTopicRepo(), newMockAssessmentRepo())

	err := svc.DeleteTopic(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCurriculumCreateAssessment(t *testing.T) {
	assessments := newMockAssessmentRepo()
	svc := newTestCurriculumService(newMockTopicRepo(), assessments)

	assessment, err := svc.CreateAssessment(context.Background(), "teacher-1", CreateAssessmentRequest{
		Name:      "Term test",
		Year:      models.YearY123U,
		TermLabel: models.TermLabelT4,
	})
	require.NoError(t, err)
	assert.Equal(t, models.YearY123U, assessment.Year)
	assert.Len(t, assessments.assessments, 1)
}
