package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oakmont-tuition/omt-api/internal/models"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
)

type mockClassRepo struct {
	classes map[string]models.Class
	created []models.Class
	updated *models.Class
}

func newMockClassRepo() *mockClassRepo {
	return &mockClassRepo{classes: map[string]models.Class{}}
}

func (m *mockClassRepo) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	return nil, 0, nil
}

func (m *mockClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) ListActiveByClassroomTerm(ctx context.Context, classroomID, termID string) ([]models.Class, error) {
	var list []models.Class
	for _, c := range m.classes {
		if c.ClassroomID == classroomID && c.TermID == termID && c.IsActive {
			list = append(list, c)
		}
	}
	return list, nil
}

func (m *mockClassRepo) ListActiveByTerm(ctx context.Context, termID string) ([]models.Class, error) {
	var list []models.Class
	for _, c := range m.classes {
		if c.TermID == termID && c.IsActive {
			list = append(list, c)
		}
	}
	return list, nil
}

func (m *mockClassRepo) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = "new-class"
	}
	m.classes[class.ID] = *class
	m.created = append(m.created, *class)
	return nil
}

func (m *mockClassRepo) Update(ctx context.Context, class *models.Class) error {
	m.classes[class.ID] = *class
	m.updated = class
	return nil
}

func (m *mockClassRepo) Deactivate(ctx context.Context, id string) error {
	if c, ok := m.classes[id]; ok {
		c.IsActive = false
		m.classes[id] = c
	}
	return nil
}

type mockClassUserReader struct{}

func (m *mockClassUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if id == "missing" {
		return nil, sql.ErrNoRows
	}
	return &models.User{ID: id, FullName: "J Smith", Role: models.RoleTeacher}, nil
}

type mockClassTermReader struct {
	current *models.Term
}

func (m *mockClassTermReader) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if id == "missing" {
		return nil, sql.ErrNoRows
	}
	return &models.Term{ID: id, Type: models.TermTypeSchool, Weeks: 10}, nil
}

func (m *mockClassTermReader) FindCurrent(ctx context.Context) (*models.Term, error) {
	if m.current == nil {
		return nil, sql.ErrNoRows
	}
	return m.current, nil
}

func classFixture() (*ClassService, *mockClassRepo) {
	repo := newMockClassRepo()
	svc := NewClassService(repo, &mockClassUserReader{}, &mockClassTermReader{}, validator.New(), zap.NewNop())
	return svc, repo
}

func mondayFourPM(duration int) []models.ScheduleEntry {
	return []models.ScheduleEntry{{DayOfWeek: 1, StartTime: "16:00", DurationMinutes: duration}}
}

func TestClassCreateRejectsOverlap(t *testing.T) {
	svc, repo := classFixture()
	repo.classes["c1"] = models.Class{
		ID: "c1", Name: "J Smith Y9 Mon 4:00pm", ClassroomID: "r1", TermID: "t1", IsActive: true,
		Schedule: mondayFourPM(90),
	}

	_, err := svc.Create(context.Background(), CreateClassRequest{
		Year: "Y10", TeacherID: "teach-2", ClassroomID: "r1", TermID: "t1",
		Schedule: []models.ScheduleEntry{{DayOfWeek: 1, StartTime: "17:00", DurationMinutes: 60}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrScheduleConflict.Code, appErrors.FromError(err).Code)
	assert.Contains(t, appErrors.FromError(err).Message, "J Smith Y9 Mon 4:00pm")
}

func TestClassCreateAllowsTouchingIntervals(t *testing.T) {
	svc, repo := classFixture()
	repo.classes["c1"] = models.Class{
		ID: "c1", Name: "Existing", ClassroomID: "r1", TermID: "t1", IsActive: true,
		Schedule: mondayFourPM(90),
	}

	// 17:30 starts exactly where the 16:00+90m class ends.
	class, err := svc.Create(context.Background(), CreateClassRequest{
		Year: "Y10", TeacherID: "teach-2", ClassroomID: "r1", TermID: "t1",
		Schedule: []models.ScheduleEntry{{DayOfWeek: 1, StartTime: "17:30", DurationMinutes: 60}},
	})
	require.NoError(t, err)
	assert.True(t, class.IsActive)
}

func TestClassCreateIgnoresOtherRoomsAndDays(t *testing.T) {
	svc, repo := classFixture()
	repo.classes["other-room"] = models.Class{ID: "other-room", ClassroomID: "r2", TermID: "t1", IsActive: true, Schedule: mondayFourPM(90)}
	repo.classes["other-day"] = models.Class{ID: "other-day", ClassroomID: "r1", TermID: "t1", IsActive: true,
		Schedule: []models.ScheduleEntry{{DayOfWeek: 2, StartTime: "16:00", DurationMinutes: 90}}}

	_, err := svc.Create(context.Background(), CreateClassRequest{
		Year: "Y10", TeacherID: "teach-2", ClassroomID: "r1", TermID: "t1",
		Schedule: mondayFourPM(90),
	})
	require.NoError(t, err)
}

func TestClassCreateGeneratesName(t *testing.T) {
	svc, _ := classFixture()

	class, err := svc.Create(context.Background(), CreateClassRequest{
		Year: "Y9", TeacherID: "teach-1", ClassroomID: "r1", TermID: "t1",
		Schedule: mondayFourPM(90),
	})
	require.NoError(t, err)
	assert.Equal(t, "J Smith Y9 Mon 4:00pm", class.Name)
}

func TestClassCreateRejectsSelfOverlappingSchedule(t *testing.T) {
	svc, _ := classFixture()

	_, err := svc.Create(context.Background(), CreateClassRequest{
		Year: "Y9", TeacherID: "teach-1", ClassroomID: "r1", TermID: "t1",
		Schedule: []models.ScheduleEntry{
			{DayOfWeek: 1, StartTime: "16:00", DurationMinutes: 90},
			{DayOfWeek: 1, StartTime: "16:30", DurationMinutes: 60},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClassUpdateExcludesItselfFromConflictCheck(t *testing.T) {
	svc, repo := classFixture()
	repo.classes["c1"] = models.Class{
		ID: "c1", Name: "Existing", Year: "Y9", TeacherID: "teach-1", ClassroomID: "r1", TermID: "t1", IsActive: true,
		Schedule: mondayFourPM(90),
	}

	updated, err := svc.Update(context.Background(), "c1", UpdateClassRequest{
		Name: "Existing", Year: "Y9", TeacherID: "teach-1", ClassroomID: "r1",
		Schedule: []models.ScheduleEntry{{DayOfWeek: 1, StartTime: "16:30", DurationMinutes: 90}},
	})
	require.NoError(t, err)
	assert.Equal(t, "16:30", updated.Schedule[0].StartTime)
}

func TestClassCopyToTermSkipsConflicts(t *testing.T) {
	svc, repo := classFixture()
	repo.classes["c1"] = models.Class{ID: "c1", Name: "Carried", ClassroomID: "r1", TermID: "t1", IsActive: true,
		CopyToNextTerm: true, Schedule: mondayFourPM(90)}
	repo.classes["c2"] = models.Class{ID: "c2", Name: "Left behind", ClassroomID: "r2", TermID: "t1", IsActive: true,
		CopyToNextTerm: false, Schedule: mondayFourPM(90)}
	repo.classes["blocker"] = models.Class{ID: "blocker", Name: "Blocker", ClassroomID: "r3", TermID: "t2", IsActive: true,
		Schedule: mondayFourPM(90)}
	repo.classes["c3"] = models.Class{ID: "c3", Name: "Collides", ClassroomID: "r3", TermID: "t1", IsActive: true,
		CopyToNextTerm: true, Schedule: mondayFourPM(90)}

	copied, err := svc.CopyToTerm(context.Background(), "t1", "t2")
	require.NoError(t, err)
	require.Len(t, copied, 1)
	assert.Equal(t, "Carried", copied[0].Name)
	assert.Equal(t, "t2", copied[0].TermID)
	assert.NotEqual(t, "c1", copied[0].ID)
}

func TestClassCopyToTermRejectsSameTerm(t *testing.T) {
	svc, _ := classFixture()
	_, err := svc.CopyToTerm(context.Background(), "t1", "t1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClassTodayFiltersByWeekday(t *testing.T) {
	repo := newMockClassRepo()
	terms := &mockClassTermReader{current: &models.Term{ID: "t1", Type: models.TermTypeSchool, Weeks: 10, IsCurrent: true}}
	svc := NewClassService(repo, &mockClassUserReader{}, terms, validator.New(), zap.NewNop())

	repo.classes["mon"] = models.Class{ID: "mon", TermID: "t1", IsActive: true, Schedule: mondayFourPM(90)}
	repo.classes["tue"] = models.Class{ID: "tue", TermID: "t1", IsActive: true,
		Schedule: []models.ScheduleEntry{{DayOfWeek: 2, StartTime: "16:00", DurationMinutes: 90}}}

	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	require.Equal(t, time.Monday, monday.Weekday())

	today, err := svc.Today(context.Background(), monday)
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.Equal(t, "mon", today[0].ID)
}

func TestClassDeleteDeactivates(t *testing.T) {
	svc, repo := classFixture()
	repo.classes["c1"] = models.Class{ID: "c1", IsActive: true}

	require.NoError(t, svc.Delete(context.Background(), "c1"))
	assert.False(t, repo.classes["c1"].IsActive)
}
