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

type mockTermRepo struct {
	terms      map[string]models.Term
	names      map[string]bool
	classCount map[string]int
	current    string
	created    *models.Term
	deleted    []string
}

func newMockTermRepo() *mockTermRepo {
	return &mockTermRepo{terms: map[string]models.Term{}, names: map[string]bool{}, classCount: map[string]int{}}
}

func (m *mockTermRepo) List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error) {
	return nil, 0, nil
}

func (m *mockTermRepo) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if t, ok := m.terms[id]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTermRepo) FindCurrent(ctx context.Context) (*models.Term, error) {
	if t, ok := m.terms[m.current]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTermRepo) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	return m.names[name], nil
}

func (m *mockTermRepo) Create(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = "new-term"
	}
	m.terms[term.ID] = *term
	m.created = term
	return nil
}

func (m *mockTermRepo) Update(ctx context.Context, term *models.Term) error {
	m.terms[term.ID] = *term
	return nil
}

func (m *mockTermRepo) SetCurrent(ctx context.Context, id string) error {
	for key, t := range m.terms {
		t.IsCurrent = key == id
		m.terms[key] = t
	}
	m.current = id
	return nil
}

func (m *mockTermRepo) Delete(ctx context.Context, id string) error {
	delete(m.terms, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockTermRepo) CountClasses(ctx context.Context, id string) (int, error) {
	return m.classCount[id], nil
}

type mockStudentRollover struct {
	students []models.User
	years    map[string]string
	removed  []string
}

func (m *mockStudentRollover) ListActiveStudents(ctx context.Context) ([]models.User, error) {
	return m.students, nil
}

func (m *mockStudentRollover) UpdateYear(ctx context.Context, id, year string) error {
	if m.years == nil {
		m.years = map[string]string{}
	}
	m.years[id] = year
	return nil
}

func (m *mockStudentRollover) Delete(ctx context.Context, id string) error {
	m.removed = append(m.removed, id)
	return nil
}

func yearPtr(v string) *string { return &v }

// saturday is a valid week anchor for term start dates.
var saturday = time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

func TestTermCreateRequiresSaturdayStart(t *testing.T) {
	svc := NewTermService(newMockTermRepo(), &mockStudentRollover{}, nil, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateTermRequest{
		Name:      "Term 1 2026",
		Type:      models.TermTypeSchool,
		StartDate: saturday.AddDate(0, 0, 2),
	}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTermCreateDefaultsWeeksPerType(t *testing.T) {
	repo := newMockTermRepo()
	svc := NewTermService(repo, &mockStudentRollover{}, nil, validator.New(), zap.NewNop())

	term, err := svc.Create(context.Background(), CreateTermRequest{Name: "Term 1 2026", Type: models.TermTypeSchool, StartDate: saturday}, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSchoolTermWeeks, term.Weeks)

	holiday, err := svc.Create(context.Background(), CreateTermRequest{Name: "Summer 2026", Type: models.TermTypeHoliday, StartDate: saturday}, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultHolidayWeeks, holiday.Weeks)
}

func TestTermCreateRejectsDuplicateName(t *testing.T) {
	repo := newMockTermRepo()
	repo.names["Term 1 2026"] = true
	svc := NewTermService(repo, &mockStudentRollover{}, nil, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateTermRequest{Name: "Term 1 2026", Type: models.TermTypeSchool, StartDate: saturday}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTermActivateRollsStudentYears(t *testing.T) {
	repo := newMockTermRepo()
	repo.terms["t1"] = models.Term{ID: "t1", Name: "Term 1 2027", Type: models.TermTypeSchool, StartDate: saturday, Weeks: 10, IsFirstTermOfYear: true}
	students := &mockStudentRollover{students: []models.User{
		{ID: "a", FullName: "Ana", Year: yearPtr(models.YearY6)},
		{ID: "b", FullName: "Ben", Year: yearPtr(models.YearY10)},
		{ID: "c", FullName: "Cam", Year: yearPtr(models.YearY11)},
		{ID: "d", FullName: "Dee", Year: yearPtr(models.YearY12)},
		{ID: "e", FullName: "Eli", Year: yearPtr(models.YearY124U)},
		{ID: "f", FullName: "Fay", Year: nil},
	}}
	svc := NewTermService(repo, students, nil, validator.New(), zap.NewNop())

	activation, err := svc.Activate(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, activation.Term.IsCurrent)

	assert.Equal(t, models.YearY7, students.years["a"])
	assert.Equal(t, models.YearY11, students.years["b"])
	assert.Equal(t, models.YearY12, students.years["c"])
	assert.ElementsMatch(t, []string{"d", "e"}, students.removed)

	// Students without a year are skipped entirely.
	require.Len(t, activation.Rollover, 5)
	for _, result := range activation.Rollover {
		assert.Empty(t, result.Error)
		if result.StudentID == "d" || result.StudentID == "e" {
			assert.True(t, result.Graduated)
			assert.Nil(t, result.NewYear)
		}
	}
}

func TestTermReactivationDoesNotRollTwice(t *testing.T) {
	repo := newMockTermRepo()
	repo.terms["t1"] = models.Term{ID: "t1", Name: "Term 1 2027", IsFirstTermOfYear: true, IsCurrent: true}
	repo.current = "t1"
	students := &mockStudentRollover{students: []models.User{{ID: "a", FullName: "Ana", Year: yearPtr(models.YearY6)}}}
	svc := NewTermService(repo, students, nil, validator.New(), zap.NewNop())

	activation, err := svc.Activate(context.Background(), "t1")
	require.NoError(t, err)
	assert.Empty(t, activation.Rollover)
	assert.Empty(t, students.years)
}

func TestTermActivateNonFirstTermSkipsRollover(t *testing.T) {
	repo := newMockTermRepo()
	repo.terms["t2"] = models.Term{ID: "t2", Name: "Term 2 2027"}
	students := &mockStudentRollover{students: []models.User{{ID: "a", FullName: "Ana", Year: yearPtr(models.YearY6)}}}
	svc := NewTermService(repo, students, nil, validator.New(), zap.NewNop())

	activation, err := svc.Activate(context.Background(), "t2")
	require.NoError(t, err)
	assert.Empty(t, activation.Rollover)
	assert.Empty(t, students.years)
}

func TestTermDeleteGuards(t *testing.T) {
	repo := newMockTermRepo()
	repo.terms["current"] = models.Term{ID: "current", IsCurrent: true}
	repo.terms["busy"] = models.Term{ID: "busy"}
	repo.terms["idle"] = models.Term{ID: "idle"}
	repo.classCount["busy"] = 3
	svc := NewTermService(repo, &mockStudentRollover{}, nil, validator.New(), zap.NewNop())

	err := svc.Delete(context.Background(), "current")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCurrentTerm.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), "busy")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), "idle"))
	assert.Contains(t, repo.deleted, "idle")
}

func TestTermCurrentWeekClampsToTermRange(t *testing.T) {
	repo := newMockTermRepo()
	repo.terms["t1"] = models.Term{ID: "t1", StartDate: saturday, Weeks: 10, IsCurrent: true}
	repo.current = "t1"
	svc := NewTermService(repo, &mockStudentRollover{}, nil, validator.New(), zap.NewNop())

	_, week, err := svc.CurrentWeek(context.Background(), saturday.AddDate(0, 0, 16))
	require.NoError(t, err)
	assert.Equal(t, 3, week)

	_, week, err = svc.CurrentWeek(context.Background(), saturday.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Equal(t, 1, week)

	_, week, err = svc.CurrentWeek(context.Background(), saturday.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 10, week)
}

func TestTermUpdateKeepsTypeFixed(t *testing.T) {
	repo := newMockTermRepo()
	repo.terms["t1"] = models.Term{ID: "t1", Name: "Term 1 2026", Type: models.TermTypeSchool, StartDate: saturday, Weeks: 10}
	svc := NewTermService(repo, &mockStudentRollover{}, nil, validator.New(), zap.NewNop())

	updated, err := svc.Update(context.Background(), "t1", UpdateTermRequest{Name: "Term 1 2026 (rev)", StartDate: saturday, Weeks: 9})
	require.NoError(t, err)
	assert.Equal(t, models.TermTypeSchool, updated.Type)
	assert.Equal(t, 9, updated.Weeks)
}
