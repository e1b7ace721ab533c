package service

import (
	"context"
	"database/sql"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oakmont-tuition/omt-api/internal/models"
	"github.com/oakmont-tuition/omt-api/internal/repository"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
)

type mockSlotRepo struct {
	slots       map[string]models.DetentionSlot
	nextID      int
	batch       []models.DetentionSlot
	withBooking map[string]bool
}

func newMockSlotRepo() *mockSlotRepo {
	return &mockSlotRepo{slots: map[string]models.DetentionSlot{}, withBooking: map[string]bool{}}
}

func (m *mockSlotRepo) List(ctx context.Context, filter models.DetentionSlotFilter) ([]models.DetentionSlot, int, error) {
	return nil, 0, nil
}

func (m *mockSlotRepo) ListGrid(ctx context.Context, termID, classroomID string) ([]models.DetentionSlot, error) {
	var list []models.DetentionSlot
	for _, s := range m.slots {
		if s.TermID != nil && *s.TermID == termID && s.ClassroomID == classroomID {
			list = append(list, s)
		}
	}
	return list, nil
}

func (m *mockSlotRepo) FindByID(ctx context.Context, id string) (*models.DetentionSlot, error) {
	if s, ok := m.slots[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSlotRepo) FindByCoordinate(ctx context.Context, termID, classroomID string, week int, date time.Time, startTime, endTime string) (*models.DetentionSlot, error) {
	for _, s := range m.slots {
		if s.TermID != nil && *s.TermID == termID && s.ClassroomID == classroomID &&
			s.Date.Equal(date) && s.StartTime == startTime && s.EndTime == endTime {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockSlotRepo) Create(ctx context.Context, slot *models.DetentionSlot) error {
	if slot.ID == "" {
		m.nextID++
		slot.ID = "slot-" + strconv.Itoa(m.nextID)
	}
	m.slots[slot.ID] = *slot
	return nil
}

func (m *mockSlotRepo) CreateBatch(ctx context.Context, slots []models.DetentionSlot) error {
	m.batch = slots
	for i := range slots {
		m.nextID++
		slots[i].ID = "slot-" + strconv.Itoa(m.nextID)
		m.slots[slots[i].ID] = slots[i]
	}
	return nil
}

func (m *mockSlotRepo) Update(ctx context.Context, slot *models.DetentionSlot) error {
	m.slots[slot.ID] = *slot
	return nil
}

func (m *mockSlotRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.slots[id]; !ok {
		return sql.ErrNoRows
	}
	if m.withBooking[id] {
		return repository.ErrSlotHasBookings
	}
	delete(m.slots, id)
	return nil
}

type mockClassroomReader struct {
	capacity int
}

func (m *mockClassroomReader) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	if id == "missing" {
		return nil, sql.ErrNoRows
	}
	return &models.Classroom{ID: id, Name: "Room A", Capacity: m.capacity}, nil
}

type mockSlotTermReader struct {
	term *models.Term
}

func (m *mockSlotTermReader) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if m.term == nil || m.term.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.term, nil
}

func slotFixture(weeks int) (*DetentionSlotService, *mockSlotRepo) {
	repo := newMockSlotRepo()
	terms := &mockSlotTermReader{term: &models.Term{ID: "t1", Type: models.TermTypeSchool, StartDate: saturday, Weeks: weeks}}
	svc := NewDetentionSlotService(repo, &mockClassroomReader{capacity: 4}, terms, nil, validator.New(), zap.NewNop())
	return svc, repo
}

func mondayWeek2Coordinate() models.SlotCoordinate {
	return models.SlotCoordinate{TermID: "t1", ClassroomID: "r1", Week: 2, DayOfWeek: 1, SlotNumber: 0}
}

func TestSlotToggleConverges(t *testing.T) {
	svc, repo := slotFixture(10)
	coord := mondayWeek2Coordinate()

	first, err := svc.Toggle(context.Background(), ToggleSlotRequest{SlotCoordinate: coord, Enable: true}, "admin")
	require.NoError(t, err)
	assert.True(t, first.Created)
	require.NotNil(t, first.Slot)
	assert.Equal(t, "16:00", first.Slot.StartTime)
	assert.Equal(t, "18:30", first.Slot.EndTime)
	assert.Equal(t, 4, first.Slot.Capacity)
	assert.Len(t, repo.slots, 1)

	// Enabling an already-enabled coordinate changes nothing.
	second, err := svc.Toggle(context.Background(), ToggleSlotRequest{SlotCoordinate: coord, Enable: true}, "admin")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Slot.ID, second.Slot.ID)
	assert.Len(t, repo.slots, 1)

	third, err := svc.Toggle(context.Background(), ToggleSlotRequest{SlotCoordinate: coord, Enable: false}, "admin")
	require.NoError(t, err)
	assert.True(t, third.Deleted)
	assert.Empty(t, repo.slots)

	fourth, err := svc.Toggle(context.Background(), ToggleSlotRequest{SlotCoordinate: coord, Enable: false}, "admin")
	require.NoError(t, err)
	assert.False(t, fourth.Deleted)
}

func TestSlotToggleResolvesSaturdayAnchoredDate(t *testing.T) {
	svc, _ := slotFixture(10)

	// Week 2 Monday of a term starting Saturday 2026-01-31.
	result, err := svc.Toggle(context.Background(), ToggleSlotRequest{SlotCoordinate: mondayWeek2Coordinate(), Enable: true}, "admin")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC), result.Slot.Date)
	require.NotNil(t, result.Slot.Week)
	assert.Equal(t, 2, *result.Slot.Week)
}

func TestSlotToggleRejectsWeekBeyondTerm(t *testing.T) {
	svc, _ := slotFixture(2)
	coord := mondayWeek2Coordinate()
	coord.Week = 3

	_, err := svc.Toggle(context.Background(), ToggleSlotRequest{SlotCoordinate: coord, Enable: true}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSlotToggleDisableWithBookingsFails(t *testing.T) {
	svc, repo := slotFixture(10)
	coord := mondayWeek2Coordinate()

	result, err := svc.Toggle(context.Background(), ToggleSlotRequest{SlotCoordinate: coord, Enable: true}, "admin")
	require.NoError(t, err)
	repo.withBooking[result.Slot.ID] = true

	_, err = svc.Toggle(context.Background(), ToggleSlotRequest{SlotCoordinate: coord, Enable: false}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotInUse.Code, appErrors.FromError(err).Code)
	assert.Len(t, repo.slots, 1)
}

func TestSlotCreateBatchUsesClassroomCapacity(t *testing.T) {
	svc, repo := slotFixture(10)

	dates := []time.Time{
		time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC),
	}
	slots, err := svc.Create(context.Background(), CreateSlotRequest{
		Dates: dates, StartTime: "16:00", EndTime: "18:30", ClassroomID: "r1",
	}, "admin")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Len(t, repo.batch, 2)
	for _, slot := range slots {
		assert.Equal(t, 4, slot.Capacity)
		assert.Equal(t, "admin", slot.CreatedBy)
	}
}

func TestSlotCreateRejectsInvertedWindow(t *testing.T) {
	svc, _ := slotFixture(10)
	date := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

	_, err := svc.Create(context.Background(), CreateSlotRequest{
		Date: &date, StartTime: "18:30", EndTime: "16:00", ClassroomID: "r1",
	}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSlotUpdateRejectsSmallerClassroom(t *testing.T) {
	repo := newMockSlotRepo()
	terms := &mockSlotTermReader{term: &models.Term{ID: "t1", Type: models.TermTypeSchool, StartDate: saturday, Weeks: 10}}
	svc := NewDetentionSlotService(repo, &mockClassroomReader{capacity: 2}, terms, nil, validator.New(), zap.NewNop())
	repo.slots["s1"] = models.DetentionSlot{
		ID: "s1", Date: saturday, StartTime: "16:00", EndTime: "18:30",
		ClassroomID: "r1", Capacity: 6, BookedCount: 3,
	}

	_, err := svc.Update(context.Background(), "s1", UpdateSlotRequest{ClassroomID: "r2"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, "r1", repo.slots["s1"].ClassroomID)
}

func TestSlotDeleteMapsBookingErrors(t *testing.T) {
	svc, repo := slotFixture(10)
	repo.slots["s1"] = models.DetentionSlot{ID: "s1"}
	repo.withBooking["s1"] = true

	err := svc.Delete(context.Background(), "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotInUse.Code, appErrors.FromError(err).Code)

	err = svc.Delete(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSlotGridMergesExistingSlots(t *testing.T) {
	svc, repo := slotFixture(1)
	termID := "t1"
	week := 1
	// Week 1 Monday, first window.
	repo.slots["s1"] = models.DetentionSlot{
		ID: "s1", Date: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
		StartTime: "16:00", EndTime: "18:30",
		ClassroomID: "r1", TermID: &termID, Week: &week,
		Capacity: 4, BookedCount: 2,
	}

	cells, cacheHit, err := svc.Grid(context.Background(), "t1", "r1")
	require.NoError(t, err)
	assert.False(t, cacheHit)
	// One week, seven days, two windows per school-term day.
	require.Len(t, cells, 14)

	var enabled []SlotGridCell
	for _, cell := range cells {
		if cell.Enabled {
			enabled = append(enabled, cell)
		}
	}
	require.Len(t, enabled, 1)
	assert.Equal(t, "s1", enabled[0].SlotID)
	assert.Equal(t, "2026-02-02", enabled[0].Date)
	assert.Equal(t, 1, enabled[0].DayOfWeek)
	assert.Equal(t, 4, enabled[0].Capacity)
	assert.Equal(t, 2, enabled[0].BookedCount)
}
