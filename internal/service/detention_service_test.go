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
	"github.com/oakmont-tuition/omt-api/internal/repository"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
)

// mockDetentionRepo mirrors the transactional repository: Book and Resolve
// move seat counts and detention state together or fail leaving both intact.
type mockDetentionRepo struct {
	detentions map[string]models.Detention
	capacity   map[string]int
	booked     map[string]int
	released   []string
	bookCalls  int
	deleted    []string
}

func newMockDetentionRepo() *mockDetentionRepo {
	return &mockDetentionRepo{
		detentions: map[string]models.Detention{},
		capacity:   map[string]int{},
		booked:     map[string]int{},
	}
}

func (m *mockDetentionRepo) List(ctx context.Context, filter models.DetentionFilter) ([]models.DetentionDetail, int, error) {
	return nil, 0, nil
}

func (m *mockDetentionRepo) ListBookedForDate(ctx context.Context, day time.Time) ([]models.DetentionDetail, error) {
	return nil, nil
}

func (m *mockDetentionRepo) FindByID(ctx context.Context, id string) (*models.Detention, error) {
	if d, ok := m.detentions[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDetentionRepo) Create(ctx context.Context, detention *models.Detention) error {
	if detention.ID == "" {
		detention.ID = "new-detention"
	}
	m.detentions[detention.ID] = *detention
	return nil
}

func (m *mockDetentionRepo) Book(ctx context.Context, detention *models.Detention, newSlotID string) error {
	m.bookCalls++
	if _, ok := m.capacity[newSlotID]; !ok {
		return sql.ErrNoRows
	}
	if m.booked[newSlotID] >= m.capacity[newSlotID] {
		return repository.ErrSlotCapacityExhausted
	}
	if detention.BookedSlotID != nil && *detention.BookedSlotID != newSlotID {
		m.booked[*detention.BookedSlotID]--
		m.released = append(m.released, *detention.BookedSlotID)
	}
	m.booked[newSlotID]++
	detention.Status = models.DetentionBooked
	detention.BookedSlotID = &newSlotID
	m.detentions[detention.ID] = *detention
	return nil
}

func (m *mockDetentionRepo) Resolve(ctx context.Context, detention *models.Detention, releaseSlotID *string) (bool, error) {
	var underflow bool
	if releaseSlotID != nil {
		if m.booked[*releaseSlotID] == 0 {
			underflow = true
		} else {
			m.booked[*releaseSlotID]--
		}
		m.released = append(m.released, *releaseSlotID)
	}
	m.detentions[detention.ID] = *detention
	return underflow, nil
}

func (m *mockDetentionRepo) Delete(ctx context.Context, detention *models.Detention) (bool, error) {
	var underflow bool
	if detention.BookedSlotID != nil {
		if m.booked[*detention.BookedSlotID] == 0 {
			underflow = true
		} else {
			m.booked[*detention.BookedSlotID]--
		}
		m.released = append(m.released, *detention.BookedSlotID)
	}
	delete(m.detentions, detention.ID)
	m.deleted = append(m.deleted, detention.ID)
	return underflow, nil
}

type mockSlotReader struct {
	slots map[string]*models.DetentionSlot
}

func (m *mockSlotReader) FindByID(ctx context.Context, id string) (*models.DetentionSlot, error) {
	if s, ok := m.slots[id]; ok {
		copy := *s
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

type mockUserReader struct {
	users map[string]*models.User
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type mockDetentionClassReader struct{}

func (m *mockDetentionClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if id == "missing" {
		return nil, sql.ErrNoRows
	}
	return &models.Class{ID: id, Name: "J Smith Y9 Mon 4:00pm"}, nil
}

type mockNotifier struct {
	sent []models.Notification
}

func (m *mockNotifier) Notify(ctx context.Context, notification models.Notification) {
	m.sent = append(m.sent, notification)
}

func detentionFixture() (*DetentionService, *mockDetentionRepo, *mockNotifier) {
	repo := newMockDetentionRepo()
	repo.capacity["slot-1"] = 2
	repo.capacity["slot-2"] = 2

	slots := &mockSlotReader{slots: map[string]*models.DetentionSlot{
		"slot-1": {ID: "slot-1", Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), StartTime: "16:00", EndTime: "18:30", Capacity: 2},
		"slot-2": {ID: "slot-2", Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), StartTime: "18:30", EndTime: "21:00", Capacity: 2},
	}}
	users := &mockUserReader{users: map[string]*models.User{
		"s1": {ID: "s1", Email: "s1@example.com", FullName: "Student One", Role: models.RoleStudent},
		"s2": {ID: "s2", Email: "s2@example.com", FullName: "Student Two", Role: models.RoleStudent},
		"s3": {ID: "s3", Email: "s3@example.com", FullName: "Student Three", Role: models.RoleStudent},
	}}
	notifier := &mockNotifier{}
	svc := NewDetentionService(repo, slots, users, &mockDetentionClassReader{}, notifier, nil, validator.New(), zap.NewNop())
	return svc, repo, notifier
}

func assignedDetention(id, studentID string) models.Detention {
	return models.Detention{ID: id, ClassID: "c1", StudentID: studentID, Week: 3, Reason: "missing homework", Status: models.DetentionAssigned}
}

func TestDetentionAssignNotifiesStudent(t *testing.T) {
	svc, repo, notifier := detentionFixture()

	detention, err := svc.Assign(context.Background(), AssignDetentionRequest{ClassID: "c1", StudentID: "s1", Week: 3, Reason: "missing homework"}, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.DetentionAssigned, detention.Status)
	assert.Zero(t, detention.Attempts)
	assert.Contains(t, repo.detentions, detention.ID)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, models.NotificationDetentionAssigned, notifier.sent[0].Kind)
	assert.Equal(t, "s1@example.com", notifier.sent[0].Recipient)
}

func TestDetentionBookingFillsSlotToCapacity(t *testing.T) {
	svc, repo, _ := detentionFixture()
	repo.detentions["d1"] = assignedDetention("d1", "s1")
	repo.detentions["d2"] = assignedDetention("d2", "s2")
	repo.detentions["d3"] = assignedDetention("d3", "s3")

	_, err := svc.Book(context.Background(), "d1", BookDetentionRequest{SlotID: "slot-1"}, "admin", false)
	require.NoError(t, err)
	_, err = svc.Book(context.Background(), "d2", BookDetentionRequest{SlotID: "slot-1"}, "admin", false)
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), "d3", BookDetentionRequest{SlotID: "slot-1"}, "admin", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotFull.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 2, repo.booked["slot-1"])
	assert.Equal(t, models.DetentionAssigned, repo.detentions["d3"].Status)
}

func TestDetentionRebookMovesReservation(t *testing.T) {
	svc, repo, _ := detentionFixture()
	repo.detentions["d1"] = assignedDetention("d1", "s1")

	_, err := svc.Book(context.Background(), "d1", BookDetentionRequest{SlotID: "slot-1"}, "admin", false)
	require.NoError(t, err)

	detention, err := svc.Book(context.Background(), "d1", BookDetentionRequest{SlotID: "slot-2"}, "admin", false)
	require.NoError(t, err)
	assert.Equal(t, "slot-2", *detention.BookedSlotID)
	assert.Equal(t, 0, repo.booked["slot-1"])
	assert.Equal(t, 1, repo.booked["slot-2"])
	assert.Contains(t, repo.released, "slot-1")
}

func TestDetentionRebookSameSlotIsNoOp(t *testing.T) {
	svc, repo, _ := detentionFixture()
	repo.detentions["d1"] = assignedDetention("d1", "s1")

	_, err := svc.Book(context.Background(), "d1", BookDetentionRequest{SlotID: "slot-1"}, "admin", false)
	require.NoError(t, err)
	calls := repo.bookCalls

	detention, err := svc.Book(context.Background(), "d1", BookDetentionRequest{SlotID: "slot-1"}, "admin", false)
	require.NoError(t, err)
	assert.Equal(t, "slot-1", *detention.BookedSlotID)
	assert.Equal(t, calls, repo.bookCalls)
	assert.Equal(t, 1, repo.booked["slot-1"])
}

func TestDetentionStudentsBookOnlyTheirOwn(t *testing.T) {
	svc, repo, _ := detentionFixture()
	repo.detentions["d1"] = assignedDetention("d1", "s1")

	_, err := svc.Book(context.Background(), "d1", BookDetentionRequest{SlotID: "slot-1"}, "s2", true)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Book(context.Background(), "d1", BookDetentionRequest{SlotID: "slot-1"}, "s1", true)
	require.NoError(t, err)
}

func TestDetentionCompletedCannotBeRebooked(t *testing.T) {
	svc, repo, _ := detentionFixture()
	d := assignedDetention("d1", "s1")
	d.Status = models.DetentionCompleted
	repo.detentions["d1"] = d

	_, err := svc.Book(context.Background(), "d1", BookDetentionRequest{SlotID: "slot-1"}, "admin", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestDetentionResolveComplete(t *testing.T) {
	svc, repo, _ := detentionFixture()
	repo.detentions["d1"] = assignedDetention("d1", "s1")
	_, err := svc.Book(context.Background(), "d1", BookDetentionRequest{SlotID: "slot-1"}, "admin", false)
	require.NoError(t, err)

	detention, err := svc.Resolve(context.Background(), "d1", ResolveDetentionRequest{CompletionStatus: models.CompletionComplete})
	require.NoError(t, err)
	assert.Equal(t, models.DetentionCompleted, detention.Status)
	assert.Equal(t, 1, detention.Attempts)
	// The completed booking keeps its seat as the attendance record.
	require.NotNil(t, detention.BookedSlotID)
	assert.Equal(t, 1, repo.booked["slot-1"])
	assert.Empty(t, repo.released)
}

func TestDetentionResolveIncompleteReleasesSeat(t *testing.T) {
	svc, repo, notifier := detentionFixture()
	repo.detentions["d1"] = assignedDetention("d1", "s1")
	_, err := svc.Book(context.Background(), "d1", BookDetentionRequest{SlotID: "slot-1"}, "admin", false)
	require.NoError(t, err)

	detention, err := svc.Resolve(context.Background(), "d1", ResolveDetentionRequest{CompletionStatus: models.CompletionIncomplete})
	require.NoError(t, err)
	assert.Equal(t, models.DetentionAssigned, detention.Status)
	assert.Nil(t, detention.BookedSlotID)
	assert.Equal(t, 1, detention.Attempts)
	assert.Equal(t, 0, repo.booked["slot-1"])
	assert.Contains(t, repo.released, "slot-1")

	last := notifier.sent[len(notifier.sent)-1]
	assert.Equal(t, models.NotificationDetentionResolved, last.Kind)
	assert.Contains(t, last.Body, "book another detention slot")
}

func TestDetentionResolveAbsentDoesNotCountAttempt(t *testing.T) {
	svc, repo, _ := detentionFixture()
	repo.detentions["d1"] = assignedDetention("d1", "s1")
	_, err := svc.Book(context.Background(), "d1", BookDetentionRequest{SlotID: "slot-1"}, "admin", false)
	require.NoError(t, err)

	detention, err := svc.Resolve(context.Background(), "d1", ResolveDetentionRequest{CompletionStatus: models.CompletionAbsent})
	require.NoError(t, err)
	assert.Equal(t, models.DetentionAssigned, detention.Status)
	assert.Nil(t, detention.BookedSlotID)
	assert.Zero(t, detention.Attempts)
	assert.Equal(t, 0, repo.booked["slot-1"])
}

func TestDetentionResolveRequiresBooked(t *testing.T) {
	svc, repo, _ := detentionFixture()
	repo.detentions["d1"] = assignedDetention("d1", "s1")

	_, err := svc.Resolve(context.Background(), "d1", ResolveDetentionRequest{CompletionStatus: models.CompletionComplete})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestDetentionResolveRejectsUnknownOutcome(t *testing.T) {
	svc, repo, _ := detentionFixture()
	repo.detentions["d1"] = assignedDetention("d1", "s1")

	_, err := svc.Resolve(context.Background(), "d1", ResolveDetentionRequest{CompletionStatus: "late"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDetentionDeleteReleasesHeldSeat(t *testing.T) {
	svc, repo, _ := detentionFixture()
	repo.detentions["d1"] = assignedDetention("d1", "s1")
	_, err := svc.Book(context.Background(), "d1", BookDetentionRequest{SlotID: "slot-1"}, "admin", false)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "d1"))
	assert.Equal(t, 0, repo.booked["slot-1"])
	assert.Contains(t, repo.deleted, "d1")
}

func TestDetentionResolveSurvivesDriftedSeatCounter(t *testing.T) {
	svc, repo, _ := detentionFixture()
	slotID := "slot-1"
	booked := assignedDetention("d1", "s1")
	booked.Status = models.DetentionBooked
	booked.BookedSlotID = &slotID
	// The counter already reads zero; the outcome must still land.
	repo.detentions["d1"] = booked

	detention, err := svc.Resolve(context.Background(), "d1", ResolveDetentionRequest{CompletionStatus: models.CompletionIncomplete})
	require.NoError(t, err)
	assert.Equal(t, models.DetentionAssigned, detention.Status)
	assert.Nil(t, detention.BookedSlotID)
	assert.Equal(t, 0, repo.booked["slot-1"])
}

func TestDetentionDeleteSurvivesDriftedSeatCounter(t *testing.T) {
	svc, repo, _ := detentionFixture()
	slotID := "slot-1"
	booked := assignedDetention("d1", "s1")
	booked.Status = models.DetentionBooked
	booked.BookedSlotID = &slotID
	repo.detentions["d1"] = booked

	require.NoError(t, svc.Delete(context.Background(), "d1"))
	assert.Contains(t, repo.deleted, "d1")
	assert.Equal(t, 0, repo.booked["slot-1"])
}
