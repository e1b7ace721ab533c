package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmont-tuition/omt-api/internal/models"
)

func resolvedDetention(id string) *models.Detention {
	outcome := models.CompletionIncomplete
	return &models.Detention{
		ID:               id,
		ClassID:          "c1",
		StudentID:        "s1",
		Week:             3,
		Reason:           "missing homework",
		Status:           models.DetentionAssigned,
		CompletionStatus: &outcome,
		AssignedBy:       "admin-1",
	}
}

func TestResolveReleasesSeatInTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDetentionRepository(db)

	slotID := "slot-1"
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE detention_slots SET booked_count = booked_count - 1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE detentions SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	underflow, err := repo.Resolve(context.Background(), resolvedDetention("d1"), &slotID)
	require.NoError(t, err)
	assert.False(t, underflow)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveClampsReleaseUnderflow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDetentionRepository(db)

	slotID := "slot-1"
	mock.ExpectBegin()
	// The guarded decrement matches no row: the counter already reads zero.
	mock.ExpectExec("UPDATE detention_slots SET booked_count = booked_count - 1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM detention_slots WHERE id = $1")).
		WithArgs(slotID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))
	// The outcome still lands; the drift is reported, not fatal.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE detentions SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	underflow, err := repo.Resolve(context.Background(), resolvedDetention("d1"), &slotID)
	require.NoError(t, err)
	assert.True(t, underflow)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteClampsReleaseUnderflow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDetentionRepository(db)

	slotID := "slot-1"
	detention := resolvedDetention("d1")
	detention.Status = models.DetentionBooked
	detention.BookedSlotID = &slotID

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE detention_slots SET booked_count = booked_count - 1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM detention_slots WHERE id = $1")).
		WithArgs(slotID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM detentions WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	underflow, err := repo.Delete(context.Background(), detention)
	require.NoError(t, err)
	assert.True(t, underflow)
	assert.NoError(t, mock.ExpectationsWereMet())
}
