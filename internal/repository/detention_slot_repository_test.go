package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmont-tuition/omt-api/internal/models"
)

func slotRow(id string, booked, capacity int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "date", "start_time", "end_time", "classroom_id", "term_id", "week", "capacity", "booked_count", "created_by", "created_at", "updated_at"}).
		AddRow(id, now, "16:00", "18:30", "room-1", "term-1", 3, capacity, booked, "admin-1", now, now)
}

func TestReserveClaimsSeat(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDetentionSlotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE detention_slots SET booked_count = booked_count + 1, updated_at = $2 WHERE id = $1 AND booked_count < capacity")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Reserve(context.Background(), "slot-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveFullSlot(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDetentionSlotRepository(db)

	mock.ExpectExec("UPDATE detention_slots SET booked_count = booked_count \\+ 1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM detention_slots WHERE id = $1")).
		WithArgs("slot-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	err := repo.Reserve(context.Background(), "slot-1")
	assert.ErrorIs(t, err, ErrSlotCapacityExhausted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveMissingSlot(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDetentionSlotRepository(db)

	mock.ExpectExec("UPDATE detention_slots SET booked_count = booked_count \\+ 1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM detention_slots WHERE id = $1")).
		WithArgs("slot-404").
		WillReturnError(sql.ErrNoRows)

	err := repo.Reserve(context.Background(), "slot-404")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseNeverGoesNegative(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDetentionSlotRepository(db)

	mock.ExpectExec("UPDATE detention_slots SET booked_count = booked_count - 1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM detention_slots WHERE id = $1")).
		WithArgs("slot-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	err := repo.Release(context.Background(), "slot-1")
	assert.ErrorIs(t, err, ErrReleaseUnderflow)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProtectedByBookings(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDetentionSlotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM detention_slots WHERE id = $1 AND booked_count = 0")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id, date, start_time").
		WithArgs("slot-1").
		WillReturnRows(slotRow("slot-1", 2, 2))

	err := repo.Delete(context.Background(), "slot-1")
	assert.ErrorIs(t, err, ErrSlotHasBookings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteEmptySlot(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDetentionSlotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM detention_slots WHERE id = $1 AND booked_count = 0")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "slot-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByCoordinate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDetentionSlotRepository(db)

	date := time.Date(2025, 2, 17, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .+ FROM detention_slots WHERE term_id = \\$1 AND classroom_id = \\$2 AND week = \\$3").
		WithArgs("term-1", "room-1", 3, date, "16:00", "18:30").
		WillReturnRows(slotRow("slot-1", 0, 20))

	slot, err := repo.FindByCoordinate(context.Background(), "term-1", "room-1", 3, date, "16:00", "18:30")
	require.NoError(t, err)
	assert.Equal(t, "slot-1", slot.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookTransactionRollsBackOnFullSlot(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDetentionRepository(db)

	oldSlot := "slot-old"
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE detention_slots SET booked_count = booked_count - 1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE detention_slots SET booked_count = booked_count \\+ 1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM detention_slots WHERE id = $1")).
		WithArgs("slot-new").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))
	mock.ExpectRollback()

	detention := &models.Detention{ID: "det-1", Status: models.DetentionBooked, BookedSlotID: &oldSlot}
	err := repo.Book(context.Background(), detention, "slot-new")
	assert.ErrorIs(t, err, ErrSlotCapacityExhausted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookTransactionCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDetentionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE detention_slots SET booked_count = booked_count \\+ 1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE detentions SET status = \\$2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	detention := &models.Detention{ID: "det-1", Status: models.DetentionAssigned}
	err := repo.Book(context.Background(), detention, "slot-1")
	require.NoError(t, err)
	assert.Equal(t, models.DetentionBooked, detention.Status)
	require.NotNil(t, detention.BookedSlotID)
	assert.Equal(t, "slot-1", *detention.BookedSlotID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
