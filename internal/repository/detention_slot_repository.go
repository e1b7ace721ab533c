package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oakmont-tuition/omt-api/internal/models"
)

const slotColumns = "id, date, start_time, end_time, classroom_id, term_id, week, capacity, booked_count, created_by, created_at, updated_at"

// Sentinel results for conditional slot updates. The service layer maps
// them onto the typed domain errors.
var (
	// ErrSlotCapacityExhausted is returned when a reserve hits a full slot.
	ErrSlotCapacityExhausted = fmt.Errorf("slot capacity exhausted")
	// ErrSlotHasBookings is returned when deleting a slot that still holds reservations.
	ErrSlotHasBookings = fmt.Errorf("slot has active bookings")
	// ErrReleaseUnderflow is returned when a release would drive booked_count negative.
	ErrReleaseUnderflow = fmt.Errorf("release on slot with zero bookings")
)

// DetentionSlotRepository owns the capacity/booked-count invariant of
// detention slots. All counter mutations are conditional single-statement
// updates so two concurrent reservations can never oversell a slot.
type DetentionSlotRepository struct {
	db *sqlx.DB
}

// NewDetentionSlotRepository creates a new detention slot repository.
func NewDetentionSlotRepository(db *sqlx.DB) *DetentionSlotRepository {
	return &DetentionSlotRepository{db: db}
}

// List returns slots with optional filtering, ordered by date and start time.
func (r *DetentionSlotRepository) List(ctx context.Context, filter models.DetentionSlotFilter) ([]models.DetentionSlot, int, error) {
	base := "FROM detention_slots WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Date != nil {
		day := filter.Date.Truncate(24 * time.Hour)
		conditions = append(conditions, fmt.Sprintf("date >= $%d AND date < $%d", len(args)+1, len(args)+2))
		args = append(args, day, day.AddDate(0, 0, 1))
	}
	if filter.ClassroomID != "" {
		conditions = append(conditions, fmt.Sprintf("classroom_id = $%d", len(args)+1))
		args = append(args, filter.ClassroomID)
	}
	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.Week != nil {
		conditions = append(conditions, fmt.Sprintf("week = $%d", len(args)+1))
		args = append(args, *filter.Week)
	}
	if filter.AvailableOnly {
		conditions = append(conditions, "booked_count < capacity")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY date ASC, start_time ASC LIMIT %d OFFSET %d", slotColumns, base, size, offset)
	var slots []models.DetentionSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list detention slots: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count detention slots: %w", err)
	}

	return slots, total, nil
}

// ListGrid returns the slots of a term+classroom ordered for grid rendering.
func (r *DetentionSlotRepository) ListGrid(ctx context.Context, termID, classroomID string) ([]models.DetentionSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM detention_slots WHERE term_id = $1 AND classroom_id = $2 ORDER BY week ASC, date ASC, start_time ASC`, slotColumns)
	var slots []models.DetentionSlot
	if err := r.db.SelectContext(ctx, &slots, query, termID, classroomID); err != nil {
		return nil, fmt.Errorf("list slot grid: %w", err)
	}
	return slots, nil
}

// FindByID loads a slot by id.
func (r *DetentionSlotRepository) FindByID(ctx context.Context, id string) (*models.DetentionSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM detention_slots WHERE id = $1 LIMIT 1`, slotColumns)
	var slot models.DetentionSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// FindByCoordinate looks up the slot at an exact resolved identity tuple.
// Returns sql.ErrNoRows when the coordinate has no slot.
func (r *DetentionSlotRepository) FindByCoordinate(ctx context.Context, termID, classroomID string, week int, date time.Time, startTime, endTime string) (*models.DetentionSlot, error) {
	query := fmt.Sprintf(`SELECT %s FROM detention_slots WHERE term_id = $1 AND classroom_id = $2 AND week = $3 AND date = $4 AND start_time = $5 AND end_time = $6 LIMIT 1`, slotColumns)
	var slot models.DetentionSlot
	if err := r.db.GetContext(ctx, &slot, query, termID, classroomID, week, date, startTime, endTime); err != nil {
		return nil, err
	}
	return &slot, nil
}

// Create stores a new slot record.
func (r *DetentionSlotRepository) Create(ctx context.Context, slot *models.DetentionSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	const query = `INSERT INTO detention_slots (id, date, start_time, end_time, classroom_id, term_id, week, capacity, booked_count, created_by, created_at, updated_at) VALUES (:id, :date, :start_time, :end_time, :classroom_id, :term_id, :week, :capacity, :booked_count, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create detention slot: %w", err)
	}
	return nil
}

// CreateBatch inserts all slots within one transaction. Either every
// date gets its slot or none does.
func (r *DetentionSlotRepository) CreateBatch(ctx context.Context, slots []models.DetentionSlot) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch create slots: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for i := range slots {
		payload := slots[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		if _, err = sqlx.NamedExecContext(ctx, tx, `INSERT INTO detention_slots (id, date, start_time, end_time, classroom_id, term_id, week, capacity, booked_count, created_by, created_at, updated_at) VALUES (:id, :date, :start_time, :end_time, :classroom_id, :term_id, :week, :capacity, :booked_count, :created_by, :created_at, :updated_at)`, &payload); err != nil {
			err = fmt.Errorf("batch insert detention slot: %w", err)
			return err
		}
		slots[i] = payload
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit batch create slots: %w", err)
	}
	return nil
}

// Update modifies slot window fields. Capacity follows the classroom when
// the slot is moved; booked_count is never touched here.
func (r *DetentionSlotRepository) Update(ctx context.Context, slot *models.DetentionSlot) error {
	slot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE detention_slots SET date = :date, start_time = :start_time, end_time = :end_time, classroom_id = :classroom_id, capacity = :capacity, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("update detention slot: %w", err)
	}
	return nil
}

// Reserve atomically claims one seat. The guard rides in the statement
// itself: a full slot matches zero rows and nothing is mutated.
func (r *DetentionSlotRepository) Reserve(ctx context.Context, id string) error {
	return reserveSlot(ctx, r.db, id)
}

// Release atomically frees one seat, never letting the counter go
// negative. Releasing a slot with zero bookings reports ErrReleaseUnderflow;
// the caller logs it as a logic error.
func (r *DetentionSlotRepository) Release(ctx context.Context, id string) error {
	return releaseSlot(ctx, r.db, id)
}

// Delete removes a slot only while it holds no bookings.
func (r *DetentionSlotRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM detention_slots WHERE id = $1 AND booked_count = 0`, id)
	if err != nil {
		return fmt.Errorf("delete detention slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete detention slot result: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing slot from one protected by bookings.
		if _, findErr := r.FindByID(ctx, id); findErr != nil {
			return findErr
		}
		return ErrSlotHasBookings
	}
	return nil
}

func reserveSlot(ctx context.Context, exec sqlx.ExtContext, id string) error {
	res, err := exec.ExecContext(ctx, `UPDATE detention_slots SET booked_count = booked_count + 1, updated_at = $2 WHERE id = $1 AND booked_count < capacity`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reserve detention slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve detention slot result: %w", err)
	}
	if affected == 0 {
		var exists int
		err = sqlx.GetContext(ctx, exec, &exists, `SELECT 1 FROM detention_slots WHERE id = $1`, id)
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		if err != nil {
			return fmt.Errorf("reserve detention slot lookup: %w", err)
		}
		return ErrSlotCapacityExhausted
	}
	return nil
}

func releaseSlot(ctx context.Context, exec sqlx.ExtContext, id string) error {
	res, err := exec.ExecContext(ctx, `UPDATE detention_slots SET booked_count = booked_count - 1, updated_at = $2 WHERE id = $1 AND booked_count > 0`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("release detention slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release detention slot result: %w", err)
	}
	if affected == 0 {
		var exists int
		err = sqlx.GetContext(ctx, exec, &exists, `SELECT 1 FROM detention_slots WHERE id = $1`, id)
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		if err != nil {
			return fmt.Errorf("release detention slot lookup: %w", err)
		}
		return ErrReleaseUnderflow
	}
	return nil
}
