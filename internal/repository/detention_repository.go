package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/oakmont-tuition/omt-api/internal/models"
)

const detentionColumns = "id, class_id, student_id, week, reason, status, booked_slot_id, completion_status, attempts, assigned_by, assigned_at, created_at, updated_at"

const detentionDetailColumns = `d.id, d.class_id, d.student_id, d.week, d.reason, d.status, d.booked_slot_id, d.completion_status, d.attempts, d.assigned_by, d.assigned_at, d.created_at, d.updated_at,
	u.full_name AS student_name, c.name AS class_name, s.date AS slot_date, s.start_time AS slot_start, s.end_time AS slot_end`

// DetentionRepository persists detentions and coordinates every lifecycle
// transition that touches a slot counter inside one transaction, so a
// detention and its reservation can never disagree.
type DetentionRepository struct {
	db *sqlx.DB
}

// NewDetentionRepository creates a new detention repository.
func NewDetentionRepository(db *sqlx.DB) *DetentionRepository {
	return &DetentionRepository{db: db}
}

// List returns detentions joined with student, class and slot display fields.
func (r *DetentionRepository) List(ctx context.Context, filter models.DetentionFilter) ([]models.DetentionDetail, int, error) {
	base := `FROM detentions d
	JOIN users u ON u.id = d.student_id
	JOIN classes c ON c.id = d.class_id
	LEFT JOIN detention_slots s ON s.id = d.booked_slot_id
	WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("d.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("d.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("d.status = $%d", len(args)+1))
		args = append(args, filter.Status)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY d.assigned_at DESC LIMIT %d OFFSET %d", detentionDetailColumns, base, size, offset)
	var detentions []models.DetentionDetail
	if err := r.db.SelectContext(ctx, &detentions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list detentions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count detentions: %w", err)
	}

	return detentions, total, nil
}

// ListBookedForDate returns every booked detention whose slot falls on the
// given day, ordered by slot start time. Drives the daily register view.
func (r *DetentionRepository) ListBookedForDate(ctx context.Context, day time.Time) ([]models.DetentionDetail, error) {
	start := day.Truncate(24 * time.Hour)
	query := fmt.Sprintf(`SELECT %s
	FROM detentions d
	JOIN users u ON u.id = d.student_id
	JOIN classes c ON c.id = d.class_id
	JOIN detention_slots s ON s.id = d.booked_slot_id
	WHERE d.status = $1 AND s.date >= $2 AND s.date < $3
	ORDER BY s.start_time ASC, u.full_name ASC`, detentionDetailColumns)
	var detentions []models.DetentionDetail
	if err := r.db.SelectContext(ctx, &detentions, query, models.DetentionBooked, start, start.AddDate(0, 0, 1)); err != nil {
		return nil, fmt.Errorf("list booked detentions for date: %w", err)
	}
	return detentions, nil
}

// ListRegister returns the detentions of a term for export rendering,
// optionally narrowed to a slot classroom and a lifecycle status.
func (r *DetentionRepository) ListRegister(ctx context.Context, termID, classroomID string, status models.DetentionStatus) ([]models.DetentionDetail, error) {
	base := fmt.Sprintf(`SELECT %s
	FROM detentions d
	JOIN users u ON u.id = d.student_id
	JOIN classes c ON c.id = d.class_id
	LEFT JOIN detention_slots s ON s.id = d.booked_slot_id
	WHERE c.term_id = $1`, detentionDetailColumns)
	args := []interface{}{termID}

	if classroomID != "" {
		base += fmt.Sprintf(" AND s.classroom_id = $%d", len(args)+1)
		args = append(args, classroomID)
	}
	if status != "" {
		base += fmt.Sprintf(" AND d.status = $%d", len(args)+1)
		args = append(args, status)
	}
	base += " ORDER BY d.week ASC, u.full_name ASC"

	var detentions []models.DetentionDetail
	if err := r.db.SelectContext(ctx, &detentions, base, args...); err != nil {
		return nil, fmt.Errorf("list detention register: %w", err)
	}
	return detentions, nil
}

// CountBookedBySlot returns booked detentions per slot id for a term and
// classroom, used to cross-check grid availability.
func (r *DetentionRepository) CountBookedBySlot(ctx context.Context, slotIDs []string) (map[string]int, error) {
	if len(slotIDs) == 0 {
		return map[string]int{}, nil
	}
	query, args, err := sqlx.In(`SELECT booked_slot_id, COUNT(*) AS n FROM detentions WHERE status = ? AND booked_slot_id IN (?) GROUP BY booked_slot_id`, models.DetentionBooked, slotIDs)
	if err != nil {
		return nil, fmt.Errorf("build booked count query: %w", err)
	}
	query = r.db.Rebind(query)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count booked by slot: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int, len(slotIDs))
	for rows.Next() {
		var slotID string
		var n int
		if err := rows.Scan(&slotID, &n); err != nil {
			return nil, fmt.Errorf("scan booked count: %w", err)
		}
		counts[slotID] = n
	}
	return counts, rows.Err()
}

// FindByID loads a detention by id.
func (r *DetentionRepository) FindByID(ctx context.Context, id string) (*models.Detention, error) {
	query := fmt.Sprintf(`SELECT %s FROM detentions WHERE id = $1 LIMIT 1`, detentionColumns)
	var detention models.Detention
	if err := r.db.GetContext(ctx, &detention, query, id); err != nil {
		return nil, err
	}
	return &detention, nil
}

// Create stores a newly assigned detention.
func (r *DetentionRepository) Create(ctx context.Context, detention *models.Detention) error {
	if detention.ID == "" {
		detention.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if detention.CreatedAt.IsZero() {
		detention.CreatedAt = now
	}
	if detention.AssignedAt.IsZero() {
		detention.AssignedAt = now
	}
	detention.UpdatedAt = now

	const query = `INSERT INTO detentions (id, class_id, student_id, week, reason, status, booked_slot_id, completion_status, attempts, assigned_by, assigned_at, created_at, updated_at) VALUES (:id, :class_id, :student_id, :week, :reason, :status, :booked_slot_id, :completion_status, :attempts, :assigned_by, :assigned_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, detention); err != nil {
		return fmt.Errorf("create detention: %w", err)
	}
	return nil
}

// Book moves a detention onto a slot in one transaction: the previous
// reservation (if any) is released, the new slot is reserved with the
// capacity guard, and the detention row is rewritten. A full new slot
// rolls the whole transition back.
func (r *DetentionRepository) Book(ctx context.Context, detention *models.Detention, newSlotID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin book detention: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if detention.BookedSlotID != nil && *detention.BookedSlotID != newSlotID {
		if err = releaseSlot(ctx, tx, *detention.BookedSlotID); err != nil {
			return err
		}
	}
	if detention.BookedSlotID == nil || *detention.BookedSlotID != newSlotID {
		if err = reserveSlot(ctx, tx, newSlotID); err != nil {
			return err
		}
	}

	detention.Status = models.DetentionBooked
	detention.BookedSlotID = &newSlotID
	detention.UpdatedAt = time.Now().UTC()

	if _, err = tx.ExecContext(ctx, `UPDATE detentions SET status = $2, booked_slot_id = $3, updated_at = $4 WHERE id = $1`, detention.ID, detention.Status, detention.BookedSlotID, detention.UpdatedAt); err != nil {
		err = fmt.Errorf("update booked detention: %w", err)
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit book detention: %w", err)
	}
	return nil
}

// Resolve records an outcome and, when releaseSlotID is non-nil, frees
// that reservation in the same transaction. The caller decides the
// resulting status and attempts value per outcome. A release underflow
// does not abort the write: the counter is already at zero, so the
// outcome still lands and the drift is reported back for the caller to
// log.
func (r *DetentionRepository) Resolve(ctx context.Context, detention *models.Detention, releaseSlotID *string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin resolve detention: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var underflow bool
	if releaseSlotID != nil {
		switch err = releaseSlot(ctx, tx, *releaseSlotID); {
		case errors.Is(err, ErrReleaseUnderflow):
			underflow = true
			err = nil
		case err != nil:
			return false, err
		}
	}

	detention.UpdatedAt = time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE detentions SET status = $2, booked_slot_id = $3, completion_status = $4, attempts = $5, updated_at = $6 WHERE id = $1`, detention.ID, detention.Status, detention.BookedSlotID, detention.CompletionStatus, detention.Attempts, detention.UpdatedAt); err != nil {
		err = fmt.Errorf("update resolved detention: %w", err)
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit resolve detention: %w", err)
	}
	return underflow, nil
}

// Delete removes a detention, releasing its reservation in the same
// transaction when one is held. Like Resolve, a release underflow is
// clamped and reported rather than blocking the delete.
func (r *DetentionRepository) Delete(ctx context.Context, detention *models.Detention) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete detention: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var underflow bool
	if detention.BookedSlotID != nil {
		switch err = releaseSlot(ctx, tx, *detention.BookedSlotID); {
		case errors.Is(err, ErrReleaseUnderflow):
			underflow = true
			err = nil
		case err != nil:
			return false, err
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM detentions WHERE id = $1`, detention.ID); err != nil {
		err = fmt.Errorf("delete detention: %w", err)
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete detention: %w", err)
	}
	return underflow, nil
}
