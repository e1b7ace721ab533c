package models

import "time"

// DetentionSlot is a bookable seat pool in a classroom at a fixed window.
// Invariant: 0 <= BookedCount <= Capacity at all times; reserve and release
// are conditional updates in the repository, never read-modify-write.
type DetentionSlot struct {
	ID          string    `db:"id" json:"id"`
	Date        time.Time `db:"date" json:"date"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	ClassroomID string    `db:"classroom_id" json:"classroom_id"`
	TermID      *string   `db:"term_id" json:"term_id,omitempty"`
	Week        *int      `db:"week" json:"week,omitempty"`
	Capacity    int       `db:"capacity" json:"capacity"`
	BookedCount int       `db:"booked_count" json:"booked_count"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Available reports whether the slot still has free seats.
func (s *DetentionSlot) Available() bool {
	return s != nil && s.BookedCount < s.Capacity
}

// DetentionSlotFilter defines filters for slot listings.
type DetentionSlotFilter struct {
	Date          *time.Time
	ClassroomID   string
	TermID        string
	Week          *int
	AvailableOnly bool
	Page          int
	PageSize      int
}

// SlotCoordinate identifies a slot on the weekly toggle grid.
type SlotCoordinate struct {
	TermID      string `json:"term_id" validate:"required"`
	ClassroomID string `json:"classroom_id" validate:"required"`
	Week        int    `json:"week" validate:"min=1"`
	DayOfWeek   int    `json:"day_of_week" validate:"min=0,max=6"`
	SlotNumber  int    `json:"slot_number" validate:"min=0"`
}
