package models

import "time"

// DetentionStatus is the lifecycle state of a detention.
// assigned -> booked -> completed; incomplete and absent outcomes revert
// a booked detention to assigned.
type DetentionStatus string

const (
	DetentionAssigned  DetentionStatus = "assigned"
	DetentionBooked    DetentionStatus = "booked"
	DetentionCompleted DetentionStatus = "completed"
)

// CompletionStatus is the recorded outcome of a booked detention session.
type CompletionStatus string

const (
	CompletionComplete   CompletionStatus = "complete"
	CompletionIncomplete CompletionStatus = "incomplete"
	CompletionAbsent     CompletionStatus = "absent"
)

// ValidCompletionStatus reports whether the value is a recognised outcome.
func ValidCompletionStatus(v CompletionStatus) bool {
	switch v {
	case CompletionComplete, CompletionIncomplete, CompletionAbsent:
		return true
	}
	return false
}

// Detention tracks one assigned detention through booking and resolution.
// BookedSlotID is set exactly while the detention holds a reservation;
// Attempts counts complete and incomplete outcomes, never absences.
type Detention struct {
	ID               string            `db:"id" json:"id"`
	ClassID          string            `db:"class_id" json:"class_id"`
	StudentID        string            `db:"student_id" json:"student_id"`
	Week             int               `db:"week" json:"week"`
	Reason           string            `db:"reason" json:"reason"`
	Status           DetentionStatus   `db:"status" json:"status"`
	BookedSlotID     *string           `db:"booked_slot_id" json:"booked_slot_id,omitempty"`
	CompletionStatus *CompletionStatus `db:"completion_status" json:"completion_status,omitempty"`
	Attempts         int               `db:"attempts" json:"attempts"`
	AssignedBy       string            `db:"assigned_by" json:"assigned_by"`
	AssignedAt       time.Time         `db:"assigned_at" json:"assigned_at"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}

// DetentionDetail extends Detention with joined display fields.
type DetentionDetail struct {
	Detention
	StudentName string     `db:"student_name" json:"student_name"`
	ClassName   string     `db:"class_name" json:"class_name"`
	SlotDate    *time.Time `db:"slot_date" json:"slot_date,omitempty"`
	SlotStart   *string    `db:"slot_start" json:"slot_start,omitempty"`
	SlotEnd     *string    `db:"slot_end" json:"slot_end,omitempty"`
}

// DetentionFilter defines filters for detention listings.
type DetentionFilter struct {
	StudentID string
	ClassID   string
	Status    DetentionStatus
	Page      int
	PageSize  int
}
