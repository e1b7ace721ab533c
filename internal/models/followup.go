package models

import "time"

// Followup is an action item raised by staff: an issue to chase, an
// optional solution and a due date. Completion is timestamped.
type Followup struct {
	ID          string     `db:"id" json:"id"`
	Issue       string     `db:"issue" json:"issue"`
	Solution    string     `db:"solution" json:"solution"`
	DueDate     time.Time  `db:"due_date" json:"due_date"`
	IsCompleted bool       `db:"is_completed" json:"is_completed"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedBy   string     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// FollowupFilter narrows followup listings.
type FollowupFilter struct {
	IsCompleted *bool
	Page        int
	PageSize    int
}
