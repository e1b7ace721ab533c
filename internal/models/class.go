package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ScheduleEntry is one weekly recurring interval of a class timetable.
// DayOfWeek uses 0=Sunday..6=Saturday; Duration is minutes.
type ScheduleEntry struct {
	DayOfWeek       int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime       string `json:"start_time" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"min=30"`
}

// ScheduleEntries is the embedded weekly timetable, persisted as JSONB.
type ScheduleEntries []ScheduleEntry

// Value marshals the schedule to JSON for persistence.
func (s ScheduleEntries) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schedule: %w", err)
	}
	return data, nil
}

// Scan unmarshals the schedule from its JSONB representation.
func (s *ScheduleEntries) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported schedule column type %T", value)
	}
	return json.Unmarshal(raw, s)
}

// Class is a recurring weekly class bound to one classroom and one term.
type Class struct {
	ID             string          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	Year           string          `db:"year" json:"year"`
	TeacherID      string          `db:"teacher_id" json:"teacher_id"`
	ClassroomID    string          `db:"classroom_id" json:"classroom_id"`
	TermID         string          `db:"term_id" json:"term_id"`
	Schedule       ScheduleEntries `db:"schedule" json:"schedule"`
	CopyToNextTerm bool            `db:"copy_to_next_term" json:"copy_to_next_term"`
	IsActive       bool            `db:"is_active" json:"is_active"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends Class with joined display names.
type ClassDetail struct {
	Class
	TeacherName   string `db:"teacher_name" json:"teacher_name"`
	ClassroomName string `db:"classroom_name" json:"classroom_name"`
	TermName      string `db:"term_name" json:"term_name"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	TermID      string
	ClassroomID string
	TeacherID   string
	Year        string
	IsActive    *bool
	Search      string
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// ScheduleConflict identifies the existing class an interval collides with.
type ScheduleConflict struct {
	ClassID   string `json:"class_id"`
	ClassName string `json:"class_name"`
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}
