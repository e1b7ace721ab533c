package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// WeekContent records what one year group covers in one week of a term:
// the topics taught, an optional assessment and free-form comments.
type WeekContent struct {
	Week         int      `json:"week" validate:"min=1"`
	TopicIDs     []string `json:"topic_ids"`
	AssessmentID *string  `json:"assessment_id,omitempty"`
	Comments     string   `json:"comments"`
}

// WeekContents is a progress plan's week-by-week breakdown, persisted as
// JSONB and kept sorted by week.
type WeekContents []WeekContent

// Value marshals the weekly breakdown to JSON for persistence.
func (w WeekContents) Value() (driver.Value, error) {
	if w == nil {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal weekly content: %w", err)
	}
	return data, nil
}

// Scan unmarshals the weekly breakdown from its JSONB representation.
func (w *WeekContents) Scan(value interface{}) error {
	if value == nil {
		*w = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported weekly content column type %T", value)
	}
	return json.Unmarshal(raw, w)
}

// ProgressPlan tracks what a year group is taught across one term,
// week by week.
type ProgressPlan struct {
	ID            string       `db:"id" json:"id"`
	Name          string       `db:"name" json:"name"`
	TermID        string       `db:"term_id" json:"term_id"`
	Year          string       `db:"year" json:"year"`
	WeeklyContent WeekContents `db:"weekly_content" json:"weekly_content"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// ProgressPlanDetail joins the owning term's display fields for listings.
type ProgressPlanDetail struct {
	ProgressPlan
	TermName string   `db:"term_name" json:"term_name"`
	TermType TermType `db:"term_type" json:"term_type"`
}

// ProgressFilter narrows progress plan listings.
type ProgressFilter struct {
	TermID   string
	Year     string
	Page     int
	PageSize int
}
