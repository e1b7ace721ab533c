package models

import "time"

// TermType distinguishes regular school terms from holiday programmes.
// The two run different detention slot windows.
type TermType string

const (
	TermTypeSchool  TermType = "school_term"
	TermTypeHoliday TermType = "holiday"
)

// Default lengths in weeks per term type.
const (
	DefaultSchoolTermWeeks = 10
	DefaultHolidayWeeks    = 2
)

// Term models a scheduling period anchored to a Saturday start date.
// At most one term is current at any time.
type Term struct {
	ID                string    `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	Type              TermType  `db:"type" json:"type"`
	StartDate         time.Time `db:"start_date" json:"start_date"`
	Weeks             int       `db:"weeks" json:"weeks"`
	IsFirstTermOfYear bool      `db:"is_first_term_of_year" json:"is_first_term_of_year"`
	IsCurrent         bool      `db:"is_current" json:"is_current"`
	CreatedBy         string    `db:"created_by" json:"created_by"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// TermFilter defines filters supported by list endpoints.
type TermFilter struct {
	Type      TermType
	IsCurrent *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// TermActivation summarises the result of activating a term, including
// the student-year rollover triggered by a first-term-of-year activation.
type TermActivation struct {
	Term     *Term                `json:"term"`
	Rollover []YearRolloverResult `json:"rollover,omitempty"`
}
