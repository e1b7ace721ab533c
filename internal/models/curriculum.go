package models

import "time"

// Term labels the curriculum calendar is organised around. Topics and
// assessments are pinned to a label, not a terms row: the same Y9 T2
// material is taught every year.
const (
	TermLabelT1 = "T1"
	TermLabelT2 = "T2"
	TermLabelT3 = "T3"
	TermLabelT4 = "T4"
)

// ValidTermLabel reports whether s is one of the four term labels.
func ValidTermLabel(s string) bool {
	switch s {
	case TermLabelT1, TermLabelT2, TermLabelT3, TermLabelT4:
		return true
	}
	return false
}

// Topic is one unit of teaching material for a year and term label.
type Topic struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Content   string    `db:"content" json:"content,omitempty"`
	Year      string    `db:"year" json:"year"`
	TermLabel string    `db:"term_label" json:"term_label"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Assessment is a scheduled test for a year and term label.
type Assessment struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Year      string    `db:"year" json:"year"`
	TermLabel string    `db:"term_label" json:"term_label"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CurriculumFilter narrows topic and assessment listings.
type CurriculumFilter struct {
	Search    string
	Year      string
	TermLabel string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
