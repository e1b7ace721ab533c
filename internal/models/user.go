package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// Year labels students progress through. Y12 and its extension streams are
// terminal: on rollover those students graduate instead of advancing.
const (
	YearY6    = "Y6"
	YearY7    = "Y7"
	YearY8    = "Y8"
	YearY9    = "Y9"
	YearY10   = "Y10"
	YearY11   = "Y11"
	YearY12   = "Y12"
	YearY123U = "Y12 3U"
	YearY124U = "Y12 4U"
)

// NextYear maps each student year to its successor. Terminal years are absent.
var NextYear = map[string]string{
	YearY6:  YearY7,
	YearY7:  YearY8,
	YearY8:  YearY9,
	YearY9:  YearY10,
	YearY10: YearY11,
	YearY11: YearY12,
}

// TerminalYear reports whether a year label graduates on rollover.
func TerminalYear(year string) bool {
	switch year {
	case YearY12, YearY123U, YearY124U:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
// Year is set only for students.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	Role         UserRole   `db:"role" json:"role"`
	Year         *string    `db:"year" json:"year,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Year      string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// YearRolloverResult records the outcome for a single student during rollover.
type YearRolloverResult struct {
	StudentID string  `json:"student_id"`
	Name      string  `json:"name"`
	OldYear   string  `json:"old_year"`
	NewYear   *string `json:"new_year,omitempty"`
	Graduated bool    `json:"graduated"`
	Error     string  `json:"error,omitempty"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
