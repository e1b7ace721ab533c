package models

import "time"

// Classroom is a bookable room with a fixed seat capacity.
// Detention slots copy the capacity at creation time.
type Classroom struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Capacity  int       `db:"capacity" json:"capacity"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassroomFilter defines filter criteria for listing classrooms.
type ClassroomFilter struct {
	IsActive  *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
