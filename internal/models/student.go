package models

import "time"

// Student represents a child profile owned by a parent account.
type Student struct {
	ID         string    `db:"id" json:"id"`
	ParentID   string    `db:"parent_id" json:"parent_id"`
	FirstName  string    `db:"first_name" json:"first_name"`
	LastName   string    `db:"last_name" json:"last_name"`
	FullName   string    `db:"full_name" json:"full_name"`
	GradeLevel string    `db:"grade_level" json:"grade_level"`
	Age        int       `db:"age" json:"age"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	ParentID   string
	Search     string
	GradeLevel string
	Active     *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
