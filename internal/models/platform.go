package models

import "time"

// PlatformType distinguishes subject-specific catalog entries from general
// fallback resources.
type PlatformType string

const (
	PlatformTypeGeneral PlatformType = "general"
	PlatformTypeSubject PlatformType = "subject"
)

// Platform is a curated catalog entry for an external learning resource.
type Platform struct {
	ID          string       `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	URL         string       `db:"url" json:"url"`
	Subject     string       `db:"subject" json:"subject"`
	Type        PlatformType `db:"type" json:"type"`
	Description string       `db:"description" json:"description"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// PlatformFilter defines filters supported by catalog list endpoints.
type PlatformFilter struct {
	Subject   string
	Type      PlatformType
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
