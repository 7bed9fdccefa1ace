package models

import "time"

// PlatformHelp marks whether a parent wants assistance picking a resource
// for a given subject/course.
type PlatformHelp string

const (
	PlatformHelpNeeded    PlatformHelp = "needs_help"
	PlatformHelpNotNeeded PlatformHelp = "no_help_needed"
)

// CoursePlatform links a (student term plan, subject, course) triple to an
// external learning resource. At most one row exists per triple; saves go
// through an upsert on that key.
type CoursePlatform struct {
	ID                string        `db:"id" json:"id"`
	StudentTermPlanID string        `db:"student_term_plan_id" json:"student_term_plan_id"`
	Subject           string        `db:"subject" json:"subject"`
	Course            string        `db:"course" json:"course"`
	PlatformURL       string        `db:"platform_url" json:"platform_url"`
	PlatformName      string        `db:"platform_name" json:"platform_name"`
	PlatformHelp      *PlatformHelp `db:"platform_help" json:"platform_help,omitempty"`
	Notes             string        `db:"notes" json:"notes"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}
