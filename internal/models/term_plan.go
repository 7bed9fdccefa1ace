package models

import "time"

// TermPlan is a parent-authored scheduling container for one academic term.
// The preference fields drive time-block generation; times of day use the
// "HH:MM" 24-hour form.
type TermPlan struct {
	ID                 string    `db:"id" json:"id"`
	ParentID           string    `db:"parent_id" json:"parent_id"`
	Name               string    `db:"name" json:"name"`
	DaysPerWeek        int       `db:"days_per_week" json:"days_per_week"`
	StartTime          string    `db:"start_time" json:"start_time"`
	EndTime            string    `db:"end_time" json:"end_time"`
	BlockLengthMinutes int       `db:"block_length_minutes" json:"block_length_minutes"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// StudentTermPlan is the join row linking a student to a term plan. Platform
// assignments key on this row, not on the plan or the student directly.
type StudentTermPlan struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	TermPlanID string    `db:"term_plan_id" json:"term_plan_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// TermPlanFilter defines filters supported by list endpoints.
type TermPlanFilter struct {
	ParentID  string
	StudentID string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// TermPlanDetail bundles a plan with its linked students and blocks.
type TermPlanDetail struct {
	TermPlan
	StudentIDs []string    `json:"student_ids"`
	TimeBlocks []TimeBlock `json:"time_blocks"`
}
