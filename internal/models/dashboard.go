package models

import "time"

// ParentDashboardStudent summarises one child on the parent dashboard.
// UnassignedBlocks counts scheduled blocks whose activity has no platform
// assignment yet.
type ParentDashboardStudent struct {
	Student          Student        `json:"student"`
	LatestPlan       *TermPlan      `json:"latest_plan,omitempty"`
	UnassignedBlocks int            `json:"unassigned_blocks"`
	Rewards          *RewardProfile `json:"rewards,omitempty"`
}

// ParentDashboard aggregates everything a parent sees on login.
type ParentDashboard struct {
	ParentID    string                   `json:"parent_id"`
	Students    []ParentDashboardStudent `json:"students"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// StudentDashboard aggregates a student's view of today.
type StudentDashboard struct {
	StudentID   string           `json:"student_id"`
	Plan        *TermPlan        `json:"plan,omitempty"`
	TodayBlocks []TimeBlock      `json:"today_blocks"`
	Assignments []CoursePlatform `json:"assignments"`
	Rewards     *RewardProfile   `json:"rewards,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`
}
