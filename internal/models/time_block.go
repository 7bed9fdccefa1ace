package models

import "time"

// Weekday labels used for scheduled days, Monday first.
var WeekdayLabels = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// TimeBlock is a single scheduled slot inside a term plan. Weekday is 1-7
// with Monday = 1; times of day use the "HH:MM" 24-hour form.
type TimeBlock struct {
	ID           string    `db:"id" json:"id"`
	TermPlanID   string    `db:"term_plan_id" json:"term_plan_id"`
	Weekday      int       `db:"weekday" json:"weekday"`
	StartTime    string    `db:"start_time" json:"start_time"`
	EndTime      string    `db:"end_time" json:"end_time"`
	ActivityName string    `db:"activity_name" json:"activity_name"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// WeekdayLabel returns the display label for the block's weekday.
func (b TimeBlock) WeekdayLabel() string {
	if b.Weekday < 1 || b.Weekday > len(WeekdayLabels) {
		return ""
	}
	return WeekdayLabels[b.Weekday-1]
}
