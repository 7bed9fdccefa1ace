package models

import "time"

// RewardKind enumerates the currencies tracked for a student.
type RewardKind string

const (
	RewardKindXP    RewardKind = "XP"
	RewardKindCoins RewardKind = "COINS"
)

// RewardProfile is the per-student snapshot of gamified progress. StreakDays
// counts consecutive UTC calendar days with at least one reward event.
type RewardProfile struct {
	ID             string     `db:"id" json:"id"`
	StudentID      string     `db:"student_id" json:"student_id"`
	XP             int        `db:"xp" json:"xp"`
	Coins          int        `db:"coins" json:"coins"`
	StreakDays     int        `db:"streak_days" json:"streak_days"`
	LastActivityAt *time.Time `db:"last_activity_at" json:"last_activity_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// RewardEvent is an append-only ledger entry behind a profile mutation.
type RewardEvent struct {
	ID        string     `db:"id" json:"id"`
	StudentID string     `db:"student_id" json:"student_id"`
	Kind      RewardKind `db:"kind" json:"kind"`
	Amount    int        `db:"amount" json:"amount"`
	Reason    string     `db:"reason" json:"reason"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
