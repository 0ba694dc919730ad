package models

import (
	"strings"
	"time"
)

// StreakType is the activity category a streak counts consecutive days for.
type StreakType string

const (
	StreakAttendance    StreakType = "ATTENDANCE"
	StreakParticipation StreakType = "PARTICIPATION"
	StreakHomework      StreakType = "HOMEWORK"
	StreakQuiz          StreakType = "QUIZ"
	StreakBehavior      StreakType = "BEHAVIOR"
)

// Valid reports whether t is a known streak category.
func (t StreakType) Valid() bool {
	switch t {
	case StreakAttendance, StreakParticipation, StreakHomework, StreakQuiz, StreakBehavior:
		return true
	}
	return false
}

// StreakTypeForReason maps a free-text emission reason onto a streak
// category. Awards whose reason names an activity ("homework week 12",
// "class participation") advance that streak; anything else is not
// streak-worthy.
func StreakTypeForReason(reason string) (StreakType, bool) {
	lowered := strings.ToLower(reason)
	switch {
	case strings.Contains(lowered, "attendance"):
		return StreakAttendance, true
	case strings.Contains(lowered, "particip"), strings.Contains(lowered, "board"):
		return StreakParticipation, true
	case strings.Contains(lowered, "homework"):
		return StreakHomework, true
	case strings.Contains(lowered, "quiz"):
		return StreakQuiz, true
	case strings.Contains(lowered, "behavior"), strings.Contains(lowered, "behaviour"):
		return StreakBehavior, true
	}
	return "", false
}

// StudentStreak tracks consecutive calendar days of one activity type.
// LastActivityDate is a calendar date; comparisons use day granularity, so
// two recordings within the same day leave the streak untouched.
type StudentStreak struct {
	ID               string     `db:"id" json:"id"`
	ClassroomID      string     `db:"classroom_id" json:"classroom_id"`
	StudentID        string     `db:"student_id" json:"student_id"`
	StreakType       StreakType `db:"streak_type" json:"streak_type"`
	CurrentStreak    int        `db:"current_streak" json:"current_streak"`
	BestStreak       int        `db:"best_streak" json:"best_streak"`
	TotalCount       int        `db:"total_count" json:"total_count"`
	LastActivityDate *time.Time `db:"last_activity_date" json:"last_activity_date,omitempty"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// StreakReward maps an exact streak length to a one-time coin bonus.
type StreakReward struct {
	ID           string     `db:"id" json:"id"`
	ClassroomID  string     `db:"classroom_id" json:"classroom_id"`
	StreakType   StreakType `db:"streak_type" json:"streak_type"`
	Milestone    int        `db:"milestone" json:"milestone"`
	RewardAmount int64      `db:"reward_amount" json:"reward_amount"`
	RewardName   string     `db:"reward_name" json:"reward_name"`
	Active       bool       `db:"active" json:"active"`
}

// DefaultStreakMilestones are seeded for every streak type at classroom
// creation. Rewards fire on exact milestone matches only.
var DefaultStreakMilestones = []struct {
	Milestone int
	Reward    int64
}{
	{3, 10}, {5, 20}, {7, 35}, {10, 50}, {15, 80}, {20, 120}, {30, 200},
}

// StreakResult reports the outcome of recording one activity. Updated is
// false when the activity was already counted today and nothing moved.
type StreakResult struct {
	StreakType    StreakType     `json:"streak_type"`
	CurrentStreak int            `json:"current_streak"`
	BestStreak    int            `json:"best_streak"`
	Updated       bool           `json:"updated"`
	IsNewBest     bool           `json:"is_new_best"`
	Milestone     *StreakReward  `json:"milestone,omitempty"`
	BonusPaid     int64          `json:"bonus_paid"`
	BadgesEarned  []StudentBadge `json:"badges_earned,omitempty"`
}
