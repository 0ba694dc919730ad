package models

import "time"

// BadgeCriteria selects which metric a badge's threshold applies to.
type BadgeCriteria string

const (
	CriteriaStreak       BadgeCriteria = "STREAK"
	CriteriaBalance      BadgeCriteria = "BALANCE"
	CriteriaTransactions BadgeCriteria = "TRANSACTIONS"
	CriteriaSavings      BadgeCriteria = "SAVINGS"
	CriteriaManual       BadgeCriteria = "MANUAL"
)

// BadgeRarity is a display tier.
type BadgeRarity string

const (
	RarityCommon    BadgeRarity = "COMMON"
	RarityRare      BadgeRarity = "RARE"
	RarityEpic      BadgeRarity = "EPIC"
	RarityLegendary BadgeRarity = "LEGENDARY"
)

// Badge is an achievement definition. A nil ClassroomID marks a built-in
// badge available to every classroom.
type Badge struct {
	ID            string        `db:"id" json:"id"`
	ClassroomID   *string       `db:"classroom_id" json:"classroom_id,omitempty"`
	Code          string        `db:"code" json:"code"`
	Name          string        `db:"name" json:"name"`
	Description   string        `db:"description" json:"description"`
	Icon          string        `db:"icon" json:"icon"`
	Criteria      BadgeCriteria `db:"criteria" json:"criteria"`
	Threshold     int64         `db:"threshold" json:"threshold"`
	StreakType    *StreakType   `db:"streak_type" json:"streak_type,omitempty"`
	Rarity        BadgeRarity   `db:"rarity" json:"rarity"`
	RewardAmount  int64         `db:"reward_amount" json:"reward_amount"`
	Active        bool          `db:"active" json:"active"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// StudentBadge records a badge unlock. The (student, badge) pair is unique,
// so a badge can be earned at most once.
type StudentBadge struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	BadgeID     string    `db:"badge_id" json:"badge_id"`
	ClassroomID string    `db:"classroom_id" json:"classroom_id"`
	BadgeCode   string    `db:"badge_code" json:"badge_code"`
	BadgeName   string    `db:"badge_name" json:"badge_name"`
	UnlockedAt  time.Time `db:"unlocked_at" json:"unlocked_at"`
}
