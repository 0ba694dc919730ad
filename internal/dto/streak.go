package dto

import "github.com/noah-isme/classbank-api/internal/models"

// RecordActivityRequest payload for marking one student activity.
type RecordActivityRequest struct {
	StudentID  string            `json:"student_id" validate:"required"`
	StreakType models.StreakType `json:"streak_type" validate:"required"`
}

// CreateBadgeRequest payload for defining a classroom badge.
type CreateBadgeRequest struct {
	Code         string               `json:"code" validate:"required,max=50"`
	Name         string               `json:"name" validate:"required,max=100"`
	Description  string               `json:"description" validate:"max=300"`
	Icon         string               `json:"icon" validate:"max=50"`
	Criteria     models.BadgeCriteria `json:"criteria" validate:"required,oneof=STREAK BALANCE TRANSACTIONS SAVINGS MANUAL"`
	Threshold    int64                `json:"threshold" validate:"gte=0"`
	StreakType   *models.StreakType   `json:"streak_type"`
	Rarity       models.BadgeRarity   `json:"rarity" validate:"required,oneof=COMMON RARE EPIC LEGENDARY"`
	RewardAmount int64                `json:"reward_amount" validate:"gte=0"`
}
