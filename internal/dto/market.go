package dto

import "github.com/noah-isme/classbank-api/internal/models"

// CreateItemRequest payload for adding a market item.
type CreateItemRequest struct {
	Name        string                `json:"name" validate:"required,min=2,max=100"`
	Description *string               `json:"description" validate:"omitempty,max=500"`
	Category    string                `json:"category" validate:"required,max=50"`
	Type        models.MarketItemType `json:"type" validate:"required,oneof=INDIVIDUAL COLLECTIVE"`
	BasePrice   int64                 `json:"base_price" validate:"required,gt=0"`
	Stock       *int                  `json:"stock" validate:"omitempty,gte=0"`
	GoalAmount  *int64                `json:"goal_amount" validate:"omitempty,gt=0"`
}

// UpdateItemRequest payload for editing a market item.
type UpdateItemRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Category    string  `json:"category" validate:"required,max=50"`
	BasePrice   int64   `json:"base_price" validate:"required,gt=0"`
	Stock       *int    `json:"stock" validate:"omitempty,gte=0"`
	GoalAmount  *int64  `json:"goal_amount" validate:"omitempty,gt=0"`
	Active      bool    `json:"active"`
}

// ContributeRequest payload for funding a collective goal.
type ContributeRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}
