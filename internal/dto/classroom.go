package dto

import "github.com/noah-isme/classbank-api/internal/models"

// CreateClassroomRequest payload for opening a new classroom economy.
type CreateClassroomRequest struct {
	Name           string `json:"name" validate:"required,min=2,max=100"`
	CurrencyName   string `json:"currency_name" validate:"required,max=30"`
	CurrencySymbol string `json:"currency_symbol" validate:"required,max=5"`
	TreasuryTotal  int64  `json:"treasury_total" validate:"omitempty,gt=0"`
}

// UpdateSettingsRequest replaces the classroom settings document.
type UpdateSettingsRequest struct {
	Settings models.ClassroomSettings `json:"settings"`
}

// AwardRequest payload for a teacher emission to one or more students.
type AwardRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1"`
	Amount     int64    `json:"amount" validate:"required,gt=0"`
	Reason     string   `json:"reason" validate:"required,max=200"`
}

// RefundRequest payload for returning treasury coins to a student.
type RefundRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"required,max=200"`
}
