package dto

// CreateRateRequest payload for offering a savings tier.
type CreateRateRequest struct {
	LockDays       int     `json:"lock_days" validate:"required,gt=0"`
	InterestRate   float64 `json:"interest_rate" validate:"required,gt=0,lte=100"`
	MinAmount      int64   `json:"min_amount" validate:"gte=0"`
	MaxAmount      *int64  `json:"max_amount" validate:"omitempty,gt=0"`
	BonusThreshold *int64  `json:"bonus_threshold" validate:"omitempty,gt=0"`
	BonusRate      float64 `json:"bonus_rate" validate:"gte=0,lte=100"`
}

// OpenAccountRequest payload for locking a deposit.
type OpenAccountRequest struct {
	RateID string `json:"rate_id" validate:"required"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
}
