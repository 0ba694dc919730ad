package models

import "time"

// SavingsStatus tracks a fixed-term savings account.
type SavingsStatus string

const (
	SavingsActive    SavingsStatus = "ACTIVE"
	SavingsCompleted SavingsStatus = "COMPLETED"
	SavingsCancelled SavingsStatus = "CANCELLED"
)

// SavingsRate is a lock-duration tier a classroom offers. InterestRate and
// BonusRate are whole percentages over the full term, not annualized.
type SavingsRate struct {
	ID             string    `db:"id" json:"id"`
	ClassroomID    string    `db:"classroom_id" json:"classroom_id"`
	LockDays       int       `db:"lock_days" json:"lock_days"`
	InterestRate   float64   `db:"interest_rate" json:"interest_rate"`
	MinAmount      int64     `db:"min_amount" json:"min_amount"`
	MaxAmount      *int64    `db:"max_amount" json:"max_amount,omitempty"`
	BonusThreshold *int64    `db:"bonus_threshold" json:"bonus_threshold,omitempty"`
	BonusRate      float64   `db:"bonus_rate" json:"bonus_rate"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// TotalRate returns the effective percentage for a deposit of the given
// amount, including the large-deposit bonus when the threshold is met.
func (r *SavingsRate) TotalRate(amount int64) float64 {
	rate := r.InterestRate
	if r.BonusThreshold != nil && amount >= *r.BonusThreshold {
		rate += r.BonusRate
	}
	return rate
}

// SavingsAccount is a locked deposit. The projected interest is fixed at
// opening time; early withdrawal forfeits it entirely.
type SavingsAccount struct {
	ID                string        `db:"id" json:"id"`
	ClassroomID       string        `db:"classroom_id" json:"classroom_id"`
	StudentID         string        `db:"student_id" json:"student_id"`
	WalletID          string        `db:"wallet_id" json:"wallet_id"`
	RateID            string        `db:"rate_id" json:"rate_id"`
	Amount            int64         `db:"amount" json:"amount"`
	LockDays          int           `db:"lock_days" json:"lock_days"`
	InterestRate      float64       `db:"interest_rate" json:"interest_rate"`
	ProjectedInterest int64         `db:"projected_interest" json:"projected_interest"`
	Status            SavingsStatus `db:"status" json:"status"`
	StartDate         time.Time     `db:"start_date" json:"start_date"`
	EndDate           time.Time     `db:"end_date" json:"end_date"`
	FinalAmount       *int64        `db:"final_amount" json:"final_amount,omitempty"`
	ClosedAt          *time.Time    `db:"closed_at" json:"closed_at,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
}

// Matured reports whether the lock period has elapsed at the given instant.
func (a *SavingsAccount) Matured(now time.Time) bool {
	return !now.Before(a.EndDate)
}
