package models

import "time"

// Wallet holds a student's balance within one classroom.
// Balance is mutated exclusively by the ledger repository and never goes
// negative: every debit is a conditional update guarded by the current value.
type Wallet struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	ClassroomID string    `db:"classroom_id" json:"classroom_id"`
	Balance     int64     `db:"balance" json:"balance"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
