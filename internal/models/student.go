package models

import "time"

// Student is a classroom member identified by name + 4-digit PIN.
type Student struct {
	ID          string    `db:"id" json:"id"`
	ClassroomID string    `db:"classroom_id" json:"classroom_id"`
	Name        string    `db:"name" json:"name"`
	PINHash     string    `db:"pin_hash" json:"-"`
	Active      bool      `db:"active" json:"active"`
	JoinedAt    time.Time `db:"joined_at" json:"joined_at"`
}

// StudentWithBalance joins a student row with its wallet balance.
type StudentWithBalance struct {
	Student
	WalletID string `db:"wallet_id" json:"wallet_id"`
	Balance  int64  `db:"balance" json:"balance"`
}

// LeaderboardEntry is a ranked wallet balance row.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
	Balance     int64  `db:"balance" json:"balance"`
}
