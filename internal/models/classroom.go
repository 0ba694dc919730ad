package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ClassroomSettings captures per-classroom economy toggles. Stored as JSONB.
type ClassroomSettings struct {
	AllowP2PTransfers bool       `json:"allow_p2p_transfers"`
	MaxTransferAmount *int64     `json:"max_transfer_amount"`
	ShowLeaderboard   bool       `json:"show_leaderboard"`
	ShowIndicators    bool       `json:"show_economic_indicators"`
	SemesterEndDate   *time.Time `json:"semester_end_date"`
}

// DefaultClassroomSettings returns the settings applied at classroom creation.
func DefaultClassroomSettings() ClassroomSettings {
	return ClassroomSettings{
		AllowP2PTransfers: true,
		ShowLeaderboard:   true,
		ShowIndicators:    true,
	}
}

// Value implements driver.Valuer.
func (s ClassroomSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner, validating the row shape at the store boundary.
func (s *ClassroomSettings) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = DefaultClassroomSettings()
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported classroom settings type %T", src)
	}
}

// Classroom is a teacher-owned token economy. The treasury caps how much
// currency can ever enter circulation.
type Classroom struct {
	ID                string            `db:"id" json:"id"`
	TeacherID         string            `db:"teacher_id" json:"teacher_id"`
	Name              string            `db:"name" json:"name"`
	Code              string            `db:"code" json:"code"`
	CurrencyName      string            `db:"currency_name" json:"currency_name"`
	CurrencySymbol    string            `db:"currency_symbol" json:"currency_symbol"`
	TreasuryTotal     int64             `db:"treasury_total" json:"treasury_total"`
	TreasuryRemaining int64             `db:"treasury_remaining" json:"treasury_remaining"`
	Settings          ClassroomSettings `db:"settings" json:"settings"`
	LastPriceUpdate   *time.Time        `db:"last_price_update" json:"last_price_update,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
}

// EmittedSupply returns the amount of currency that has left the treasury.
func (c *Classroom) EmittedSupply() int64 {
	return c.TreasuryTotal - c.TreasuryRemaining
}
