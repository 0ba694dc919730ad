package models

import "time"

// TransactionType labels the economic nature of a ledger entry.
type TransactionType string

const (
	TransactionEmission     TransactionType = "EMISSION"
	TransactionTransfer     TransactionType = "TRANSFER"
	TransactionPurchase     TransactionType = "PURCHASE"
	TransactionRefund       TransactionType = "REFUND"
	TransactionContribution TransactionType = "COLLECTIVE_CONTRIBUTION"
	TransactionSavingsLock  TransactionType = "SAVINGS_LOCK"
	TransactionSavingsOut   TransactionType = "SAVINGS_WITHDRAW"
)

// Valid reports whether t is one of the known ledger entry types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionEmission, TransactionTransfer, TransactionPurchase,
		TransactionRefund, TransactionContribution,
		TransactionSavingsLock, TransactionSavingsOut:
		return true
	}
	return false
}

// Transaction is an immutable ledger entry. A nil FromWalletID means the
// coins came from the classroom treasury; a nil ToWalletID means they
// returned to it.
type Transaction struct {
	ID           string          `db:"id" json:"id"`
	ClassroomID  string          `db:"classroom_id" json:"classroom_id"`
	FromWalletID *string         `db:"from_wallet_id" json:"from_wallet_id,omitempty"`
	ToWalletID   *string         `db:"to_wallet_id" json:"to_wallet_id,omitempty"`
	Amount       int64           `db:"amount" json:"amount"`
	Type         TransactionType `db:"type" json:"type"`
	Reason       string          `db:"reason" json:"reason"`
	ItemID       *string         `db:"item_id" json:"item_id,omitempty"`
	CreatedBy    *string         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// TransactionFilter narrows transaction history queries.
type TransactionFilter struct {
	ClassroomID string
	WalletID    string
	Types       []TransactionType
	Since       *time.Time
	Until       *time.Time
	Page        int
	PageSize    int
}

// Normalize clamps paging values to sane defaults.
func (f *TransactionFilter) Normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 || f.PageSize > 100 {
		f.PageSize = 20
	}
}
