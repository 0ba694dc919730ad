package models

import "time"

// MarketItemType separates personally redeemable rewards from classroom
// goals funded by pooled contributions.
type MarketItemType string

const (
	ItemIndividual MarketItemType = "INDIVIDUAL"
	ItemCollective MarketItemType = "COLLECTIVE"
)

// MarketItem is a purchasable reward. A nil Stock means unlimited supply.
// CurrentPrice drifts around BasePrice under the dynamic pricing engine,
// never outside [0.6, 1.6] x BasePrice.
type MarketItem struct {
	ID             string         `db:"id" json:"id"`
	ClassroomID    string         `db:"classroom_id" json:"classroom_id"`
	Name           string         `db:"name" json:"name"`
	Description    *string        `db:"description" json:"description,omitempty"`
	Category       string         `db:"category" json:"category"`
	Type           MarketItemType `db:"type" json:"type"`
	BasePrice      int64          `db:"base_price" json:"base_price"`
	CurrentPrice   int64          `db:"current_price" json:"current_price"`
	Stock          *int           `db:"stock" json:"stock,omitempty"`
	GoalAmount     *int64         `db:"goal_amount" json:"goal_amount,omitempty"`
	FundedAmount   int64          `db:"funded_amount" json:"funded_amount"`
	Active         bool           `db:"active" json:"active"`
	PriceUpdatedAt *time.Time     `db:"price_updated_at" json:"price_updated_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// InStock reports whether the item can currently be purchased.
func (m *MarketItem) InStock() bool {
	return m.Stock == nil || *m.Stock > 0
}

// ItemDemand is the approved-purchase count for one item over a window.
type ItemDemand struct {
	ItemID        string `db:"item_id"`
	ApprovedCount int    `db:"approved_count"`
	PendingCount  int    `db:"pending_count"`
}

// PriceAdjustment records the outcome of one pricing pass for one item.
type PriceAdjustment struct {
	ItemID    string  `json:"item_id"`
	ItemName  string  `json:"item_name"`
	OldPrice  int64   `json:"old_price"`
	NewPrice  int64   `json:"new_price"`
	Factor    float64 `json:"factor"`
	ChangePct float64 `json:"change_pct"`
	Applied   bool    `json:"applied"`
}

// EconomicSnapshot is a daily record of classroom economy aggregates used
// for inflation and purchasing power trends.
type EconomicSnapshot struct {
	ID                string    `db:"id" json:"id"`
	ClassroomID       string    `db:"classroom_id" json:"classroom_id"`
	SnapshotDate      time.Time `db:"snapshot_date" json:"snapshot_date"`
	CirculatingSupply int64     `db:"circulating_supply" json:"circulating_supply"`
	TreasuryRemaining int64     `db:"treasury_remaining" json:"treasury_remaining"`
	AvgPriceIndex     float64   `db:"avg_price_index" json:"avg_price_index"`
	AvgBalance        float64   `db:"avg_balance" json:"avg_balance"`
	ActiveStudents    int       `db:"active_students" json:"active_students"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
