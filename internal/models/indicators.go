package models

import "time"

// HealthLabel buckets the composite health score.
type HealthLabel string

const (
	HealthExcellent HealthLabel = "EXCELLENT"
	HealthGood      HealthLabel = "GOOD"
	HealthFair      HealthLabel = "FAIR"
	HealthCritical  HealthLabel = "CRITICAL"
)

// EconomicIndicators is the computed dashboard for one classroom economy.
type EconomicIndicators struct {
	ClassroomID       string      `json:"classroom_id"`
	Gini              float64     `json:"gini"`
	PalmaRatio        float64     `json:"palma_ratio"`
	HHI               float64     `json:"hhi"`
	Velocity          float64     `json:"velocity"`
	InflationRate     float64     `json:"inflation_rate"`
	PurchasingPower   float64     `json:"purchasing_power"`
	CirculatingSupply int64       `json:"circulating_supply"`
	TreasuryRemaining int64       `json:"treasury_remaining"`
	TreasuryRatio     float64     `json:"treasury_ratio"`
	AvgBalance        float64     `json:"avg_balance"`
	MedianBalance     float64     `json:"median_balance"`
	ActiveStudents    int         `json:"active_students"`
	ParticipationRate float64     `json:"participation_rate"`
	PendingRequests   int         `json:"pending_requests"`
	HealthScore       int         `json:"health_score"`
	HealthLabel       HealthLabel `json:"health_label"`
	ComputedAt        time.Time   `json:"computed_at"`
}
