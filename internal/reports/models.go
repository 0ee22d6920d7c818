// Package reports aggregates desk figures for the dashboard. A figure that
// could not be computed is reported as unavailable, never as zero.
package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// Metric is one aggregated figure. Error is set when Available is false.
type Metric[T any] struct {
	Value     T      `json:"value"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

func available[T any](v T) Metric[T] {
	return Metric[T]{Value: v, Available: true}
}

func unavailable[T any](err error) Metric[T] {
	return Metric[T]{Error: err.Error()}
}

// DailySummary is the desk activity of one calendar day.
type DailySummary struct {
	Date                time.Time               `json:"date"`
	ExpiringToday       Metric[int]             `json:"expiring_today"`
	ExpiringWithinWeek  Metric[int]             `json:"expiring_within_week"`
	DeliveriesCount     Metric[int]             `json:"deliveries_count"`
	DeliveriesValue     Metric[decimal.Decimal] `json:"deliveries_value"`
	OperationsCount     Metric[int]             `json:"operations_count"`
	OperationsValue     Metric[decimal.Decimal] `json:"operations_value"`
	ActiveResidualValue Metric[decimal.Decimal] `json:"active_residual_value"`
}

// Performance aggregates gain/loss of the contracts signed in a period.
type Performance struct {
	From            time.Time               `json:"from"`
	To              time.Time               `json:"to"`
	Contracts       Metric[int]             `json:"contracts"`
	ContractsInGain Metric[int]             `json:"contracts_in_gain"`
	ContractsInLoss Metric[int]             `json:"contracts_in_loss"`
	TotalGain       Metric[decimal.Decimal] `json:"total_gain"`
	TotalLoss       Metric[decimal.Decimal] `json:"total_loss"`
	Net             Metric[decimal.Decimal] `json:"net"`
	VolumeGrams     Metric[decimal.Decimal] `json:"volume_grams"`
	MarginPercent   Metric[decimal.Decimal] `json:"margin_percent"`
}

// ExpiryReport buckets active contracts by how soon they expire.
type ExpiryReport struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	Expired         Metric[[]string] `json:"expired"`
	ExpiringToday   Metric[[]string] `json:"expiring_today"`
	ExpiringInWeek  Metric[[]string] `json:"expiring_in_week"`
	ExpiringInMonth Metric[[]string] `json:"expiring_in_month"`
}
