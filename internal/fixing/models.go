// Package fixing models fixed-price forward supply contracts and the
// deliveries settled against them.
//
// Types and rules here are pure: they never touch storage or the clock
// directly. The service subpackage applies them inside transactions.
package fixing

import (
	"time"

	"github.com/shopspring/decimal"

	"bullion/internal/metal"
)

// Status is the persisted contract state.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusExpired   Status = "EXPIRED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// StatusNearExpiry is a computed label only. It is never persisted.
const StatusNearExpiry Status = "NEAR_EXPIRY"

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusSuspended, StatusExpired, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// PaymentMethod records how delivered metal is settled.
type PaymentMethod string

const (
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentCash     PaymentMethod = "CASH"
	PaymentMetal    PaymentMethod = "METAL"
	PaymentMixed    PaymentMethod = "MIXED"
)

// Contract is a fixed-price commitment for a quantity of metal delivered
// over time. Quantities are grams with three decimals and prices are per
// gram with four.
type Contract struct {
	Number         string          `json:"number"`
	ClientID       string          `json:"client_id"`
	CounterpartyID string          `json:"counterparty_id"`
	Metal          metal.Metal     `json:"metal"`
	Purity         metal.Purity    `json:"purity"`
	TotalGrams     decimal.Decimal `json:"total_grams"`
	DeliveredGrams decimal.Decimal `json:"delivered_grams"`
	FixedPrice     decimal.Decimal `json:"fixed_price_per_gram"`
	ContractDate   time.Time       `json:"contract_date"`
	ValidFrom      time.Time       `json:"valid_from"`
	ExpiresAt      time.Time       `json:"expires_at"`
	MinDelivery    decimal.Decimal `json:"min_delivery_grams"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	Status         Status          `json:"status"`
	Notes          string          `json:"notes,omitempty"`
	RenewedFrom    string          `json:"renewed_from,omitempty"`
	CreatedBy      string          `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Remaining returns the grams still to be delivered, never negative.
func (c Contract) Remaining() decimal.Decimal {
	r := c.TotalGrams.Sub(c.DeliveredGrams)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// PercentUsed is delivered over total as a percentage, rounded to two places.
func (c Contract) PercentUsed() decimal.Decimal {
	if c.TotalGrams.IsZero() {
		return decimal.Zero
	}
	return c.DeliveredGrams.Div(c.TotalGrams).Mul(decimal.NewFromInt(100)).Round(2)
}

// ResidualValue is the remaining quantity valued at the fixed price.
func (c Contract) ResidualValue() decimal.Decimal {
	return c.Remaining().Mul(c.FixedPrice).Round(2)
}

// DaysToExpiry counts whole days from now until expiry; negative once passed.
func (c Contract) DaysToExpiry(now time.Time) int {
	return int(c.ExpiresAt.Sub(now).Hours() / 24)
}

// IsFulfilled reports whether the committed quantity has been delivered.
func (c Contract) IsFulfilled() bool {
	return c.DeliveredGrams.GreaterThanOrEqual(c.TotalGrams)
}

// Delivery is an immutable settlement record. PriceApplied is copied from
// the contract when the delivery is recorded and never recomputed.
type Delivery struct {
	ID             string          `json:"id"`
	ContractNumber string          `json:"contract_number"`
	OperationRef   string          `json:"operation_ref,omitempty"`
	DeliveredAt    time.Time       `json:"delivered_at"`
	Grams          decimal.Decimal `json:"grams"`
	PriceApplied   decimal.Decimal `json:"price_applied_per_gram"`
	Value          decimal.Decimal `json:"value"`
	ShippingDocRef string          `json:"shipping_doc_ref,omitempty"`
	InvoiceRef     string          `json:"invoice_ref,omitempty"`
	RecordedBy     string          `json:"recorded_by,omitempty"`
	Notes          string          `json:"notes,omitempty"`
}

// Eligibility is the outcome of a delivery check with every violated rule.
type Eligibility struct {
	Valid   bool     `json:"valid"`
	Reasons []string `json:"reasons,omitempty"`
}

// Classification labels a gain/loss figure.
type Classification string

const (
	Gain Classification = "GAIN"
	Loss Classification = "LOSS"
)

// GainLoss compares a contract's fixed price with the market.
type GainLoss struct {
	ContractNumber string          `json:"contract_number"`
	FixedPrice     decimal.Decimal `json:"fixed_price"`
	MarketPrice    decimal.Decimal `json:"market_price"`
	PerGramDelta   decimal.Decimal `json:"per_gram_delta"`
	TotalDelta     decimal.Decimal `json:"total_delta"`
	PercentDelta   decimal.Decimal `json:"percent_delta"`
	Classification Classification  `json:"classification"`
	MarketSource   string          `json:"market_source,omitempty"`
}

// View is a contract with its derived fields, used for display.
type View struct {
	Contract
	RemainingGrams decimal.Decimal `json:"remaining_grams"`
	PercentUsed    decimal.Decimal `json:"percent_used"`
	DaysToExpiry   int             `json:"days_to_expiry"`
	ResidualValue  decimal.Decimal `json:"residual_value"`
	ComputedStatus Status          `json:"computed_status"`
}

// NewView derives the display fields for c at now.
func NewView(c Contract, now time.Time, nearExpiryDays int) View {
	return View{
		Contract:       c,
		RemainingGrams: c.Remaining(),
		PercentUsed:    c.PercentUsed(),
		DaysToExpiry:   c.DaysToExpiry(now),
		ResidualValue:  c.ResidualValue(),
		ComputedStatus: ComputedStatus(c, now, nearExpiryDays),
	}
}

// Terms are the caller-provided fields of a new contract.
type Terms struct {
	ClientID       string
	CounterpartyID string
	Metal          metal.Metal
	Purity         metal.Purity
	TotalGrams     decimal.Decimal
	FixedPrice     decimal.Decimal
	ContractDate   time.Time
	ValidFrom      time.Time
	ExpiresAt      time.Time
	MinDelivery    decimal.Decimal
	PaymentMethod  PaymentMethod
	Notes          string
	Draft          bool
}

// DeliveryRequest carries a delivery to record against a contract.
type DeliveryRequest struct {
	OperationRef   string
	Grams          decimal.Decimal
	DeliveredAt    time.Time
	ShippingDocRef string
	InvoiceRef     string
	Notes          string
}

// RenewalTerms overrides the defaults of a renewal. Zero values keep the
// defaults: market price, validity from tomorrow and the configured duration.
type RenewalTerms struct {
	FixedPrice *decimal.Decimal
	ValidFrom  time.Time
	ExpiresAt  time.Time
}
