// Package operations models desk trades and the derived values kept on them.
package operations

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bullion/internal/compliance"
	"bullion/internal/metal"
	dErrors "bullion/pkg/domain-errors"
)

// Kind is the direction of a trade.
type Kind string

const (
	KindPurchase Kind = "PURCHASE"
	KindSale     Kind = "SALE"
	KindSmelt    Kind = "SMELT"
	KindRefine   Kind = "REFINE"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindPurchase, KindSale, KindSmelt, KindRefine:
		return true
	}
	return false
}

// Status is the lifecycle state of an operation.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Operation is a single trade. TotalValue is always derived from NetGrams
// and AppliedPrice by RecalculateTotals.
type Operation struct {
	Number           string          `json:"number"`
	ClientID         string          `json:"client_id,omitempty"`
	SupplierID       string          `json:"supplier_id,omitempty"`
	Kind             Kind            `json:"kind"`
	Metal            metal.Metal     `json:"metal"`
	Purity           metal.Purity    `json:"purity"`
	GrossGrams       decimal.Decimal `json:"gross_grams"`
	NetGrams         decimal.Decimal `json:"net_grams"`
	MarketPrice      decimal.Decimal `json:"market_price_per_gram"`
	AppliedPrice     decimal.Decimal `json:"applied_price_per_gram"`
	TotalValue       decimal.Decimal `json:"total_value"`
	CashAmount       decimal.Decimal `json:"cash_amount"`
	TransferAmount   decimal.Decimal `json:"transfer_amount"`
	PaymentCompleted bool            `json:"payment_completed"`
	HoldingUntil     *time.Time      `json:"holding_until,omitempty"`
	AMLChecked       bool            `json:"aml_checked"`
	ReportSent       bool            `json:"report_sent"`
	Status           Status          `json:"status"`
	OperationDate    time.Time       `json:"operation_date"`
	ShippingDocRef   string          `json:"shipping_doc_ref,omitempty"`
	InvoiceRef       string          `json:"invoice_ref,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	RecordedBy       string          `json:"recorded_by,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Draft carries the caller-provided fields of a new operation.
type Draft struct {
	ClientID       string
	SupplierID     string
	Kind           Kind
	Metal          metal.Metal
	Purity         metal.Purity
	GrossGrams     decimal.Decimal
	NetGrams       decimal.Decimal
	MarketPrice    decimal.Decimal
	AppliedPrice   decimal.Decimal
	CashAmount     decimal.Decimal
	TransferAmount decimal.Decimal
	OperationDate  time.Time
	ShippingDocRef string
	InvoiceRef     string
	Notes          string
}

// HoldingPolicy sets the mandatory holding period of client purchases.
type HoldingPolicy struct {
	DefaultDays        int
	HighValueDays      int
	HighValueThreshold decimal.Decimal
}

// DefaultHoldingPolicy is ten days, thirty from 10000.
func DefaultHoldingPolicy() HoldingPolicy {
	return HoldingPolicy{
		DefaultDays:        10,
		HighValueDays:      30,
		HighValueThreshold: decimal.NewFromInt(10000),
	}
}

// Days returns the holding period for a purchase of value.
func (p HoldingPolicy) Days(value decimal.Decimal) int {
	if p.HighValueDays > 0 && value.GreaterThanOrEqual(p.HighValueThreshold) {
		return p.HighValueDays
	}
	return p.DefaultDays
}

// FormatNumber renders an operation number such as OP-2025-000042.
func FormatNumber(year, seq int) string {
	return fmt.Sprintf("OP-%d-%06d", year, seq)
}

// ParseSequence extracts the year and numeric suffix of an operation number.
func ParseSequence(number string) (year, seq int, err error) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 || parts[0] != "OP" {
		return 0, 0, fmt.Errorf("malformed operation number %q", number)
	}
	if year, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("malformed operation year %q: %w", number, err)
	}
	if seq, err = strconv.Atoi(parts[2]); err != nil {
		return 0, 0, fmt.Errorf("malformed operation sequence %q: %w", number, err)
	}
	return year, seq, nil
}

// RecalculateTotals rounds weights and prices and derives TotalValue.
func RecalculateTotals(op *Operation) {
	op.GrossGrams = op.GrossGrams.Round(3)
	op.NetGrams = op.NetGrams.Round(3)
	op.MarketPrice = op.MarketPrice.Round(4)
	op.AppliedPrice = op.AppliedPrice.Round(4)
	op.CashAmount = op.CashAmount.Round(2)
	op.TransferAmount = op.TransferAmount.Round(2)
	op.TotalValue = op.NetGrams.Mul(op.AppliedPrice).Round(2)
}

// MarginPercent is the applied price's premium over market, zero without a market price.
func (op Operation) MarginPercent() decimal.Decimal {
	if op.MarketPrice.IsZero() {
		return decimal.Zero
	}
	return op.AppliedPrice.Sub(op.MarketPrice).Div(op.MarketPrice).Mul(decimal.NewFromInt(100)).Round(2)
}

// Transaction projects op for the compliance rules.
func (op Operation) Transaction(client *compliance.Client) compliance.Transaction {
	tx := compliance.Transaction{
		Number:   op.Number,
		Date:     op.OperationDate,
		Kind:     string(op.Kind),
		Metal:    op.Metal,
		NetGrams: op.NetGrams,
		Value:    op.TotalValue,
	}
	if client != nil {
		tx.Counterparty = &compliance.Counterparty{FiscalID: client.FiscalID, Name: client.FullName()}
	}
	return tx
}

// ValidateDraft checks a draft and returns every problem found.
func ValidateDraft(d Draft) error {
	var reasons []string
	if !d.Kind.IsValid() {
		reasons = append(reasons, fmt.Sprintf("unsupported operation kind %q", d.Kind))
	}
	if !d.Metal.IsValid() {
		reasons = append(reasons, fmt.Sprintf("unsupported metal %q", d.Metal))
	}
	if !d.Purity.IsValid() {
		reasons = append(reasons, fmt.Sprintf("invalid purity %d", d.Purity))
	}
	if strings.TrimSpace(d.ClientID) == "" && strings.TrimSpace(d.SupplierID) == "" {
		reasons = append(reasons, "a client or a supplier is required")
	}
	if !d.NetGrams.IsPositive() {
		reasons = append(reasons, "net weight must be positive")
	}
	if !d.GrossGrams.IsZero() && d.GrossGrams.LessThan(d.NetGrams) {
		reasons = append(reasons, "gross weight cannot be below net weight")
	}
	if d.AppliedPrice.IsNegative() || d.MarketPrice.IsNegative() {
		reasons = append(reasons, "prices cannot be negative")
	}
	if d.CashAmount.IsNegative() || d.TransferAmount.IsNegative() {
		reasons = append(reasons, "payment amounts cannot be negative")
	}
	if len(reasons) > 0 {
		return dErrors.NewValidation("invalid operation", reasons)
	}
	return nil
}

// NewOperation builds a DRAFT operation from a validated draft.
func NewOperation(number string, d Draft, actor string, now time.Time) Operation {
	date := d.OperationDate
	if date.IsZero() {
		date = now
	}
	gross := d.GrossGrams
	if gross.IsZero() {
		gross = d.NetGrams
	}
	op := Operation{
		Number:         number,
		ClientID:       d.ClientID,
		SupplierID:     d.SupplierID,
		Kind:           d.Kind,
		Metal:          d.Metal,
		Purity:         d.Purity,
		GrossGrams:     gross,
		NetGrams:       d.NetGrams,
		MarketPrice:    d.MarketPrice,
		AppliedPrice:   d.AppliedPrice,
		CashAmount:     d.CashAmount,
		TransferAmount: d.TransferAmount,
		Status:         StatusDraft,
		OperationDate:  date,
		ShippingDocRef: d.ShippingDocRef,
		InvoiceRef:     d.InvoiceRef,
		Notes:          d.Notes,
		RecordedBy:     actor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	RecalculateTotals(&op)
	return op
}
