package fixing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	dErrors "bullion/pkg/domain-errors"
)

const numberPrefix = "FIS"

var hundred = decimal.NewFromInt(100)

// FormatNumber renders a contract number such as FIS-2025-007.
func FormatNumber(year, seq int) string {
	return fmt.Sprintf("%s-%d-%03d", numberPrefix, year, seq)
}

// ParseSequence extracts the year and numeric suffix of a contract number.
func ParseSequence(number string) (year, seq int, err error) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 || parts[0] != numberPrefix {
		return 0, 0, fmt.Errorf("malformed contract number %q", number)
	}
	if year, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("malformed contract year %q: %w", number, err)
	}
	if seq, err = strconv.Atoi(parts[2]); err != nil {
		return 0, 0, fmt.Errorf("malformed contract sequence %q: %w", number, err)
	}
	return year, seq, nil
}

// IsExpired reports whether the expiry instant has passed.
func IsExpired(c Contract, now time.Time) bool {
	return c.ExpiresAt.Before(now)
}

// CanAcceptDelivery checks every delivery rule and returns all violations.
func CanAcceptDelivery(c Contract, grams decimal.Decimal, now time.Time) Eligibility {
	var reasons []string
	if c.Status != StatusActive {
		reasons = append(reasons, fmt.Sprintf("contract is not active (status %s)", c.Status))
	}
	if IsExpired(c, now) {
		reasons = append(reasons, fmt.Sprintf("contract expired on %s", c.ExpiresAt.Format(time.DateOnly)))
	}
	if !grams.IsPositive() {
		reasons = append(reasons, "delivery weight must be positive")
	}
	if grams.LessThan(c.MinDelivery) {
		reasons = append(reasons, fmt.Sprintf("minimum delivery is %sg", c.MinDelivery.StringFixed(3)))
	}
	if grams.GreaterThan(c.Remaining()) {
		reasons = append(reasons, fmt.Sprintf("weight exceeds remaining quantity of %sg", c.Remaining().StringFixed(3)))
	}
	return Eligibility{Valid: len(reasons) == 0, Reasons: reasons}
}

// RecomputeDerivedState applies the automatic transitions to the persisted
// state and reports whether it changed. It is idempotent.
func RecomputeDerivedState(c *Contract, now time.Time) bool {
	before := c.Status
	switch {
	case c.Status == StatusCancelled:
	case c.IsFulfilled():
		c.Status = StatusCompleted
	case c.Status == StatusActive && IsExpired(*c, now):
		c.Status = StatusExpired
	}
	return c.Status != before
}

// ComputedStatus is the status shown to operators. ACTIVE contracts within
// nearExpiryDays of expiry read as NEAR_EXPIRY without changing Status.
func ComputedStatus(c Contract, now time.Time, nearExpiryDays int) Status {
	if c.Status == StatusCancelled {
		return StatusCancelled
	}
	if c.IsFulfilled() {
		return StatusCompleted
	}
	if c.Status == StatusActive && IsExpired(c, now) {
		return StatusExpired
	}
	if c.Status == StatusActive {
		if days := c.DaysToExpiry(now); days >= 0 && days <= nearExpiryDays {
			return StatusNearExpiry
		}
	}
	return c.Status
}

// NewDelivery builds the settlement record for an accepted delivery and
// applies it to c. The caller must have checked CanAcceptDelivery.
func NewDelivery(c *Contract, id string, req DeliveryRequest, actor string, now time.Time) Delivery {
	at := req.DeliveredAt
	if at.IsZero() {
		at = now
	}
	d := Delivery{
		ID:             id,
		ContractNumber: c.Number,
		OperationRef:   req.OperationRef,
		DeliveredAt:    at,
		Grams:          req.Grams.Round(3),
		PriceApplied:   c.FixedPrice,
		Value:          req.Grams.Round(3).Mul(c.FixedPrice).Round(2),
		ShippingDocRef: req.ShippingDocRef,
		InvoiceRef:     req.InvoiceRef,
		RecordedBy:     actor,
		Notes:          req.Notes,
	}
	c.DeliveredGrams = c.DeliveredGrams.Add(d.Grams)
	c.UpdatedAt = now
	RecomputeDerivedState(c, now)
	return d
}

// ComputeGainLoss values the remaining quantity against marketPrice.
func ComputeGainLoss(c Contract, marketPrice decimal.Decimal) GainLoss {
	perGram := c.FixedPrice.Sub(marketPrice)
	percent := decimal.Zero
	if !marketPrice.IsZero() {
		percent = perGram.Div(marketPrice).Mul(hundred).Round(2)
	}
	class := Gain
	if perGram.IsNegative() {
		class = Loss
	}
	return GainLoss{
		ContractNumber: c.Number,
		FixedPrice:     c.FixedPrice,
		MarketPrice:    marketPrice,
		PerGramDelta:   perGram.Round(4),
		TotalDelta:     perGram.Mul(c.Remaining()).Round(2),
		PercentDelta:   percent,
		Classification: class,
	}
}

// ValidateTerms checks the fields of a new contract and returns all problems.
func ValidateTerms(t Terms) error {
	var reasons []string
	if strings.TrimSpace(t.ClientID) == "" {
		reasons = append(reasons, "client is required")
	}
	if !t.Metal.IsValid() {
		reasons = append(reasons, fmt.Sprintf("unsupported metal %q", t.Metal))
	}
	if !t.Purity.IsValid() {
		reasons = append(reasons, fmt.Sprintf("invalid purity %d", t.Purity))
	}
	if !t.TotalGrams.IsPositive() {
		reasons = append(reasons, "total quantity must be positive")
	}
	if !t.FixedPrice.IsPositive() {
		reasons = append(reasons, "fixed price must be positive")
	}
	if t.MinDelivery.IsNegative() {
		reasons = append(reasons, "minimum delivery cannot be negative")
	}
	if t.MinDelivery.GreaterThan(t.TotalGrams) {
		reasons = append(reasons, "minimum delivery exceeds total quantity")
	}
	if t.ExpiresAt.IsZero() {
		reasons = append(reasons, "expiry date is required")
	} else if !t.ValidFrom.IsZero() && t.ExpiresAt.Before(t.ValidFrom) {
		reasons = append(reasons, "expiry precedes validity start")
	}
	if len(reasons) > 0 {
		return dErrors.NewValidation("invalid contract terms", reasons)
	}
	return nil
}

// NewContract builds a contract from validated terms.
func NewContract(number string, t Terms, actor string, now time.Time) Contract {
	status := StatusActive
	if t.Draft {
		status = StatusDraft
	}
	contractDate := t.ContractDate
	if contractDate.IsZero() {
		contractDate = now
	}
	validFrom := t.ValidFrom
	if validFrom.IsZero() {
		validFrom = contractDate
	}
	payment := t.PaymentMethod
	if payment == "" {
		payment = PaymentTransfer
	}
	return Contract{
		Number:         number,
		ClientID:       t.ClientID,
		CounterpartyID: t.CounterpartyID,
		Metal:          t.Metal,
		Purity:         t.Purity,
		TotalGrams:     t.TotalGrams.Round(3),
		DeliveredGrams: decimal.Zero,
		FixedPrice:     t.FixedPrice.Round(4),
		ContractDate:   contractDate,
		ValidFrom:      validFrom,
		ExpiresAt:      t.ExpiresAt,
		MinDelivery:    t.MinDelivery.Round(3),
		PaymentMethod:  payment,
		Status:         status,
		Notes:          t.Notes,
		CreatedBy:      actor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// CanRenew returns an invariant violation when c cannot be renewed.
func CanRenew(c Contract) error {
	if c.Status != StatusActive {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("only active contracts can be renewed, %s is %s", c.Number, c.Status))
	}
	if !c.Remaining().IsPositive() {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("contract %s has no remaining quantity to renew", c.Number))
	}
	return nil
}

// RenewalOf builds the successor of src carrying its remaining quantity.
func RenewalOf(src Contract, number string, price decimal.Decimal, terms RenewalTerms, months int, actor string, now time.Time) Contract {
	validFrom := terms.ValidFrom
	if validFrom.IsZero() {
		validFrom = now.AddDate(0, 0, 1)
	}
	expires := terms.ExpiresAt
	if expires.IsZero() {
		expires = now.AddDate(0, months, 0)
	}
	next := NewContract(number, Terms{
		ClientID:       src.ClientID,
		CounterpartyID: src.CounterpartyID,
		Metal:          src.Metal,
		Purity:         src.Purity,
		TotalGrams:     src.Remaining(),
		FixedPrice:     price,
		ContractDate:   now,
		ValidFrom:      validFrom,
		ExpiresAt:      expires,
		MinDelivery:    decimal.Min(src.MinDelivery, src.Remaining()),
		PaymentMethod:  src.PaymentMethod,
		Notes:          "Automatic renewal of contract " + src.Number,
	}, actor, now)
	next.RenewedFrom = src.Number
	return next
}

var transitions = map[Status][]Status{
	StatusDraft:     {StatusActive, StatusCancelled},
	StatusActive:    {StatusSuspended, StatusExpired, StatusCompleted, StatusCancelled},
	StatusSuspended: {StatusActive, StatusCancelled},
}

// Transition moves c to target when the state machine allows it.
func Transition(c *Contract, target Status, now time.Time) error {
	for _, allowed := range transitions[c.Status] {
		if allowed == target {
			c.Status = target
			c.UpdatedAt = now
			return nil
		}
	}
	return dErrors.New(dErrors.CodeInvariantViolation,
		fmt.Sprintf("contract %s cannot move from %s to %s", c.Number, c.Status, target))
}
