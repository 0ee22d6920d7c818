package operations

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bullion/internal/compliance"
	"bullion/internal/metal"
	dErrors "bullion/pkg/domain-errors"
)

func TestHoldingPolicyDays(t *testing.T) {
	p := DefaultHoldingPolicy()
	tests := []struct {
		value string
		days  int
	}{
		{"9999.99", 10},
		{"10000", 30},
		{"25000", 30},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.days, p.Days(decimal.RequireFromString(tt.value)))
		})
	}
}

func TestNumbering(t *testing.T) {
	assert.Equal(t, "OP-2025-000042", FormatNumber(2025, 42))
	year, seq, err := ParseSequence("OP-2025-000042")
	require.NoError(t, err)
	assert.Equal(t, 2025, year)
	assert.Equal(t, 42, seq)

	_, _, err = ParseSequence("FIS-2025-001")
	assert.Error(t, err)
}

func TestNewOperationRoundsAndDerivesTotal(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	op := NewOperation("OP-2025-000001", Draft{
		ClientID:     "c1",
		Kind:         KindPurchase,
		Metal:        metal.Gold,
		Purity:       750,
		NetGrams:     decimal.RequireFromString("12.34567"),
		MarketPrice:  decimal.RequireFromString("48"),
		AppliedPrice: decimal.RequireFromString("46.08"),
	}, "desk-1", now)

	assert.Equal(t, StatusDraft, op.Status)
	assert.Equal(t, now, op.OperationDate)
	assert.Equal(t, "12.346", op.NetGrams.String())
	assert.True(t, op.GrossGrams.Equal(op.NetGrams))
	assert.Equal(t, "568.90", op.TotalValue.StringFixed(2))
	assert.Equal(t, "-4.00", op.MarginPercent().StringFixed(2))
}

func TestValidateDraftCollectsEveryReason(t *testing.T) {
	err := ValidateDraft(Draft{
		Kind:       KindSale,
		Metal:      metal.Gold,
		Purity:     750,
		ClientID:   "c1",
		NetGrams:   decimal.NewFromInt(10),
		GrossGrams: decimal.NewFromInt(9),
		CashAmount: decimal.NewFromInt(-1),
	})
	require.Error(t, err)
	assert.ElementsMatch(t, []string{
		"gross weight cannot be below net weight",
		"payment amounts cannot be negative",
	}, dErrors.ReasonsOf(err))
}

func TestTransactionProjection(t *testing.T) {
	op := Operation{Number: "OP-2025-000001", Kind: KindPurchase, Metal: metal.Gold,
		NetGrams: decimal.NewFromInt(250), TotalValue: decimal.NewFromInt(12500)}
	tx := op.Transaction(&compliance.Client{FiscalID: "RSSMRA80A01H501U", FirstName: "Mario", LastName: "Rossi"})

	assert.Equal(t, "PURCHASE", tx.Kind)
	require.NotNil(t, tx.Counterparty)
	assert.Equal(t, "Mario Rossi", tx.Counterparty.Name)
	assert.Nil(t, op.Transaction(nil).Counterparty)
}
