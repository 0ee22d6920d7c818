package compliance

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bullion/internal/metal"
	dErrors "bullion/pkg/domain-errors"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func clearedClient() Client {
	checked := now.AddDate(0, -1, 0)
	return Client{
		ID:                "c1",
		FiscalID:          "RSSMRA80A01H501U",
		LastName:          "Rossi",
		DocumentExpiry:    now.AddDate(2, 0, 0),
		AMLStatus:         AMLOk,
		LastAMLCheck:      &checked,
		AnnualCashCeiling: decimal.RequireFromString("2999.99"),
		CashUsed:          decimal.RequireFromString("2000"),
		CashYear:          2025,
		Active:            true,
	}
}

func TestCheckCashAuthorizationCeiling(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name   string
		amount string
		ok     bool
	}{
		{"well below", "500", true},
		{"exactly the remainder", "999.99", true},
		{"one cent over", "1000.00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckCashAuthorization(clearedClient(), decimal.RequireFromString(tt.amount), p, now)
			assert.Equal(t, tt.ok, got.Authorized)
			assert.True(t, decimal.RequireFromString("999.99").Equal(got.Remaining))
			if !tt.ok {
				require.Len(t, got.Reasons, 1)
				assert.Contains(t, got.Reasons[0], "requested 1000.00, remaining 999.99")
			}
		})
	}
}

func TestCheckCashAuthorizationCollectsEveryReason(t *testing.T) {
	c := clearedClient()
	c.Active = false
	c.DocumentExpiry = now.AddDate(0, 0, -1)
	c.AMLStatus = AMLBlocked

	got := CheckCashAuthorization(c, decimal.NewFromInt(5000), DefaultPolicy(), now)

	assert.False(t, got.Authorized)
	require.Len(t, got.Reasons, 4)
	assert.Equal(t, ReasonClientInactive, got.Reasons[0])
	assert.Equal(t, ReasonDocumentExpired, got.Reasons[1])
	assert.Equal(t, "AML check not completed (status BLOCKED)", got.Reasons[2])
	assert.True(t, strings.HasPrefix(got.Reasons[3], ReasonCeilingExceeded))
}

func TestCheckCashAuthorizationDocumentAndAMLAge(t *testing.T) {
	c := clearedClient()
	c.DocumentExpiry = time.Time{}
	stale := now.AddDate(-2, 0, 0)
	c.LastAMLCheck = &stale

	got := CheckCashAuthorization(c, decimal.NewFromInt(1), DefaultPolicy(), now)

	assert.Equal(t, []string{ReasonDocumentMissing, ReasonAMLExpired}, got.Reasons)
}

func TestCashCounterRestartsEachYear(t *testing.T) {
	c := clearedClient()
	nextYear := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	checked := nextYear.AddDate(0, 0, -1)
	c.LastAMLCheck = &checked

	got := CheckCashAuthorization(c, decimal.RequireFromString("2999.99"), DefaultPolicy(), nextYear)
	assert.True(t, got.Authorized)

	ApplyCashUsage(&c, decimal.NewFromInt(100), nextYear)
	assert.Equal(t, 2026, c.CashYear)
	assert.True(t, decimal.NewFromInt(100).Equal(c.CashUsed))
}

func TestApplyScreening(t *testing.T) {
	c := clearedClient()
	ApplyScreening(&c, Screening{Flagged: true, ListName: "EU sanctions"}, now)
	assert.Equal(t, AMLBlocked, c.AMLStatus)
	require.NotNil(t, c.LastAMLCheck)
	assert.Equal(t, now, *c.LastAMLCheck)

	ApplyScreening(&c, Screening{}, now)
	assert.Equal(t, AMLOk, c.AMLStatus)
}

func TestValidateTaxID(t *testing.T) {
	tests := []struct {
		in         string
		valid      bool
		normalized string
		reason     string
	}{
		{"00743110157", true, "00743110157", ""},
		{"IT 0074311 0157", true, "00743110157", ""},
		{"it00743110157", true, "00743110157", ""},
		{"00743110158", false, "00743110158", "tax id checksum mismatch"},
		{"0074311015", false, "", "tax id must have 11 digits"},
		{"0074311015A", false, "", "tax id must contain only digits"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ValidateTaxID(tt.in)
			assert.Equal(t, tt.valid, got.Valid)
			assert.Equal(t, tt.normalized, got.Normalized)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestCheckDigit(t *testing.T) {
	assert.Equal(t, 7, CheckDigit("0074311015"))
	assert.Equal(t, 0, CheckDigit("0000000000"))
}

func TestReportingThreshold(t *testing.T) {
	p := DefaultPolicy()
	tx := Transaction{Number: "OP-2025-000001", Date: now, Kind: "PURCHASE", Metal: metal.Gold,
		NetGrams: decimal.RequireFromString("200"), Value: decimal.RequireFromString("9999.99")}

	assert.False(t, ReportingRequired(tx, p))
	sub := PrepareSubmission(tx, p)
	assert.False(t, sub.Required)
	assert.Equal(t, "value 9999.99 below threshold 10000.00", sub.Reason)

	tx.Value = decimal.NewFromInt(10000)
	assert.True(t, ReportingRequired(tx, p))

	tx.Metal = metal.Silver
	assert.False(t, ReportingRequired(tx, p))
	assert.Equal(t, "metal SILVER is not reportable", PrepareSubmission(tx, p).Reason)
}

func TestPrepareSubmissionRendersRegulatorXML(t *testing.T) {
	tx := Transaction{
		Number: "OP-2025-000042", Date: now, Kind: "PURCHASE", Metal: metal.Gold,
		NetGrams: decimal.RequireFromString("250.5"), Value: decimal.RequireFromString("12000"),
		Counterparty: &Counterparty{FiscalID: "RSSMRA80A01H501U", Name: "Mario Rossi"},
	}
	sub := PrepareSubmission(tx, DefaultPolicy())
	require.True(t, sub.Required)

	doc, err := MarshalReport(sub.Payload)
	require.NoError(t, err)
	xml := string(doc)
	assert.True(t, strings.HasPrefix(xml, "<?xml"))
	assert.Contains(t, xml, "<ComunicazioneOro>")
	assert.Contains(t, xml, "<NumeroOperazione>OP-2025-000042</NumeroOperazione>")
	assert.Contains(t, xml, "<DataOperazione>2025-03-10</DataOperazione>")
	assert.Contains(t, xml, "<Quantita>250.500</Quantita>")
	assert.Contains(t, xml, "<Valore>12000.00</Valore>")
	assert.Contains(t, xml, "<CodiceFiscale>RSSMRA80A01H501U</CodiceFiscale>")
}

func TestProfileNumber(t *testing.T) {
	assert.Equal(t, "AML-2025-000042", ProfileNumber(2025, 42))
}

func TestValidateClient(t *testing.T) {
	err := ValidateClient(Client{AnnualCashCeiling: decimal.NewFromInt(-1)})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Len(t, dErrors.ReasonsOf(err), 3)
	assert.NoError(t, ValidateClient(clearedClient()))
}
