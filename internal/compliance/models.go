// Package compliance holds the anti-money-laundering rules applied to
// clients and to the operations they take part in.
package compliance

import (
	"time"

	"github.com/shopspring/decimal"

	"bullion/internal/metal"
)

// AMLStatus is the outcome of the latest client screening.
type AMLStatus string

const (
	AMLOk            AMLStatus = "OK"
	AMLPendingReview AMLStatus = "PENDING_REVIEW"
	AMLBlocked       AMLStatus = "BLOCKED"
)

// Client is a desk counterparty with its compliance profile. Cash usage is
// tracked per calendar year: CashUsed counts only for CashYear.
type Client struct {
	ID                string          `json:"id"`
	Seq               int64           `json:"seq"`
	FiscalID          string          `json:"fiscal_id"`
	FirstName         string          `json:"first_name"`
	LastName          string          `json:"last_name"`
	DocumentType      string          `json:"document_type,omitempty"`
	DocumentNumber    string          `json:"document_number,omitempty"`
	DocumentExpiry    time.Time       `json:"document_expiry"`
	Address           string          `json:"address,omitempty"`
	City              string          `json:"city,omitempty"`
	AMLStatus         AMLStatus       `json:"aml_status"`
	LastAMLCheck      *time.Time      `json:"last_aml_check,omitempty"`
	AnnualCashCeiling decimal.Decimal `json:"annual_cash_ceiling"`
	CashUsed          decimal.Decimal `json:"cash_used"`
	CashYear          int             `json:"cash_year"`
	Active            bool            `json:"active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// FullName joins first and last name.
func (c Client) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// UsedIn returns the cash used in year. A counter from a previous year reads as zero.
func (c Client) UsedIn(year int) decimal.Decimal {
	if c.CashYear != year {
		return decimal.Zero
	}
	return c.CashUsed
}

// Remaining returns the unused cash allowance for year, never negative.
func (c Client) Remaining(year int) decimal.Decimal {
	r := c.AnnualCashCeiling.Sub(c.UsedIn(year))
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// Authorization is the outcome of a cash check with every violated rule.
type Authorization struct {
	Authorized bool            `json:"authorized"`
	Reasons    []string        `json:"reasons,omitempty"`
	Remaining  decimal.Decimal `json:"remaining"`
}

// Screening is a watchlist lookup result.
type Screening struct {
	Flagged  bool   `json:"flagged"`
	ListName string `json:"list_name,omitempty"`
}

// TaxIDResult reports whether a VAT number passed format and checksum checks.
type TaxIDResult struct {
	Valid      bool   `json:"valid"`
	Normalized string `json:"normalized,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Company is a business registry record.
type Company struct {
	TaxID            string `json:"tax_id"`
	Active           bool   `json:"active"`
	LegalName        string `json:"legal_name"`
	RegisteredOffice string `json:"registered_office"`
	Activity         string `json:"activity"`
}

// CompanyCheck combines tax-id validation with the registry lookup.
type CompanyCheck struct {
	TaxID   TaxIDResult `json:"tax_id"`
	Company *Company    `json:"company,omitempty"`
}

// Transaction is the compliance-relevant view of a trade.
type Transaction struct {
	Number       string
	Date         time.Time
	Kind         string
	Metal        metal.Metal
	NetGrams     decimal.Decimal
	Value        decimal.Decimal
	Counterparty *Counterparty
}

// Counterparty identifies the client of a reported transaction.
type Counterparty struct {
	FiscalID string
	Name     string
}

// Submission is the payload sent to the regulator for a reportable trade.
type Submission struct {
	Required bool        `json:"required"`
	Reason   string      `json:"reason,omitempty"`
	Payload  *GoldReport `json:"payload,omitempty"`
}

// Profile is the data printed on a client's AML profile document.
type Profile struct {
	Number      string
	GeneratedAt time.Time
	Client      Client
}

// Policy holds the configurable thresholds of the gate.
type Policy struct {
	AMLValidity        time.Duration
	ReportingThreshold decimal.Decimal
	ReportableMetals   map[metal.Metal]bool
}

// DefaultPolicy returns the desk defaults: yearly AML checks and gold
// reporting from 10000.
func DefaultPolicy() Policy {
	return Policy{
		AMLValidity:        365 * 24 * time.Hour,
		ReportingThreshold: decimal.NewFromInt(10000),
		ReportableMetals:   map[metal.Metal]bool{metal.Gold: true},
	}
}
