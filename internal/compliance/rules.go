package compliance

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	dErrors "bullion/pkg/domain-errors"
)

const (
	ReasonDocumentExpired = "identity document expired"
	ReasonDocumentMissing = "identity document expiry not recorded"
	ReasonAMLNotOK        = "AML check not completed"
	ReasonAMLExpired      = "AML check expired"
	ReasonCeilingExceeded = "annual cash ceiling exceeded"
	ReasonClientInactive  = "client is inactive"
)

// AMLCurrent reports whether the client's AML status is OK and its last
// check is within validity of now.
func AMLCurrent(c Client, validity time.Duration, now time.Time) bool {
	if c.AMLStatus != AMLOk || c.LastAMLCheck == nil {
		return false
	}
	return !c.LastAMLCheck.Add(validity).Before(now)
}

// CheckCashAuthorization evaluates every cash rule for amount and collects
// all violations.
func CheckCashAuthorization(c Client, amount decimal.Decimal, p Policy, now time.Time) Authorization {
	var reasons []string
	if !c.Active {
		reasons = append(reasons, ReasonClientInactive)
	}
	switch {
	case c.DocumentExpiry.IsZero():
		reasons = append(reasons, ReasonDocumentMissing)
	case c.DocumentExpiry.Before(now):
		reasons = append(reasons, ReasonDocumentExpired)
	}
	switch {
	case c.AMLStatus != AMLOk:
		reasons = append(reasons, fmt.Sprintf("%s (status %s)", ReasonAMLNotOK, c.AMLStatus))
	case !AMLCurrent(c, p.AMLValidity, now):
		reasons = append(reasons, ReasonAMLExpired)
	}
	remaining := c.Remaining(now.Year())
	if amount.GreaterThan(remaining) {
		reasons = append(reasons, fmt.Sprintf("%s: requested %s, remaining %s",
			ReasonCeilingExceeded, amount.StringFixed(2), remaining.StringFixed(2)))
	}
	return Authorization{Authorized: len(reasons) == 0, Reasons: reasons, Remaining: remaining}
}

// ApplyCashUsage adds amount to the client's counter for now's year,
// restarting the counter when the year has rolled over.
func ApplyCashUsage(c *Client, amount decimal.Decimal, now time.Time) {
	year := now.Year()
	c.CashUsed = c.UsedIn(year).Add(amount).Round(2)
	c.CashYear = year
	c.UpdatedAt = now
}

// ApplyScreening updates the AML state from a watchlist result.
func ApplyScreening(c *Client, s Screening, now time.Time) {
	if s.Flagged {
		c.AMLStatus = AMLBlocked
	} else {
		c.AMLStatus = AMLOk
	}
	c.LastAMLCheck = &now
	c.UpdatedAt = now
}

// ValidateTaxID checks an Italian VAT number: an optional IT prefix and
// eleven digits whose last digit is the Luhn-style check digit of the first
// ten, doubling digits at odd zero-based positions.
func ValidateTaxID(raw string) TaxIDResult {
	v := strings.ToUpper(strings.ReplaceAll(raw, " ", ""))
	v = strings.TrimPrefix(v, "IT")
	if len(v) != 11 {
		return TaxIDResult{Reason: "tax id must have 11 digits"}
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return TaxIDResult{Reason: "tax id must contain only digits"}
		}
	}
	if CheckDigit(v[:10]) != int(v[10]-'0') {
		return TaxIDResult{Normalized: v, Reason: "tax id checksum mismatch"}
	}
	return TaxIDResult{Valid: true, Normalized: v}
}

// CheckDigit computes the check digit for ten leading digits.
func CheckDigit(digits string) int {
	sum := 0
	for i := 0; i < len(digits); i++ {
		d := int(digits[i] - '0')
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d = d/10 + d%10
			}
		}
		sum += d
	}
	return (10 - sum%10) % 10
}

// ReportingRequired reports whether tx must be disclosed to the regulator.
func ReportingRequired(tx Transaction, p Policy) bool {
	return tx.Value.GreaterThanOrEqual(p.ReportingThreshold) && p.ReportableMetals[tx.Metal]
}

// PrepareSubmission assembles the regulator payload for tx, or explains why
// none is needed.
func PrepareSubmission(tx Transaction, p Policy) Submission {
	if !p.ReportableMetals[tx.Metal] {
		return Submission{Reason: fmt.Sprintf("metal %s is not reportable", tx.Metal)}
	}
	if tx.Value.LessThan(p.ReportingThreshold) {
		return Submission{Reason: fmt.Sprintf("value %s below threshold %s",
			tx.Value.StringFixed(2), p.ReportingThreshold.StringFixed(2))}
	}
	return Submission{Required: true, Payload: newGoldReport(tx)}
}

// ProfileNumber renders the AML profile sheet number for a client.
func ProfileNumber(year int, seq int64) string {
	return fmt.Sprintf("AML-%d-%06d", year, seq)
}

// ValidateClient checks the fields required to open a client profile.
func ValidateClient(c Client) error {
	var reasons []string
	if strings.TrimSpace(c.FiscalID) == "" {
		reasons = append(reasons, "fiscal id is required")
	}
	if strings.TrimSpace(c.LastName) == "" {
		reasons = append(reasons, "last name is required")
	}
	if c.AnnualCashCeiling.IsNegative() {
		reasons = append(reasons, "cash ceiling cannot be negative")
	}
	if len(reasons) > 0 {
		return dErrors.NewValidation("invalid client", reasons)
	}
	return nil
}
