// Package metal defines the precious metals traded by the desk and their fineness.
package metal

import (
	"fmt"
	"strings"

	dErrors "bullion/pkg/domain-errors"
)

// GramsPerTroyOunce is the spot-pricing unit conversion factor.
const GramsPerTroyOunce = "31.1034768"

// Metal identifies a traded precious metal.
type Metal string

const (
	Gold      Metal = "GOLD"
	Silver    Metal = "SILVER"
	Platinum  Metal = "PLATINUM"
	Palladium Metal = "PALLADIUM"
)

// All lists every supported metal in display order.
var All = []Metal{Gold, Silver, Platinum, Palladium}

var symbols = map[Metal]string{
	Gold:      "XAU",
	Silver:    "XAG",
	Platinum:  "XPT",
	Palladium: "XPD",
}

// ParseMetal normalizes and validates a metal name.
func ParseMetal(s string) (Metal, error) {
	m := Metal(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := symbols[m]; !ok {
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported metal %q", s))
	}
	return m, nil
}

// Symbol returns the ISO 4217 commodity code used by spot price feeds.
func (m Metal) Symbol() string {
	return symbols[m]
}

func (m Metal) IsValid() bool {
	_, ok := symbols[m]
	return ok
}

func (m Metal) String() string {
	return string(m)
}

// Purity is metal fineness in parts per thousand (750 = 18k gold).
type Purity int

// ParsePurity validates a fineness value.
func ParsePurity(v int) (Purity, error) {
	p := Purity(v)
	if !p.IsValid() {
		return 0, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("purity must be between 1 and 1000, got %d", v))
	}
	return p, nil
}

func (p Purity) IsValid() bool {
	return p > 0 && p <= 1000
}

func (p Purity) String() string {
	return fmt.Sprintf("%d", int(p))
}
