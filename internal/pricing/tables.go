package pricing

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"bullion/internal/metal"
)

// defaultMargin applies to metals without a margin row.
var defaultMargin = decimal.RequireFromString("0.05")

// lastResortPrice is used when the fallback table has no row for a metal.
var lastResortPrice = decimal.RequireFromString("1.00")

// MarginRow holds the commercial margins for one metal.
type MarginRow struct {
	Default  decimal.Decimal
	ByPurity map[metal.Purity]decimal.Decimal
}

// Tables holds the commercial margin table and the static emergency price list.
type Tables struct {
	Margins  map[metal.Metal]MarginRow
	Fallback map[metal.Metal]map[metal.Purity]decimal.Decimal
}

// DefaultTables returns the desk's standard margins and emergency prices (EUR/g).
func DefaultTables() Tables {
	d := decimal.RequireFromString
	return Tables{
		Margins: map[metal.Metal]MarginRow{
			metal.Gold: {
				Default: d("0.05"),
				ByPurity: map[metal.Purity]decimal.Decimal{
					999: d("0.02"),
					750: d("0.03"),
					585: d("0.04"),
				},
			},
			metal.Silver: {
				Default: d("0.05"),
				ByPurity: map[metal.Purity]decimal.Decimal{
					999: d("0.03"),
					925: d("0.04"),
				},
			},
		},
		Fallback: map[metal.Metal]map[metal.Purity]decimal.Decimal{
			metal.Gold: {
				999: d("65.00"),
				750: d("48.75"),
				585: d("38.03"),
				375: d("24.38"),
			},
			metal.Silver: {
				999: d("0.85"),
				925: d("0.79"),
				800: d("0.68"),
			},
			metal.Platinum: {
				999: d("32.00"),
				950: d("30.40"),
			},
		},
	}
}

// Margin returns the commercial margin for a metal and purity, falling back to
// the metal's default and then to the desk-wide default.
func (t Tables) Margin(m metal.Metal, p metal.Purity) decimal.Decimal {
	row, ok := t.Margins[m]
	if !ok {
		return defaultMargin
	}
	if margin, ok := row.ByPurity[p]; ok {
		return margin
	}
	if row.Default.IsZero() {
		return defaultMargin
	}
	return row.Default
}

// FallbackPrice returns the static emergency price for a metal and purity.
// Unknown purities use the metal's 999 entry; unknown metals use a nominal price.
func (t Tables) FallbackPrice(m metal.Metal, p metal.Purity) decimal.Decimal {
	row, ok := t.Fallback[m]
	if !ok {
		return lastResortPrice
	}
	if price, ok := row[p]; ok {
		return price
	}
	if price, ok := row[999]; ok {
		return price
	}
	return lastResortPrice
}

type tablesFile struct {
	Margins map[string]struct {
		Default  float64         `yaml:"default"`
		Purities map[int]float64 `yaml:"purities"`
	} `yaml:"margins"`
	Fallback map[string]map[int]float64 `yaml:"fallback"`
}

// LoadTables reads margin and fallback overrides from a YAML file and merges
// them over the defaults. Rows present in the file replace the default row.
func LoadTables(path string) (Tables, error) {
	tables := DefaultTables()
	if path == "" {
		return tables, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read pricing tables: %w", err)
	}
	var file tablesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Tables{}, fmt.Errorf("parse pricing tables: %w", err)
	}

	for name, row := range file.Margins {
		m, err := metal.ParseMetal(name)
		if err != nil {
			return Tables{}, fmt.Errorf("margins: %w", err)
		}
		mr := MarginRow{
			Default:  decimal.NewFromFloat(row.Default),
			ByPurity: make(map[metal.Purity]decimal.Decimal, len(row.Purities)),
		}
		for purity, margin := range row.Purities {
			mr.ByPurity[metal.Purity(purity)] = decimal.NewFromFloat(margin)
		}
		tables.Margins[m] = mr
	}

	for name, row := range file.Fallback {
		m, err := metal.ParseMetal(name)
		if err != nil {
			return Tables{}, fmt.Errorf("fallback: %w", err)
		}
		prices := make(map[metal.Purity]decimal.Decimal, len(row))
		for purity, price := range row {
			prices[metal.Purity(purity)] = decimal.NewFromFloat(price)
		}
		tables.Fallback[m] = prices
	}
	return tables, nil
}
