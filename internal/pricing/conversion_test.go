package pricing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bullion/internal/metal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPerGram(t *testing.T) {
	tests := []struct {
		spot   string
		purity metal.Purity
		margin string
		want   string
	}{
		{"2000", 750, "0.03", "46.7793"},
		{"2000", 999, "0.02", "62.9524"},
		{"1800", 925, "0.04", "51.3898"},
		{"2000", 750, "0.05", "45.8148"},
	}
	for _, tt := range tests {
		t.Run(tt.spot+"/"+tt.purity.String(), func(t *testing.T) {
			got := PerGram(dec(tt.spot), tt.purity, dec(tt.margin))
			assert.True(t, dec(tt.want).Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestCompareTrend(t *testing.T) {
	prev := dec("100")
	tests := []struct {
		name    string
		current string
		label   TrendLabel
		pct     string
	}{
		{"half percent up is stable", "100.5", TrendStable, "0.5"},
		{"half percent down is stable", "99.5", TrendStable, "-0.5"},
		{"beyond threshold rising", "100.51", TrendRising, "0.51"},
		{"beyond threshold falling", "99.4", TrendFalling, "-0.6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trend := CompareTrend(dec(tt.current), &prev)
			assert.Equal(t, tt.label, trend.Label)
			assert.True(t, dec(tt.pct).Equal(trend.PercentDelta), "pct %s", trend.PercentDelta)
			assert.True(t, dec(tt.current).Sub(prev).Equal(trend.AbsoluteDelta))
			assert.True(t, prev.Equal(trend.PreviousPrice))
		})
	}

	t.Run("no previous entry is stable", func(t *testing.T) {
		trend := CompareTrend(dec("42.1"), nil)
		assert.Equal(t, TrendStable, trend.Label)
		assert.True(t, trend.AbsoluteDelta.IsZero())
		assert.True(t, dec("42.1").Equal(trend.PreviousPrice))
	})
}

func TestTables(t *testing.T) {
	tables := DefaultTables()

	assert.True(t, dec("0.03").Equal(tables.Margin(metal.Gold, 750)))
	assert.True(t, dec("0.05").Equal(tables.Margin(metal.Gold, 916)))
	assert.True(t, dec("0.04").Equal(tables.Margin(metal.Silver, 925)))
	assert.True(t, dec("0.05").Equal(tables.Margin(metal.Palladium, 999)))

	assert.True(t, dec("48.75").Equal(tables.FallbackPrice(metal.Gold, 750)))
	assert.True(t, dec("65.00").Equal(tables.FallbackPrice(metal.Gold, 916)), "unknown purity uses 999 row")
	assert.True(t, dec("30.40").Equal(tables.FallbackPrice(metal.Platinum, 950)))
	assert.True(t, dec("1.00").Equal(tables.FallbackPrice(metal.Palladium, 999)), "unknown metal uses nominal price")
}

func TestLoadTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	content := `
margins:
  PALLADIUM:
    default: 0.06
    purities:
      950: 0.045
fallback:
  palladium:
    999: 28.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	tables, err := LoadTables(path)
	require.NoError(t, err)

	assert.True(t, dec("0.045").Equal(tables.Margin(metal.Palladium, 950)))
	assert.True(t, dec("0.06").Equal(tables.Margin(metal.Palladium, 500)))
	assert.True(t, dec("28.5").Equal(tables.FallbackPrice(metal.Palladium, 500)))
	assert.True(t, dec("0.02").Equal(tables.Margin(metal.Gold, 999)), "defaults kept")

	_, err = LoadTables(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "prices:GOLD:750", CacheKey(metal.Gold, 750))
	assert.Contains(t, CacheKey(metal.Silver, 925), CacheKeyPrefix())
}
