package metal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetal(t *testing.T) {
	tests := []struct {
		in     string
		want   Metal
		symbol string
	}{
		{"gold", Gold, "XAU"},
		{" SILVER ", Silver, "XAG"},
		{"Platinum", Platinum, "XPT"},
		{"palladium", Palladium, "XPD"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := ParseMetal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m)
			assert.Equal(t, tt.symbol, m.Symbol())
		})
	}

	_, err := ParseMetal("copper")
	assert.Error(t, err)
}

func TestParsePurity(t *testing.T) {
	p, err := ParsePurity(750)
	require.NoError(t, err)
	assert.Equal(t, Purity(750), p)

	for _, bad := range []int{0, -1, 1001} {
		_, err := ParsePurity(bad)
		assert.Error(t, err, "purity %d", bad)
	}
}
