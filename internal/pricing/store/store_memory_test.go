package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bullion/internal/metal"
	"bullion/internal/pricing"
	"bullion/pkg/platform/sentinel"
)

func TestInMemoryHistory(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryHistory()

	_, err := s.Latest(ctx, metal.Gold, 750)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, price := range []string{"46.10", "46.25", "46.40"} {
		require.NoError(t, s.Append(ctx, pricing.HistoryEntry{
			Metal:        metal.Gold,
			Purity:       750,
			PricePerGram: decimal.RequireFromString(price),
			Source:       pricing.TierPrimary,
			ResolvedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.Append(ctx, pricing.HistoryEntry{Metal: metal.Silver, Purity: 925, PricePerGram: decimal.RequireFromString("0.79")}))

	last, err := s.Latest(ctx, metal.Gold, 750)
	require.NoError(t, err)
	assert.Equal(t, "46.4", last.PricePerGram.String())

	list, err := s.List(ctx, metal.Gold, 750, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "46.4", list[0].PricePerGram.String())
	assert.Equal(t, "46.25", list[1].PricePerGram.String())
}
