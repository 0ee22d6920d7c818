package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bullion/internal/metal"
)

// Tier identifies where a resolved price came from.
type Tier string

const (
	TierPrimary        Tier = "PRIMARY"
	TierBackup         Tier = "BACKUP"
	TierFallbackStatic Tier = "FALLBACK_STATIC"
)

// IsLive reports whether the price came from a market-data provider.
func (t Tier) IsLive() bool {
	return t == TierPrimary || t == TierBackup
}

// TrendLabel classifies a price movement.
type TrendLabel string

const (
	TrendRising  TrendLabel = "RISING"
	TrendFalling TrendLabel = "FALLING"
	TrendStable  TrendLabel = "STABLE"
)

// Trend compares a resolved price with the previous resolution for the same key.
type Trend struct {
	PreviousPrice decimal.Decimal `json:"previous_price"`
	AbsoluteDelta decimal.Decimal `json:"absolute_delta"`
	PercentDelta  decimal.Decimal `json:"percent_delta"`
	Label         TrendLabel      `json:"label"`
}

// Quote is a per-gram price in the desk's local currency.
type Quote struct {
	Metal        metal.Metal     `json:"metal"`
	Purity       metal.Purity    `json:"purity"`
	PricePerGram decimal.Decimal `json:"price_per_gram"`
	ResolvedAt   time.Time       `json:"resolved_at"`
	Source       Tier            `json:"source"`
	Cached       bool            `json:"cached"`
	Trend        Trend           `json:"trend"`
}

// Request names one (metal, purity) pair to price.
type Request struct {
	Metal  metal.Metal
	Purity metal.Purity
}

// HistoryEntry is one logged resolution.
type HistoryEntry struct {
	Metal        metal.Metal
	Purity       metal.Purity
	PricePerGram decimal.Decimal
	Source       Tier
	ResolvedAt   time.Time
}

const cacheKeyPrefix = "prices:"

// CacheKey returns the cache key for a (metal, purity) pair.
func CacheKey(m metal.Metal, p metal.Purity) string {
	return fmt.Sprintf("%s%s:%d", cacheKeyPrefix, m, p)
}

// CacheKeyPrefix is shared by every price cache key.
func CacheKeyPrefix() string {
	return cacheKeyPrefix
}
