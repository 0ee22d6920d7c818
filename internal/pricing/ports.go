package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"bullion/internal/metal"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// SpotProvider fetches a troy-ounce spot price for a commodity symbol
// (XAU, XAG, ...) quoted in the given base currency.
type SpotProvider interface {
	Name() string
	FetchSpot(ctx context.Context, symbol, base string) (decimal.Decimal, error)
}

// Cache stores resolved quotes by key. Get reports a miss with ok=false and a
// nil error; implementations expire entries after the ttl passed to Set.
type Cache interface {
	Get(ctx context.Context, key string) (quote *Quote, ok bool, err error)
	Set(ctx context.Context, key string, quote *Quote, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// HistoryStore persists every resolution for trend comparison and audit.
type HistoryStore interface {
	Append(ctx context.Context, entry HistoryEntry) error
	// Latest returns the most recent entry for the pair, or sentinel.ErrNotFound.
	Latest(ctx context.Context, m metal.Metal, p metal.Purity) (*HistoryEntry, error)
	List(ctx context.Context, m metal.Metal, p metal.Purity, limit int) ([]HistoryEntry, error)
}
