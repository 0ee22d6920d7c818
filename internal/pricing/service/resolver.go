// Package service resolves per-gram metal prices through a degrading chain of
// sources: cache, primary feed, backup feed, static table.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"bullion/internal/metal"
	"bullion/internal/pricing"
	"bullion/internal/pricing/metrics"
	"bullion/internal/pricing/providers"
	"bullion/pkg/platform/circuit"
	"bullion/pkg/platform/sentinel"
	"bullion/pkg/requestcontext"
)

const (
	defaultCacheTTL        = 5 * time.Minute
	defaultProviderTimeout = 10 * time.Second
	defaultBaseCurrency    = "EUR"
	batchConcurrency       = 4
)

// Config holds resolver tuning values.
type Config struct {
	CacheTTL        time.Duration
	ProviderTimeout time.Duration
	BaseCurrency    string
	Tables          pricing.Tables
}

type tier struct {
	source   pricing.Tier
	provider pricing.SpotProvider
	breaker  *circuit.Breaker
}

// Resolver produces a price for every request. Provider failures are logged
// and absorbed; the static table is the floor of the chain.
type Resolver struct {
	tiers   []tier
	cache   pricing.Cache
	history pricing.HistoryStore
	cfg     Config

	group       singleflight.Group
	breakerOpts []circuit.Option
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Resolver) {
		r.tracer = t
	}
}

// WithBreakerOptions configures the per-provider circuit breakers.
func WithBreakerOptions(opts ...circuit.Option) Option {
	return func(r *Resolver) {
		r.breakerOpts = append(r.breakerOpts, opts...)
	}
}

// New builds a Resolver. backup, cache and history may be nil.
func New(primary, backup pricing.SpotProvider, cache pricing.Cache, history pricing.HistoryStore, cfg Config, opts ...Option) *Resolver {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = defaultProviderTimeout
	}
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = defaultBaseCurrency
	}
	if cfg.Tables.Fallback == nil {
		cfg.Tables = pricing.DefaultTables()
	}

	r := &Resolver{
		cache:   cache,
		history: history,
		cfg:     cfg,
		logger:  slog.New(slog.DiscardHandler),
		tracer:  otel.Tracer("bullion/pricing"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if primary != nil {
		r.tiers = append(r.tiers, tier{source: pricing.TierPrimary, provider: primary, breaker: circuit.New(primary.Name(), r.breakerOpts...)})
	}
	if backup != nil {
		r.tiers = append(r.tiers, tier{source: pricing.TierBackup, provider: backup, breaker: circuit.New(backup.Name(), r.breakerOpts...)})
	}
	return r
}

// Resolve returns the current per-gram price for (m, p). It never fails and
// is not interrupted by cancellation of ctx; provider calls are bounded by
// the configured timeout instead.
func (r *Resolver) Resolve(ctx context.Context, m metal.Metal, p metal.Purity) pricing.Quote {
	ctx, span := r.tracer.Start(ctx, "pricing.Resolve", trace.WithAttributes(
		attribute.String("metal", m.String()),
		attribute.Int("purity", int(p)),
	))
	defer span.End()

	key := pricing.CacheKey(m, p)
	if q, ok := r.cached(ctx, key); ok {
		span.SetAttributes(attribute.String("source", string(q.Source)), attribute.Bool("cached", true))
		r.metrics.IncResolution(string(q.Source), true)
		return q
	}

	flightCtx := context.WithoutCancel(ctx)
	v, _, shared := r.group.Do(key, func() (any, error) {
		if q, ok := r.cached(flightCtx, key); ok {
			return q, nil
		}
		return r.resolveFresh(flightCtx, m, p), nil
	})
	q := v.(pricing.Quote)
	span.SetAttributes(
		attribute.String("source", string(q.Source)),
		attribute.Bool("cached", q.Cached),
		attribute.Bool("shared", shared),
	)
	r.metrics.IncResolution(string(q.Source), q.Cached)
	return q
}

// ResolveMany prices every request concurrently. Results keep request order.
func (r *Resolver) ResolveMany(ctx context.Context, reqs []pricing.Request) []pricing.Quote {
	out := make([]pricing.Quote, len(reqs))
	var g errgroup.Group
	g.SetLimit(batchConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			out[i] = r.Resolve(ctx, req.Metal, req.Purity)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Invalidate drops the cached quote for one pair.
func (r *Resolver) Invalidate(ctx context.Context, m metal.Metal, p metal.Purity) error {
	if r.cache == nil {
		return nil
	}
	if err := r.cache.Delete(ctx, pricing.CacheKey(m, p)); err != nil {
		return fmt.Errorf("invalidate %s: %w", pricing.CacheKey(m, p), err)
	}
	return nil
}

// InvalidateAll drops every cached price. Entries outside the price key space
// are left alone.
func (r *Resolver) InvalidateAll(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	if err := r.cache.DeletePrefix(ctx, pricing.CacheKeyPrefix()); err != nil {
		return fmt.Errorf("invalidate price cache: %w", err)
	}
	return nil
}

// History lists the most recent resolutions for a pair, newest first.
func (r *Resolver) History(ctx context.Context, m metal.Metal, p metal.Purity, limit int) ([]pricing.HistoryEntry, error) {
	if r.history == nil {
		return nil, nil
	}
	return r.history.List(ctx, m, p, limit)
}

func (r *Resolver) cached(ctx context.Context, key string) (pricing.Quote, bool) {
	if r.cache == nil {
		return pricing.Quote{}, false
	}
	q, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.WarnContext(ctx, "price cache read failed", "key", key, "error", err)
		return pricing.Quote{}, false
	}
	if !ok || q == nil {
		return pricing.Quote{}, false
	}
	if requestcontext.Now(ctx).Sub(q.ResolvedAt) >= r.cfg.CacheTTL {
		return pricing.Quote{}, false
	}
	hit := *q
	hit.Cached = true
	return hit, true
}

func (r *Resolver) resolveFresh(ctx context.Context, m metal.Metal, p metal.Purity) pricing.Quote {
	price, source, ok := r.fetchLive(ctx, m, p)
	if !ok {
		price = r.cfg.Tables.FallbackPrice(m, p)
		source = pricing.TierFallbackStatic
		r.logger.WarnContext(ctx, "all price providers unavailable, using static table",
			"metal", m,
			"purity", p,
			"price_per_gram", price.String(),
		)
	}

	q := pricing.Quote{
		Metal:        m,
		Purity:       p,
		PricePerGram: price,
		ResolvedAt:   requestcontext.Now(ctx),
		Source:       source,
		Trend:        pricing.CompareTrend(price, r.previousPrice(ctx, m, p)),
	}
	r.appendHistory(ctx, q)

	if source.IsLive() && r.cache != nil {
		if err := r.cache.Set(ctx, pricing.CacheKey(m, p), &q, r.cfg.CacheTTL); err != nil {
			r.logger.WarnContext(ctx, "price cache write failed", "key", pricing.CacheKey(m, p), "error", err)
		}
	}
	return q
}

func (r *Resolver) fetchLive(ctx context.Context, m metal.Metal, p metal.Purity) (decimal.Decimal, pricing.Tier, bool) {
	for _, t := range r.tiers {
		if !t.breaker.Allow() {
			r.metrics.IncProviderFailure(t.provider.Name(), string(providers.ErrorCircuitOpen))
			r.logger.DebugContext(ctx, "price provider skipped, circuit open", "provider", t.provider.Name(), "tier", t.source)
			continue
		}
		spot, err := r.callProvider(ctx, t, m.Symbol())
		if err != nil {
			category := providers.GetCategory(err)
			r.metrics.IncProviderFailure(t.provider.Name(), string(category))
			_, change := t.breaker.RecordFailure()
			r.logger.WarnContext(ctx, "price provider unavailable",
				"provider", t.provider.Name(),
				"tier", t.source,
				"category", category,
				"circuit_opened", change.Opened,
				"error", err,
			)
			continue
		}
		if _, change := t.breaker.RecordSuccess(); change.Closed {
			r.logger.InfoContext(ctx, "price provider recovered", "provider", t.provider.Name())
		}
		return pricing.PerGram(spot, p, r.cfg.Tables.Margin(m, p)), t.source, true
	}
	return decimal.Zero, "", false
}

type spotResult struct {
	spot decimal.Decimal
	err  error
}

// callProvider runs one feed call under the provider timeout. A provider that
// ignores its context is abandoned once the deadline passes.
func (r *Resolver) callProvider(ctx context.Context, t tier, symbol string) (decimal.Decimal, error) {
	name := t.provider.Name()
	ctx, span := r.tracer.Start(ctx, "pricing.FetchSpot", trace.WithAttributes(
		attribute.String("provider", name),
		attribute.String("symbol", symbol),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.ProviderTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan spotResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- spotResult{err: providers.NewProviderError(providers.ErrorInternal, name, fmt.Sprintf("panic: %v", rec), nil)}
			}
		}()
		spot, err := t.provider.FetchSpot(ctx, symbol, r.cfg.BaseCurrency)
		done <- spotResult{spot: spot, err: err}
	}()

	var res spotResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = providers.NewProviderError(providers.ErrorTimeout, name, "deadline exceeded", ctx.Err())
	}
	r.metrics.ObserveProviderLatency(name, time.Since(start))

	if res.err == nil && !res.spot.IsPositive() {
		res.err = providers.NewProviderError(providers.ErrorBadData, name, fmt.Sprintf("non-positive spot price %s", res.spot), nil)
	}
	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, string(providers.GetCategory(res.err)))
		return decimal.Zero, res.err
	}
	return res.spot, nil
}

func (r *Resolver) previousPrice(ctx context.Context, m metal.Metal, p metal.Purity) *decimal.Decimal {
	if r.history == nil {
		return nil
	}
	last, err := r.history.Latest(ctx, m, p)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			r.metrics.IncHistoryFailure()
			r.logger.WarnContext(ctx, "price history read failed", "metal", m, "purity", p, "error", err)
		}
		return nil
	}
	if last == nil {
		return nil
	}
	return &last.PricePerGram
}

func (r *Resolver) appendHistory(ctx context.Context, q pricing.Quote) {
	if r.history == nil {
		return
	}
	err := r.history.Append(ctx, pricing.HistoryEntry{
		Metal:        q.Metal,
		Purity:       q.Purity,
		PricePerGram: q.PricePerGram,
		Source:       q.Source,
		ResolvedAt:   q.ResolvedAt,
	})
	if err != nil {
		r.metrics.IncHistoryFailure()
		r.logger.WarnContext(ctx, "price history write failed", "metal", q.Metal, "purity", q.Purity, "error", err)
	}
}
