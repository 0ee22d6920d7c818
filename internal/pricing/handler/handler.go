// Package handler exposes price resolution over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"bullion/internal/metal"
	"bullion/internal/platform/middleware"
	"bullion/internal/pricing"
	dErrors "bullion/pkg/domain-errors"
	"bullion/pkg/platform/httputil"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	maxBatchSize        = 50
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Resolver

// Resolver is the price resolver as seen by the HTTP layer.
type Resolver interface {
	Resolve(ctx context.Context, m metal.Metal, p metal.Purity) pricing.Quote
	ResolveMany(ctx context.Context, reqs []pricing.Request) []pricing.Quote
	Invalidate(ctx context.Context, m metal.Metal, p metal.Purity) error
	InvalidateAll(ctx context.Context) error
	History(ctx context.Context, m metal.Metal, p metal.Purity, limit int) ([]pricing.HistoryEntry, error)
}

type Handler struct {
	resolver Resolver
	logger   *slog.Logger
}

func New(resolver Resolver, logger *slog.Logger) *Handler {
	return &Handler{resolver: resolver, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/prices", func(r chi.Router) {
		r.Post("/batch", h.handleBatch)
		r.Post("/refresh", h.handleRefresh)
		r.Get("/{metal}/{purity}", h.handleGet)
		r.Get("/{metal}/{purity}/history", h.handleHistory)
	})
}

func pairFromPath(r *http.Request) (metal.Metal, metal.Purity, error) {
	m, err := metal.ParseMetal(chi.URLParam(r, "metal"))
	if err != nil {
		return "", 0, err
	}
	raw, err := strconv.Atoi(chi.URLParam(r, "purity"))
	if err != nil {
		return "", 0, dErrors.New(dErrors.CodeBadRequest, "purity must be an integer")
	}
	p, err := metal.ParsePurity(raw)
	if err != nil {
		return "", 0, err
	}
	return m, p, nil
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	m, p, err := pairFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.resolver.Resolve(r.Context(), m, p))
}

type pairRequest struct {
	Metal  string `json:"metal"`
	Purity int    `json:"purity"`
}

func (p pairRequest) parse() (pricing.Request, error) {
	m, err := metal.ParseMetal(p.Metal)
	if err != nil {
		return pricing.Request{}, err
	}
	purity, err := metal.ParsePurity(p.Purity)
	if err != nil {
		return pricing.Request{}, err
	}
	return pricing.Request{Metal: m, Purity: purity}, nil
}

type batchRequest struct {
	Items []pairRequest `json:"items"`

	requests []pricing.Request
}

func (r *batchRequest) Validate() error {
	if len(r.Items) == 0 {
		return dErrors.NewValidation("invalid batch", []string{"at least one item is required"})
	}
	if len(r.Items) > maxBatchSize {
		return dErrors.NewValidation("invalid batch", []string{"at most " + strconv.Itoa(maxBatchSize) + " items per batch"})
	}
	var reasons []string
	for i, item := range r.Items {
		req, err := item.parse()
		if err != nil {
			reasons = append(reasons, "item "+strconv.Itoa(i)+": "+errorMessage(err))
			continue
		}
		r.requests = append(r.requests, req)
	}
	if len(reasons) > 0 {
		return dErrors.NewValidation("invalid batch", reasons)
	}
	return nil
}

func errorMessage(err error) string {
	if de, ok := dErrors.Is(err); ok {
		return de.Message
	}
	return err.Error()
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[batchRequest](w, r, h.logger, ctx, middleware.GetRequestID(r))
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"quotes": h.resolver.ResolveMany(ctx, req.requests)})
}

type refreshRequest struct {
	Metal  string `json:"metal"`
	Purity int    `json:"purity"`
	All    bool   `json:"all"`

	pair pricing.Request
}

func (r *refreshRequest) Validate() error {
	if r.All {
		return nil
	}
	pair, err := pairRequest{Metal: r.Metal, Purity: r.Purity}.parse()
	if err != nil {
		return err
	}
	r.pair = pair
	return nil
}

// handleRefresh drops cached quotes. A pair invalidates one key; "all"
// clears every price key. The next read resolves fresh.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[refreshRequest](w, r, h.logger, ctx, middleware.GetRequestID(r))
	if !ok {
		return
	}
	var err error
	scope := "all"
	if req.All {
		err = h.resolver.InvalidateAll(ctx)
	} else {
		scope = pricing.CacheKey(req.pair.Metal, req.pair.Purity)
		err = h.resolver.Invalidate(ctx, req.pair.Metal, req.pair.Purity)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "price cache invalidation failed", "scope", scope, "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "price cache unavailable"))
		return
	}
	h.logger.InfoContext(ctx, "price cache invalidated", "scope", scope)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"invalidated": scope})
}

type historyEntry struct {
	PricePerGram decimal.Decimal `json:"price_per_gram"`
	Source       pricing.Tier    `json:"source"`
	ResolvedAt   time.Time       `json:"resolved_at"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	m, p, err := pairFromPath(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxHistoryLimit {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and "+strconv.Itoa(maxHistoryLimit)))
			return
		}
	}
	entries, err := h.resolver.History(r.Context(), m, p, limit)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "price history unavailable"))
		return
	}
	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntry{PricePerGram: e.PricePerGram, Source: e.Source, ResolvedAt: e.ResolvedAt})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"metal": m, "purity": p, "entries": out})
}
