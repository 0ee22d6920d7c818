// Package handler serves dashboard reports over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bullion/internal/reports"
	dErrors "bullion/pkg/domain-errors"
	"bullion/pkg/platform/httputil"
	"bullion/pkg/requestcontext"
)

const maxPerformanceSpan = 366 * 24 * time.Hour

type Service interface {
	DailySummary(ctx context.Context, date time.Time) reports.DailySummary
	Performance(ctx context.Context, from, to time.Time) reports.Performance
	ExpiryReport(ctx context.Context) reports.ExpiryReport
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/daily", h.handleDaily)
		r.Get("/performance", h.handlePerformance)
		r.Get("/expiry", h.handleExpiry)
	})
}

// dateParam parses a YYYY-MM-DD query value, falling back to def when absent.
func dateParam(r *http.Request, name string, def time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, def.Location())
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, name+" must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

func (h *Handler) handleDaily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	date, err := dateParam(r, "date", requestcontext.Now(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.DailySummary(ctx, date))
}

// handlePerformance defaults to the current month to date. The to date is
// inclusive.
func (h *Handler) handlePerformance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := requestcontext.Now(ctx)
	from, err := dateParam(r, "from", time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := dateParam(r, "to", now)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, to.Location()).AddDate(0, 0, 1)
	switch {
	case !end.After(from):
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "from must not be after to"))
		return
	case end.Sub(from) > maxPerformanceSpan:
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "period cannot exceed one year"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.Performance(ctx, from, end))
}

func (h *Handler) handleExpiry(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.ExpiryReport(r.Context()))
}
