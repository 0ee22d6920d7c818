// Package handler exposes fixing contracts over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"bullion/internal/fixing"
	"bullion/internal/metal"
	"bullion/internal/platform/middleware"
	"bullion/internal/storage"
	dErrors "bullion/pkg/domain-errors"
	"bullion/pkg/platform/httputil"
)

// Service is the contract service as seen by the HTTP layer.
type Service interface {
	Create(ctx context.Context, terms fixing.Terms) (fixing.Contract, error)
	Get(ctx context.Context, number string) (fixing.View, error)
	List(ctx context.Context, f storage.ContractFilter) ([]fixing.View, error)
	CanAcceptDelivery(ctx context.Context, number string, grams decimal.Decimal) (fixing.Eligibility, error)
	RecordDelivery(ctx context.Context, number string, req fixing.DeliveryRequest) (fixing.Delivery, error)
	Deliveries(ctx context.Context, number string) ([]fixing.Delivery, error)
	GainLoss(ctx context.Context, number string, override *decimal.Decimal) (fixing.GainLoss, error)
	Renew(ctx context.Context, number string, terms fixing.RenewalTerms) (fixing.Contract, error)
	Activate(ctx context.Context, number string) (fixing.Contract, error)
	Suspend(ctx context.Context, number string) (fixing.Contract, error)
	Resume(ctx context.Context, number string) (fixing.Contract, error)
	Cancel(ctx context.Context, number string) (fixing.Contract, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/contracts", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Route("/{number}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Get("/eligibility", h.handleEligibility)
			r.Post("/deliveries", h.handleRecordDelivery)
			r.Get("/deliveries", h.handleDeliveries)
			r.Get("/gain-loss", h.handleGainLoss)
			r.Post("/renew", h.handleRenew)
			r.Post("/activate", h.transition(Service.Activate))
			r.Post("/suspend", h.transition(Service.Suspend))
			r.Post("/resume", h.transition(Service.Resume))
			r.Post("/cancel", h.transition(Service.Cancel))
		})
	})
}

type createRequest struct {
	ClientID       string          `json:"client_id"`
	CounterpartyID string          `json:"counterparty_id"`
	Metal          string          `json:"metal"`
	Purity         int             `json:"purity"`
	TotalGrams     decimal.Decimal `json:"total_grams"`
	FixedPrice     decimal.Decimal `json:"fixed_price"`
	ContractDate   *time.Time      `json:"contract_date"`
	ValidFrom      *time.Time      `json:"valid_from"`
	ExpiresAt      time.Time       `json:"expires_at"`
	MinDelivery    decimal.Decimal `json:"min_delivery_grams"`
	PaymentMethod  string          `json:"payment_method"`
	Notes          string          `json:"notes"`
	Draft          bool            `json:"draft"`

	metal  metal.Metal
	purity metal.Purity
}

func (r *createRequest) Validate() error {
	var err error
	if r.metal, err = metal.ParseMetal(r.Metal); err != nil {
		return err
	}
	if r.purity, err = metal.ParsePurity(r.Purity); err != nil {
		return err
	}
	return nil
}

func (r *createRequest) terms() fixing.Terms {
	t := fixing.Terms{
		ClientID:       r.ClientID,
		CounterpartyID: r.CounterpartyID,
		Metal:          r.metal,
		Purity:         r.purity,
		TotalGrams:     r.TotalGrams,
		FixedPrice:     r.FixedPrice,
		ExpiresAt:      r.ExpiresAt,
		MinDelivery:    r.MinDelivery,
		PaymentMethod:  fixing.PaymentMethod(strings.ToUpper(r.PaymentMethod)),
		Notes:          r.Notes,
		Draft:          r.Draft,
	}
	if r.ContractDate != nil {
		t.ContractDate = *r.ContractDate
	}
	if r.ValidFrom != nil {
		t.ValidFrom = *r.ValidFrom
	}
	return t
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[createRequest](w, r, h.logger, ctx, middleware.GetRequestID(r))
	if !ok {
		return
	}
	c, err := h.service.Create(ctx, req.terms())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.ContractFilter{ClientID: q.Get("client_id")}
	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			f.Statuses = append(f.Statuses, fixing.Status(strings.ToUpper(strings.TrimSpace(s))))
		}
	}
	views, err := h.service.List(r.Context(), f)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"contracts": views})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Get(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) handleEligibility(w http.ResponseWriter, r *http.Request) {
	grams, err := decimal.NewFromString(r.URL.Query().Get("grams"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "grams query parameter must be a number"))
		return
	}
	e, err := h.service.CanAcceptDelivery(r.Context(), chi.URLParam(r, "number"), grams)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

type deliveryRequest struct {
	OperationRef   string          `json:"operation_ref"`
	Grams          decimal.Decimal `json:"grams"`
	DeliveredAt    *time.Time      `json:"delivered_at"`
	ShippingDocRef string          `json:"shipping_doc_ref"`
	InvoiceRef     string          `json:"invoice_ref"`
	Notes          string          `json:"notes"`
}

func (r *deliveryRequest) Validate() error {
	if !r.Grams.IsPositive() {
		return dErrors.NewValidation("invalid delivery", []string{"delivery weight must be positive"})
	}
	return nil
}

func (h *Handler) handleRecordDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[deliveryRequest](w, r, h.logger, ctx, middleware.GetRequestID(r))
	if !ok {
		return
	}
	dr := fixing.DeliveryRequest{
		OperationRef:   req.OperationRef,
		Grams:          req.Grams,
		ShippingDocRef: req.ShippingDocRef,
		InvoiceRef:     req.InvoiceRef,
		Notes:          req.Notes,
	}
	if req.DeliveredAt != nil {
		dr.DeliveredAt = *req.DeliveredAt
	}
	d, err := h.service.RecordDelivery(ctx, chi.URLParam(r, "number"), dr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, d)
}

func (h *Handler) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	ds, err := h.service.Deliveries(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"deliveries": ds})
}

func (h *Handler) handleGainLoss(w http.ResponseWriter, r *http.Request) {
	var override *decimal.Decimal
	if raw := r.URL.Query().Get("market_price"); raw != "" {
		p, err := decimal.NewFromString(raw)
		if err != nil || !p.IsPositive() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "market_price must be a positive number"))
			return
		}
		override = &p
	}
	gl, err := h.service.GainLoss(r.Context(), chi.URLParam(r, "number"), override)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, gl)
}

type renewRequest struct {
	FixedPrice *decimal.Decimal `json:"fixed_price"`
	ValidFrom  *time.Time       `json:"valid_from"`
	ExpiresAt  *time.Time       `json:"expires_at"`
}

func (r *renewRequest) Validate() error {
	if r.FixedPrice != nil && !r.FixedPrice.IsPositive() {
		return dErrors.NewValidation("invalid renewal", []string{"fixed price must be positive"})
	}
	return nil
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := &renewRequest{}
	if r.ContentLength != 0 {
		var ok bool
		if req, ok = httputil.DecodeAndPrepare[renewRequest](w, r, h.logger, ctx, middleware.GetRequestID(r)); !ok {
			return
		}
	}
	terms := fixing.RenewalTerms{FixedPrice: req.FixedPrice}
	if req.ValidFrom != nil {
		terms.ValidFrom = *req.ValidFrom
	}
	if req.ExpiresAt != nil {
		terms.ExpiresAt = *req.ExpiresAt
	}
	c, err := h.service.Renew(ctx, chi.URLParam(r, "number"), terms)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) transition(fn func(Service, context.Context, string) (fixing.Contract, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := fn(h.service, r.Context(), chi.URLParam(r, "number"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, c)
	}
}
