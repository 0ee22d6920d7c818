// Package handler exposes desk operations over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"bullion/internal/compliance"
	"bullion/internal/metal"
	"bullion/internal/operations"
	"bullion/internal/platform/middleware"
	"bullion/pkg/platform/httputil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service is the operations service as seen by the HTTP layer.
type Service interface {
	Create(ctx context.Context, d operations.Draft) (operations.Operation, error)
	Get(ctx context.Context, number string) (operations.Operation, error)
	Confirm(ctx context.Context, number string) (operations.Operation, error)
	Complete(ctx context.Context, number string) (operations.Operation, error)
	Cancel(ctx context.Context, number string) (operations.Operation, error)
	SubmitRegulatoryReport(ctx context.Context, number string) (operations.Operation, compliance.Submission, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/operations", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Route("/{number}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Post("/confirm", h.transition(Service.Confirm))
			r.Post("/complete", h.transition(Service.Complete))
			r.Post("/cancel", h.transition(Service.Cancel))
			r.Post("/report", h.handleReport)
		})
	})
}

type createRequest struct {
	ClientID       string          `json:"client_id"`
	SupplierID     string          `json:"supplier_id"`
	Kind           string          `json:"kind"`
	Metal          string          `json:"metal"`
	Purity         int             `json:"purity"`
	GrossGrams     decimal.Decimal `json:"gross_grams"`
	NetGrams       decimal.Decimal `json:"net_grams"`
	MarketPrice    decimal.Decimal `json:"market_price_per_gram"`
	AppliedPrice   decimal.Decimal `json:"applied_price_per_gram"`
	CashAmount     decimal.Decimal `json:"cash_amount"`
	TransferAmount decimal.Decimal `json:"transfer_amount"`
	OperationDate  *time.Time      `json:"operation_date"`
	ShippingDocRef string          `json:"shipping_doc_ref"`
	InvoiceRef     string          `json:"invoice_ref"`
	Notes          string          `json:"notes"`

	metal  metal.Metal
	purity metal.Purity
}

// Validate parses the enumerations; the remaining rules belong to the
// service so that every violation is reported together.
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

func (r *createRequest) draft() operations.Draft {
	d := operations.Draft{
		ClientID:       strings.TrimSpace(r.ClientID),
		SupplierID:     strings.TrimSpace(r.SupplierID),
		Kind:           operations.Kind(strings.ToUpper(strings.TrimSpace(r.Kind))),
		Metal:          r.metal,
		Purity:         r.purity,
		GrossGrams:     r.GrossGrams,
		NetGrams:       r.NetGrams,
		MarketPrice:    r.MarketPrice,
		AppliedPrice:   r.AppliedPrice,
		CashAmount:     r.CashAmount,
		TransferAmount: r.TransferAmount,
		ShippingDocRef: r.ShippingDocRef,
		InvoiceRef:     r.InvoiceRef,
		Notes:          r.Notes,
	}
	if r.OperationDate != nil {
		d.OperationDate = *r.OperationDate
	}
	return d
}

// operationResponse adds the derived margin to the stored operation.
type operationResponse struct {
	operations.Operation
	Margin decimal.Decimal `json:"margin_percent"`
}

func respond(op operations.Operation) operationResponse {
	return operationResponse{Operation: op, Margin: op.MarginPercent()}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[createRequest](w, r, h.logger, ctx, middleware.GetRequestID(r))
	if !ok {
		return
	}
	op, err := h.service.Create(ctx, req.draft())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, respond(op))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	op, err := h.service.Get(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, respond(op))
}

func (h *Handler) transition(fn func(Service, context.Context, string) (operations.Operation, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op, err := fn(h.service, r.Context(), chi.URLParam(r, "number"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, respond(op))
	}
}

type reportResponse struct {
	Operation  operationResponse     `json:"operation"`
	Submission compliance.Submission `json:"submission"`
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	op, sub, err := h.service.SubmitRegulatoryReport(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if sub.Required {
		status = http.StatusAccepted
	}
	httputil.WriteJSON(w, status, reportResponse{Operation: respond(op), Submission: sub})
}
