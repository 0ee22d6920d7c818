// Package handler exposes client compliance profiles and identity checks
// over HTTP.
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
	"bullion/internal/platform/middleware"
	dErrors "bullion/pkg/domain-errors"
	"bullion/pkg/platform/httputil"
)

// Service is the compliance gate as seen by the HTTP layer.
type Service interface {
	RegisterClient(ctx context.Context, c compliance.Client) (compliance.Client, error)
	GetClient(ctx context.Context, id string) (compliance.Client, error)
	CheckCashAuthorization(ctx context.Context, clientID string, amount decimal.Decimal) (compliance.Authorization, error)
	RecordCashUsage(ctx context.Context, clientID string, amount decimal.Decimal) (compliance.Client, error)
	RunAMLCheck(ctx context.Context, clientID string) (compliance.Client, error)
	GenerateProfileDocument(ctx context.Context, clientID string) (string, error)
	ValidateTaxID(raw string) compliance.TaxIDResult
	VerifyCompany(ctx context.Context, taxID string) (compliance.CompanyCheck, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/clients", func(r chi.Router) {
		r.Post("/", h.handleRegister)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Get("/cash-authorization", h.handleCashCheck)
			r.Post("/cash-usage", h.handleCashUsage)
			r.Post("/aml-check", h.handleAMLCheck)
			r.Post("/profile", h.handleProfile)
		})
	})
	r.Post("/compliance/tax-id/validate", h.handleValidateTaxID)
	r.Post("/compliance/companies/verify", h.handleVerifyCompany)
}

type registerRequest struct {
	FiscalID          string           `json:"fiscal_id"`
	FirstName         string           `json:"first_name"`
	LastName          string           `json:"last_name"`
	DocumentType      string           `json:"document_type"`
	DocumentNumber    string           `json:"document_number"`
	DocumentExpiry    *time.Time       `json:"document_expiry"`
	Address           string           `json:"address"`
	City              string           `json:"city"`
	AnnualCashCeiling *decimal.Decimal `json:"annual_cash_ceiling"`
}

func (r *registerRequest) Validate() error {
	if r.AnnualCashCeiling != nil && !r.AnnualCashCeiling.IsPositive() {
		return dErrors.NewValidation("invalid client", []string{"annual cash ceiling must be positive"})
	}
	return nil
}

func (r *registerRequest) client() compliance.Client {
	c := compliance.Client{
		FiscalID:       r.FiscalID,
		FirstName:      strings.TrimSpace(r.FirstName),
		LastName:       strings.TrimSpace(r.LastName),
		DocumentType:   r.DocumentType,
		DocumentNumber: r.DocumentNumber,
		Address:        r.Address,
		City:           r.City,
	}
	if r.DocumentExpiry != nil {
		c.DocumentExpiry = *r.DocumentExpiry
	}
	if r.AnnualCashCeiling != nil {
		c.AnnualCashCeiling = *r.AnnualCashCeiling
	}
	return c
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[registerRequest](w, r, h.logger, ctx, middleware.GetRequestID(r))
	if !ok {
		return
	}
	c, err := h.service.RegisterClient(ctx, req.client())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetClient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleCashCheck(w http.ResponseWriter, r *http.Request) {
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "amount query parameter must be a number"))
		return
	}
	auth, err := h.service.CheckCashAuthorization(r.Context(), chi.URLParam(r, "id"), amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, auth)
}

type cashUsageRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (r *cashUsageRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return dErrors.NewValidation("invalid cash usage", []string{"amount must be positive"})
	}
	return nil
}

func (h *Handler) handleCashUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[cashUsageRequest](w, r, h.logger, ctx, middleware.GetRequestID(r))
	if !ok {
		return
	}
	c, err := h.service.RecordCashUsage(ctx, chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleAMLCheck(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.RunAMLCheck(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	path, err := h.service.GenerateProfileDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"document": path})
}

type taxIDRequest struct {
	TaxID string `json:"tax_id"`
}

func (r *taxIDRequest) Validate() error {
	if strings.TrimSpace(r.TaxID) == "" {
		return dErrors.NewValidation("invalid request", []string{"tax_id is required"})
	}
	return nil
}

func (h *Handler) handleValidateTaxID(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[taxIDRequest](w, r, h.logger, r.Context(), middleware.GetRequestID(r))
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.ValidateTaxID(req.TaxID))
}

func (h *Handler) handleVerifyCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[taxIDRequest](w, r, h.logger, ctx, middleware.GetRequestID(r))
	if !ok {
		return
	}
	check, err := h.service.VerifyCompany(ctx, req.TaxID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, check)
}
