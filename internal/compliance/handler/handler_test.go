package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"bullion/internal/compliance"
	"bullion/internal/compliance/adapters"
	"bullion/internal/compliance/service"
	"bullion/internal/storage/memory"
	"bullion/pkg/requestcontext"
)

type ComplianceHandlerSuite struct {
	suite.Suite
	router http.Handler
	docs   string
}

func TestComplianceHandlerSuite(t *testing.T) {
	suite.Run(t, new(ComplianceHandlerSuite))
}

func (s *ComplianceHandlerSuite) SetupTest() {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s.docs = s.T().TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	watchlist := adapters.NewWatchlist(map[string][]string{"EU consolidated": {"BNCLRA70C41F205X"}})
	registry := adapters.NewRegistry(compliance.Company{
		TaxID: "00743110157", Active: true, LegalName: "Metalli Preziosi S.p.A.", RegisteredOffice: "Milano",
	})
	svc := service.New(memory.New(), watchlist, compliance.DefaultPolicy(),
		service.WithLogger(logger),
		service.WithRegistry(registry),
		service.WithDocumentGenerator(adapters.NewPDFProfiles(s.docs)))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(requestcontext.WithTime(req.Context(), now)))
		})
	})
	New(svc, logger).Register(r)
	s.router = r
}

func (s *ComplianceHandlerSuite) do(method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(method, path, reader))
	var resp map[string]any
	if w.Body.Len() > 0 {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func (s *ComplianceHandlerSuite) register(fiscalID string) string {
	w, resp := s.do(http.MethodPost, "/clients",
		`{"fiscal_id":"`+fiscalID+`","first_name":"Mario","last_name":"Rossi","document_expiry":"2027-01-31T00:00:00Z"}`)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	return resp["id"].(string)
}

func (s *ComplianceHandlerSuite) TestRegisterAppliesDefaults() {
	w, resp := s.do(http.MethodPost, "/clients",
		`{"fiscal_id":" rssmra80a01h501u ","last_name":"Rossi"}`)

	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Equal("RSSMRA80A01H501U", resp["fiscal_id"])
	s.Equal("PENDING_REVIEW", resp["aml_status"])
	s.Equal("2999.99", resp["annual_cash_ceiling"])

	w, resp = s.do(http.MethodPost, "/clients", `{"first_name":"Anon"}`)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Len(resp["reasons"], 2)

	w, _ = s.do(http.MethodPost, "/clients", `{"fiscal_id":"X","last_name":"Y","annual_cash_ceiling":"0"}`)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (s *ComplianceHandlerSuite) TestCashFlow() {
	id := s.register("RSSMRA80A01H501U")

	w, resp := s.do(http.MethodGet, "/clients/"+id+"/cash-authorization?amount=1000", "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(false, resp["authorized"], "no AML check yet")

	w, resp = s.do(http.MethodPost, "/clients/"+id+"/aml-check", "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("OK", resp["aml_status"])

	w, resp = s.do(http.MethodGet, "/clients/"+id+"/cash-authorization?amount=1000", "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(true, resp["authorized"])

	w, resp = s.do(http.MethodPost, "/clients/"+id+"/cash-usage", `{"amount":"2500"}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("2500", resp["cash_used"])

	w, resp = s.do(http.MethodPost, "/clients/"+id+"/cash-usage", `{"amount":"600"}`)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Contains(resp["reasons"].([]any)[0], "annual cash ceiling exceeded")

	w, _ = s.do(http.MethodPost, "/clients/"+id+"/cash-usage", `{"amount":"-1"}`)
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	w, _ = s.do(http.MethodGet, "/clients/"+id+"/cash-authorization?amount=lots", "")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ComplianceHandlerSuite) TestAMLCheckBlocksListedClient() {
	id := s.register("BNCLRA70C41F205X")

	w, resp := s.do(http.MethodPost, "/clients/"+id+"/aml-check", "")

	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("BLOCKED", resp["aml_status"])

	w, _ = s.do(http.MethodPost, "/clients/unknown/aml-check", "")
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *ComplianceHandlerSuite) TestProfileDocument() {
	id := s.register("RSSMRA80A01H501U")

	w, resp := s.do(http.MethodPost, "/clients/"+id+"/profile", "")

	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	path := resp["document"].(string)
	s.Equal(s.docs, filepath.Dir(path))
	s.Equal("aml_profile_RSSMRA80A01H501U_2025_03_10.pdf", filepath.Base(path))
}

func (s *ComplianceHandlerSuite) TestTaxIDValidation() {
	w, resp := s.do(http.MethodPost, "/compliance/tax-id/validate", `{"tax_id":"IT 00743110157"}`)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(true, resp["valid"])
	s.Equal("00743110157", resp["normalized"])

	w, resp = s.do(http.MethodPost, "/compliance/tax-id/validate", `{"tax_id":"00743110158"}`)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(false, resp["valid"])
	s.Equal("tax id checksum mismatch", resp["reason"])

	w, _ = s.do(http.MethodPost, "/compliance/tax-id/validate", `{"tax_id":" "}`)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (s *ComplianceHandlerSuite) TestVerifyCompany() {
	w, resp := s.do(http.MethodPost, "/compliance/companies/verify", `{"tax_id":"00743110157"}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("Metalli Preziosi S.p.A.", resp["company"].(map[string]any)["legal_name"])

	w, _ = s.do(http.MethodPost, "/compliance/companies/verify", `{"tax_id":"12345678903"}`)
	s.Equal(http.StatusNotFound, w.Code)

	w, resp = s.do(http.MethodPost, "/compliance/companies/verify", `{"tax_id":"123"}`)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal([]any{"tax id must have 11 digits"}, resp["reasons"])
}
