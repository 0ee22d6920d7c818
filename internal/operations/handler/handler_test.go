package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"bullion/internal/compliance"
	"bullion/internal/metal"
	"bullion/internal/operations"
	"bullion/internal/operations/handler/mocks"
	dErrors "bullion/pkg/domain-errors"
)

type OperationsHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  http.Handler
}

func TestOperationsHandlerSuite(t *testing.T) {
	suite.Run(t, new(OperationsHandlerSuite))
}

func (s *OperationsHandlerSuite) SetupTest() {
	s.service = mocks.NewMockService(gomock.NewController(s.T()))
	r := chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	s.router = r
}

func (s *OperationsHandlerSuite) do(method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
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

func confirmed(number string) operations.Operation {
	return operations.Operation{
		Number:       number,
		Kind:         operations.KindPurchase,
		Metal:        metal.Gold,
		Purity:       750,
		NetGrams:     decimal.NewFromInt(20),
		MarketPrice:  decimal.NewFromInt(50),
		AppliedPrice: decimal.NewFromInt(48),
		TotalValue:   decimal.NewFromInt(960),
		Status:       operations.StatusConfirmed,
	}
}

func (s *OperationsHandlerSuite) TestCreateParsesDraft() {
	s.service.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, d operations.Draft) (operations.Operation, error) {
			s.Equal("client-1", d.ClientID)
			s.Equal(operations.KindPurchase, d.Kind)
			s.Equal(metal.Gold, d.Metal)
			s.Equal(metal.Purity(750), d.Purity)
			s.True(decimal.RequireFromString("999.99").Equal(d.CashAmount))
			op := confirmed("OP-2025-000001")
			op.Status = operations.StatusDraft
			return op, nil
		})

	w, resp := s.do(http.MethodPost, "/operations",
		`{"client_id":" client-1 ","kind":"purchase","metal":"gold","purity":750,"net_grams":"20","applied_price_per_gram":"48","cash_amount":"999.99"}`)

	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Equal("OP-2025-000001", resp["number"])
	s.Equal("DRAFT", resp["status"])
	s.Equal("-4", resp["margin_percent"])
}

func (s *OperationsHandlerSuite) TestCreateRejectsUnknownMetal() {
	w, resp := s.do(http.MethodPost, "/operations", `{"kind":"SALE","metal":"bronze","purity":750}`)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("validation_error", resp["error"])
}

func (s *OperationsHandlerSuite) TestConfirmDenied() {
	s.service.EXPECT().Confirm(gomock.Any(), "OP-2025-000007").Return(operations.Operation{},
		dErrors.NewValidation("cash payment not authorized", []string{"annual cash ceiling exceeded: requested 1000.00, remaining 999.99"}))

	w, resp := s.do(http.MethodPost, "/operations/OP-2025-000007/confirm", "")

	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("validation_error", resp["error"])
	s.Equal([]any{"annual cash ceiling exceeded: requested 1000.00, remaining 999.99"}, resp["reasons"])
}

func (s *OperationsHandlerSuite) TestLifecycleRoutes() {
	s.service.EXPECT().Confirm(gomock.Any(), "OP-2025-000001").Return(confirmed("OP-2025-000001"), nil)
	s.service.EXPECT().Complete(gomock.Any(), "OP-2025-000001").Return(operations.Operation{},
		dErrors.New(dErrors.CodeInvariantViolation, "operation OP-2025-000001 cannot move from DRAFT to COMPLETED"))
	s.service.EXPECT().Cancel(gomock.Any(), "OP-2025-000002").Return(operations.Operation{Status: operations.StatusCancelled}, nil)
	s.service.EXPECT().Get(gomock.Any(), "OP-2025-000404").Return(operations.Operation{},
		dErrors.New(dErrors.CodeNotFound, "operation OP-2025-000404 not found"))

	w, resp := s.do(http.MethodPost, "/operations/OP-2025-000001/confirm", "")
	s.Equal(http.StatusOK, w.Code)
	s.Equal("CONFIRMED", resp["status"])

	w, _ = s.do(http.MethodPost, "/operations/OP-2025-000001/complete", "")
	s.Equal(http.StatusConflict, w.Code)

	w, resp = s.do(http.MethodPost, "/operations/OP-2025-000002/cancel", "")
	s.Equal(http.StatusOK, w.Code)
	s.Equal("CANCELLED", resp["status"])

	w, _ = s.do(http.MethodGet, "/operations/OP-2025-000404", "")
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *OperationsHandlerSuite) TestReport() {
	s.Run("submitted", func() {
		op := confirmed("OP-2025-000003")
		op.ReportSent = true
		s.service.EXPECT().SubmitRegulatoryReport(gomock.Any(), "OP-2025-000003").
			Return(op, compliance.Submission{Required: true}, nil)

		w, resp := s.do(http.MethodPost, "/operations/OP-2025-000003/report", "")
		s.Equal(http.StatusAccepted, w.Code)
		s.Equal(true, resp["operation"].(map[string]any)["report_sent"])
		s.Equal(true, resp["submission"].(map[string]any)["required"])
	})
	s.Run("not required", func() {
		s.service.EXPECT().SubmitRegulatoryReport(gomock.Any(), "OP-2025-000004").
			Return(confirmed("OP-2025-000004"), compliance.Submission{Reason: "value 960.00 below threshold 10000.00"}, nil)

		w, resp := s.do(http.MethodPost, "/operations/OP-2025-000004/report", "")
		s.Equal(http.StatusOK, w.Code)
		s.Equal("value 960.00 below threshold 10000.00", resp["submission"].(map[string]any)["reason"])
	})
	s.Run("publisher down", func() {
		s.service.EXPECT().SubmitRegulatoryReport(gomock.Any(), "OP-2025-000005").
			Return(operations.Operation{}, compliance.Submission{Required: true},
				dErrors.New(dErrors.CodeUnavailable, "regulatory submission failed"))

		w, _ := s.do(http.MethodPost, "/operations/OP-2025-000005/report", "")
		s.Equal(http.StatusServiceUnavailable, w.Code)
	})
}
