package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"bullion/internal/metal"
	"bullion/internal/pricing"
	"bullion/internal/pricing/handler/mocks"
)

type PricingHandlerSuite struct {
	suite.Suite
	resolver *mocks.MockResolver
	router   http.Handler
}

func TestPricingHandlerSuite(t *testing.T) {
	suite.Run(t, new(PricingHandlerSuite))
}

func (s *PricingHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.resolver = mocks.NewMockResolver(ctrl)
	r := chi.NewRouter()
	New(s.resolver, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	s.router = r
}

func (s *PricingHandlerSuite) do(method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
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

func quote(m metal.Metal, p metal.Purity, price string, source pricing.Tier) pricing.Quote {
	return pricing.Quote{Metal: m, Purity: p, PricePerGram: decimal.RequireFromString(price), Source: source}
}

func (s *PricingHandlerSuite) TestGetQuote() {
	s.resolver.EXPECT().Resolve(gomock.Any(), metal.Gold, metal.Purity(750)).
		Return(quote(metal.Gold, 750, "48.75", pricing.TierFallbackStatic))

	w, resp := s.do(http.MethodGet, "/prices/gold/750", "")

	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("GOLD", resp["metal"])
	s.Equal("48.75", resp["price_per_gram"])
	s.Equal("FALLBACK_STATIC", resp["source"])
}

func (s *PricingHandlerSuite) TestGetQuoteRejectsBadPath() {
	w, resp := s.do(http.MethodGet, "/prices/copper/750", "")
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("validation_error", resp["error"])

	w, _ = s.do(http.MethodGet, "/prices/gold/fine", "")
	s.Equal(http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodGet, "/prices/gold/1001", "")
	s.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (s *PricingHandlerSuite) TestBatchKeepsRequestOrder() {
	want := []pricing.Request{{Metal: metal.Silver, Purity: 925}, {Metal: metal.Gold, Purity: 999}}
	s.resolver.EXPECT().ResolveMany(gomock.Any(), want).Return([]pricing.Quote{
		quote(metal.Silver, 925, "0.79", pricing.TierBackup),
		quote(metal.Gold, 999, "65", pricing.TierPrimary),
	})

	w, resp := s.do(http.MethodPost, "/prices/batch", `{"items":[{"metal":"silver","purity":925},{"metal":"GOLD","purity":999}]}`)

	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	quotes := resp["quotes"].([]any)
	s.Require().Len(quotes, 2)
	s.Equal("SILVER", quotes[0].(map[string]any)["metal"])
	s.Equal("GOLD", quotes[1].(map[string]any)["metal"])
}

func (s *PricingHandlerSuite) TestBatchCollectsItemErrors() {
	w, resp := s.do(http.MethodPost, "/prices/batch", `{"items":[{"metal":"tin","purity":999},{"metal":"gold","purity":0}]}`)

	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Len(resp["reasons"], 2)

	w, _ = s.do(http.MethodPost, "/prices/batch", `{"items":[]}`)
	s.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (s *PricingHandlerSuite) TestRefresh() {
	s.Run("single pair", func() {
		s.resolver.EXPECT().Invalidate(gomock.Any(), metal.Gold, metal.Purity(585)).Return(nil)
		w, resp := s.do(http.MethodPost, "/prices/refresh", `{"metal":"gold","purity":585}`)
		s.Require().Equal(http.StatusOK, w.Code)
		s.Equal("prices:GOLD:585", resp["invalidated"])
	})
	s.Run("everything", func() {
		s.resolver.EXPECT().InvalidateAll(gomock.Any()).Return(nil)
		w, resp := s.do(http.MethodPost, "/prices/refresh", `{"all":true}`)
		s.Require().Equal(http.StatusOK, w.Code)
		s.Equal("all", resp["invalidated"])
	})
	s.Run("cache down", func() {
		s.resolver.EXPECT().InvalidateAll(gomock.Any()).Return(errors.New("dial tcp: connection refused"))
		w, resp := s.do(http.MethodPost, "/prices/refresh", `{"all":true}`)
		s.Equal(http.StatusServiceUnavailable, w.Code)
		s.Equal("unavailable", resp["error"])
	})
}

func (s *PricingHandlerSuite) TestHistory() {
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	s.resolver.EXPECT().History(gomock.Any(), metal.Platinum, metal.Purity(950), 2).Return([]pricing.HistoryEntry{
		{Metal: metal.Platinum, Purity: 950, PricePerGram: decimal.RequireFromString("30.4"), Source: pricing.TierPrimary, ResolvedAt: at},
	}, nil)

	w, resp := s.do(http.MethodGet, "/prices/platinum/950/history?limit=2", "")

	s.Require().Equal(http.StatusOK, w.Code)
	entries := resp["entries"].([]any)
	s.Require().Len(entries, 1)
	s.Equal("30.4", entries[0].(map[string]any)["price_per_gram"])

	w, _ = s.do(http.MethodGet, "/prices/platinum/950/history?limit=0", "")
	s.Equal(http.StatusBadRequest, w.Code)
}
