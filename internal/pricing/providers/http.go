package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 1 << 20

// HTTPConfig configures a MetalpriceAPI-style JSON spot feed.
type HTTPConfig struct {
	Name     string
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	// RatePerSecond bounds outbound calls; zero disables limiting.
	RatePerSecond float64
	Burst         int
	// DirectRates means rates[SYMBOL] is already a price per ounce in the base
	// currency instead of ounces per unit of base currency.
	DirectRates bool
}

type latestResponse struct {
	Success bool                       `json:"success"`
	Base    string                     `json:"base"`
	Rates   map[string]decimal.Decimal `json:"rates"`
	Error   *struct {
		Code    int    `json:"statusCode"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// HTTPProvider fetches spot prices from a `GET {endpoint}?base=EUR&symbols=XAU`
// feed authenticated with an X-API-KEY header.
type HTTPProvider struct {
	cfg     HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPProvider builds a provider. A nil client gets one with cfg.Timeout.
func NewHTTPProvider(cfg HTTPConfig, client *http.Client) *HTTPProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	p := &HTTPProvider{cfg: cfg, client: client}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return p
}

func (p *HTTPProvider) Name() string {
	return p.cfg.Name
}

// FetchSpot returns the price of one troy ounce of symbol in base currency.
func (p *HTTPProvider) FetchSpot(ctx context.Context, symbol, base string) (decimal.Decimal, error) {
	if p.cfg.APIKey == "" {
		return decimal.Zero, NewProviderError(ErrorAuthentication, p.cfg.Name, "api key not configured", ErrMissingCredential)
	}
	if p.cfg.Endpoint == "" {
		return decimal.Zero, NewProviderError(ErrorInternal, p.cfg.Name, "endpoint not configured", nil)
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return decimal.Zero, NewProviderError(ErrorRateLimited, p.cfg.Name, "rate limit wait", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	q := url.Values{}
	q.Set("base", base)
	q.Set("symbols", symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return decimal.Zero, NewProviderError(ErrorInternal, p.cfg.Name, "build request", err)
	}
	req.Header.Set("X-API-KEY", p.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return decimal.Zero, NewProviderError(ErrorTimeout, p.cfg.Name, "request timed out", err)
		}
		return decimal.Zero, NewProviderError(GetCategory(err), p.cfg.Name, "request failed", err)
	}
	defer resp.Body.Close()

	if err := statusError(p.cfg.Name, resp.StatusCode); err != nil {
		return decimal.Zero, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return decimal.Zero, NewProviderError(ErrorProviderOutage, p.cfg.Name, "read body", err)
	}
	var payload latestResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Zero, NewProviderError(ErrorBadData, p.cfg.Name, "decode body", err)
	}
	if payload.Error != nil {
		return decimal.Zero, NewProviderError(ErrorBadData, p.cfg.Name, payload.Error.Message, nil)
	}
	return p.extract(payload, symbol, base)
}

func (p *HTTPProvider) extract(payload latestResponse, symbol, base string) (decimal.Decimal, error) {
	if price, ok := payload.Rates[base+symbol]; ok && price.IsPositive() {
		return price, nil
	}
	r, ok := payload.Rates[symbol]
	if !ok {
		return decimal.Zero, NewProviderError(ErrorNotFound, p.cfg.Name, fmt.Sprintf("symbol %s not quoted", symbol), nil)
	}
	if !r.IsPositive() {
		return decimal.Zero, NewProviderError(ErrorBadData, p.cfg.Name, fmt.Sprintf("non-positive rate %s for %s", r, symbol), nil)
	}
	if p.cfg.DirectRates {
		return r, nil
	}
	return decimal.NewFromInt(1).DivRound(r, 8), nil
}

func statusError(provider string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewProviderError(ErrorAuthentication, provider, fmt.Sprintf("status %d", status), nil)
	case status == http.StatusTooManyRequests:
		return NewProviderError(ErrorRateLimited, provider, fmt.Sprintf("status %d", status), nil)
	case status == http.StatusNotFound:
		return NewProviderError(ErrorNotFound, provider, fmt.Sprintf("status %d", status), nil)
	case status >= 500:
		return NewProviderError(ErrorProviderOutage, provider, fmt.Sprintf("status %d", status), nil)
	default:
		return NewProviderError(ErrorBadData, provider, fmt.Sprintf("unexpected status %d", status), nil)
	}
}
