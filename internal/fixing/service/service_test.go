package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"bullion/internal/audit"
	"bullion/internal/fixing"
	"bullion/internal/metal"
	"bullion/internal/pricing"
	"bullion/internal/storage"
	"bullion/internal/storage/memory"
	dErrors "bullion/pkg/domain-errors"
	"bullion/pkg/requestcontext"
)

type fixedPrices struct {
	price decimal.Decimal
	calls int
}

func (f *fixedPrices) Resolve(_ context.Context, m metal.Metal, p metal.Purity) pricing.Quote {
	f.calls++
	return pricing.Quote{Metal: m, Purity: p, PricePerGram: f.price, Source: pricing.TierPrimary}
}

// failingBackend injects a failure into contract updates inside transactions.
type failingBackend struct {
	storage.Backend
}

type failingContracts struct {
	storage.Contracts
}

func (failingContracts) Update(context.Context, fixing.Contract) error {
	return errors.New("connection reset")
}

func (b failingBackend) RunInTx(ctx context.Context, fn func(ctx context.Context, s storage.Stores) error) error {
	return b.Backend.RunInTx(ctx, func(ctx context.Context, s storage.Stores) error {
		s.Contracts = failingContracts{s.Contracts}
		return fn(ctx, s)
	})
}

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	backend *memory.Backend
	prices  *fixedPrices
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithActor(requestcontext.WithTime(context.Background(), s.now), "desk-1")
	s.backend = memory.New()
	s.prices = &fixedPrices{price: decimal.RequireFromString("47.2500")}
	s.service = New(s.backend, s.prices, Config{})
}

func (s *ServiceSuite) terms(total string) fixing.Terms {
	return fixing.Terms{
		ClientID:    "client-1",
		Metal:       metal.Gold,
		Purity:      750,
		TotalGrams:  decimal.RequireFromString(total),
		FixedPrice:  decimal.RequireFromString("48.5"),
		ExpiresAt:   s.now.AddDate(0, 3, 0),
		MinDelivery: decimal.RequireFromString("10"),
	}
}

func (s *ServiceSuite) create(total string) fixing.Contract {
	c, err := s.service.Create(s.ctx, s.terms(total))
	s.Require().NoError(err)
	return c
}

func (s *ServiceSuite) deliver(number, grams string) (fixing.Delivery, error) {
	return s.service.RecordDelivery(s.ctx, number, fixing.DeliveryRequest{
		OperationRef: "OP-2025-000001",
		Grams:        decimal.RequireFromString(grams),
	})
}

func (s *ServiceSuite) TestCreateNumbersSequentially() {
	first := s.create("100")
	second := s.create("100")
	third := s.create("100")

	s.Equal("FIS-2025-001", first.Number)
	s.Equal("FIS-2025-002", second.Number)
	s.Equal("FIS-2025-003", third.Number)
	s.Equal(fixing.StatusActive, first.Status)
	s.Equal("desk-1", first.CreatedBy)

	events, err := s.backend.Stores().Audit.ListBySubject(s.ctx, first.Number)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionContractCreated, events[0].Action)
	s.Equal("desk-1", events[0].Actor)
}

func (s *ServiceSuite) TestCreateRestartsNumberingEachYear() {
	s.create("100")
	next := requestcontext.WithTime(s.ctx, s.now.AddDate(1, 0, 0))
	c, err := s.service.Create(next, s.terms("100"))
	s.Require().NoError(err)
	s.Equal("FIS-2026-001", c.Number)
}

func (s *ServiceSuite) TestCreateDraftAndMarketPrice() {
	terms := s.terms("100")
	terms.Draft = true
	terms.FixedPrice = decimal.Zero

	c, err := s.service.Create(s.ctx, terms)
	s.Require().NoError(err)
	s.Equal(fixing.StatusDraft, c.Status)
	s.True(s.prices.price.Equal(c.FixedPrice))

	_, err = s.deliver(c.Number, "10")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	active, err := s.service.Activate(s.ctx, c.Number)
	s.Require().NoError(err)
	s.Equal(fixing.StatusActive, active.Status)
}

func (s *ServiceSuite) TestCreateRejectsInvalidTerms() {
	terms := s.terms("0")
	_, err := s.service.Create(s.ctx, terms)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	all, err := s.backend.Stores().Contracts.List(s.ctx, storage.ContractFilter{})
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *ServiceSuite) TestDeliveriesCompleteContract() {
	c := s.create("1000")

	d1, err := s.deliver(c.Number, "400")
	s.Require().NoError(err)
	s.True(decimal.RequireFromString("19400").Equal(d1.Value))
	s.Equal("desk-1", d1.RecordedBy)

	_, err = s.deliver(c.Number, "600")
	s.Require().NoError(err)

	view, err := s.service.Get(s.ctx, c.Number)
	s.Require().NoError(err)
	s.Equal(fixing.StatusCompleted, view.Status)
	s.True(view.RemainingGrams.IsZero())
	s.True(decimal.NewFromInt(100).Equal(view.PercentUsed))

	deliveries, err := s.service.Deliveries(s.ctx, c.Number)
	s.Require().NoError(err)
	s.Len(deliveries, 2)

	_, err = s.deliver(c.Number, "10")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestOverdraftLeavesContractUntouched() {
	c := s.create("1000")
	_, err := s.deliver(c.Number, "400")
	s.Require().NoError(err)

	_, err = s.deliver(c.Number, "600.5")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.NotEmpty(dErrors.ReasonsOf(err))

	view, err := s.service.Get(s.ctx, c.Number)
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(400).Equal(view.DeliveredGrams))
	s.Equal(fixing.StatusActive, view.Status)

	deliveries, err := s.service.Deliveries(s.ctx, c.Number)
	s.Require().NoError(err)
	s.Len(deliveries, 1)
}

func (s *ServiceSuite) TestDeliveryFaultRollsBackEveryEffect() {
	c := s.create("1000")
	faulty := New(failingBackend{s.backend}, s.prices, Config{})

	_, err := faulty.RecordDelivery(s.ctx, c.Number, fixing.DeliveryRequest{Grams: decimal.NewFromInt(100)})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	stored, err := s.backend.Stores().Contracts.Find(s.ctx, c.Number)
	s.Require().NoError(err)
	s.True(stored.DeliveredGrams.IsZero())

	deliveries, err := s.backend.Stores().Deliveries.ListByContract(s.ctx, c.Number)
	s.Require().NoError(err)
	s.Empty(deliveries, "delivery row must roll back with the failed update")

	events, err := s.backend.Stores().Audit.ListBySubject(s.ctx, c.Number)
	s.Require().NoError(err)
	s.Len(events, 1, "only the creation event survives")
}

func (s *ServiceSuite) TestConcurrentDeliveriesNeverOverdraw() {
	c := s.create("1000")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.deliver(c.Number, "100"); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(10, accepted)
	stored, err := s.backend.Stores().Contracts.Find(s.ctx, c.Number)
	s.Require().NoError(err)
	s.True(stored.DeliveredGrams.Equal(stored.TotalGrams))
	s.Equal(fixing.StatusCompleted, stored.Status)
}

func (s *ServiceSuite) TestCancelledContractRejectsDeliveryAsInvariant() {
	c := s.create("1000")
	_, err := s.service.Cancel(s.ctx, c.Number)
	s.Require().NoError(err)

	_, err = s.deliver(c.Number, "100")
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = s.service.Resume(s.ctx, c.Number)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *ServiceSuite) TestSuspendAndResume() {
	c := s.create("1000")
	_, err := s.service.Suspend(s.ctx, c.Number)
	s.Require().NoError(err)

	elig, err := s.service.CanAcceptDelivery(s.ctx, c.Number, decimal.NewFromInt(100))
	s.Require().NoError(err)
	s.False(elig.Valid)

	_, err = s.service.Resume(s.ctx, c.Number)
	s.Require().NoError(err)
	_, err = s.deliver(c.Number, "100")
	s.NoError(err)
}

func (s *ServiceSuite) TestRenewCarriesRemainder() {
	c := s.create("1000")
	_, err := s.deliver(c.Number, "400")
	s.Require().NoError(err)

	renewed, err := s.service.Renew(s.ctx, c.Number, fixing.RenewalTerms{})
	s.Require().NoError(err)
	s.Equal("FIS-2025-002", renewed.Number)
	s.True(decimal.NewFromInt(600).Equal(renewed.TotalGrams))
	s.True(s.prices.price.Equal(renewed.FixedPrice))
	s.Equal(c.Number, renewed.RenewedFrom)

	src, err := s.service.Get(s.ctx, c.Number)
	s.Require().NoError(err)
	s.Equal(fixing.StatusCompleted, src.Status)

	_, err = s.service.Renew(s.ctx, c.Number, fixing.RenewalTerms{})
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *ServiceSuite) TestRenewWithPriceOverride() {
	c := s.create("1000")
	price := decimal.RequireFromString("50.1")
	renewed, err := s.service.Renew(s.ctx, c.Number, fixing.RenewalTerms{FixedPrice: &price})
	s.Require().NoError(err)
	s.True(price.Equal(renewed.FixedPrice))
	s.Zero(s.prices.calls)
}

func (s *ServiceSuite) TestRenewFailureKeepsSourceActive() {
	c := s.create("1000")
	faulty := New(failingBackend{s.backend}, s.prices, Config{})

	_, err := faulty.Renew(s.ctx, c.Number, fixing.RenewalTerms{})
	s.Require().Error(err)

	all, err := s.backend.Stores().Contracts.List(s.ctx, storage.ContractFilter{})
	s.Require().NoError(err)
	s.Len(all, 1, "successor must not survive a failed closure")
	s.Equal(fixing.StatusActive, all[0].Status)
}

func (s *ServiceSuite) TestGainLoss() {
	c := s.create("1000")

	gl, err := s.service.GainLoss(s.ctx, c.Number, nil)
	s.Require().NoError(err)
	s.Equal(fixing.Gain, gl.Classification)
	s.True(decimal.RequireFromString("1.25").Equal(gl.PerGramDelta))
	s.True(decimal.NewFromInt(1250).Equal(gl.TotalDelta))
	s.Equal(string(pricing.TierPrimary), gl.MarketSource)

	override := decimal.NewFromInt(50)
	gl, err = s.service.GainLoss(s.ctx, c.Number, &override)
	s.Require().NoError(err)
	s.Equal(fixing.Loss, gl.Classification)
	s.Equal("OVERRIDE", gl.MarketSource)

	_, err = s.service.GainLoss(s.ctx, "FIS-2025-999", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestSweepExpired() {
	expiring := s.terms("1000")
	expiring.ValidFrom = s.now.AddDate(0, -2, 0)
	expiring.ExpiresAt = s.now.AddDate(0, 0, 2)
	c, err := s.service.Create(s.ctx, expiring)
	s.Require().NoError(err)
	s.create("1000")

	later := requestcontext.WithTime(s.ctx, s.now.AddDate(0, 0, 3))
	changed, err := s.service.SweepExpired(later)
	s.Require().NoError(err)
	s.Equal(1, changed)

	stored, err := s.backend.Stores().Contracts.Find(s.ctx, c.Number)
	s.Require().NoError(err)
	s.Equal(fixing.StatusExpired, stored.Status)

	changed, err = s.service.SweepExpired(later)
	s.Require().NoError(err)
	s.Zero(changed)
}

func TestGetShowsNearExpiryWithoutPersisting(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	backend := memory.New()
	svc := New(backend, &fixedPrices{price: decimal.NewFromInt(45)}, Config{NearExpiryDays: 7})

	c, err := svc.Create(ctx, fixing.Terms{
		ClientID:   "client-1",
		Metal:      metal.Silver,
		Purity:     925,
		TotalGrams: decimal.NewFromInt(5000),
		FixedPrice: decimal.RequireFromString("0.79"),
		ExpiresAt:  now.AddDate(0, 0, 5),
	})
	require.NoError(t, err)

	view, err := svc.Get(ctx, c.Number)
	require.NoError(t, err)
	assert.Equal(t, fixing.StatusNearExpiry, view.ComputedStatus)
	assert.Equal(t, fixing.StatusActive, view.Status)
	assert.Equal(t, 5, view.DaysToExpiry)
}
