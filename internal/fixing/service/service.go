// Package service applies the fixing contract rules inside storage
// transactions: creation, delivery settlement, renewal and the lifecycle
// transitions.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bullion/internal/audit"
	"bullion/internal/fixing"
	"bullion/internal/fixing/metrics"
	"bullion/internal/metal"
	"bullion/internal/pricing"
	"bullion/internal/storage"
	dErrors "bullion/pkg/domain-errors"
	"bullion/pkg/requestcontext"
)

const (
	defaultRenewalMonths  = 3
	defaultNearExpiryDays = 7
)

// PriceSource resolves market prices. It never fails.
type PriceSource interface {
	Resolve(ctx context.Context, m metal.Metal, p metal.Purity) pricing.Quote
}

// Config holds contract lifecycle defaults.
type Config struct {
	RenewalMonths  int
	NearExpiryDays int
}

// Service owns fixing contracts and their deliveries.
type Service struct {
	backend storage.Backend
	prices  PriceSource
	cfg     Config

	auditor *audit.Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics
	newID   func() string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p *audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func New(backend storage.Backend, prices PriceSource, cfg Config, opts ...Option) *Service {
	if cfg.RenewalMonths <= 0 {
		cfg.RenewalMonths = defaultRenewalMonths
	}
	if cfg.NearExpiryDays <= 0 {
		cfg.NearExpiryDays = defaultNearExpiryDays
	}
	s := &Service{
		backend: backend,
		prices:  prices,
		cfg:     cfg,
		auditor: audit.NewPublisher(),
		logger:  slog.New(slog.DiscardHandler),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a contract under the next number of the current year. A zero
// fixed price is filled from the resolved market price.
func (s *Service) Create(ctx context.Context, terms fixing.Terms) (fixing.Contract, error) {
	now := requestcontext.Now(ctx)
	if terms.FixedPrice.IsZero() && terms.Metal.IsValid() && terms.Purity.IsValid() {
		terms.FixedPrice = s.prices.Resolve(ctx, terms.Metal, terms.Purity).PricePerGram
	}
	if err := fixing.ValidateTerms(terms); err != nil {
		return fixing.Contract{}, err
	}

	var created fixing.Contract
	err := s.backend.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		number, err := nextNumber(ctx, st.Contracts, now.Year())
		if err != nil {
			return err
		}
		created = fixing.NewContract(number, terms, requestcontext.Actor(ctx), now)
		if err := st.Contracts.Create(ctx, created); err != nil {
			return storage.Translate(err, "create contract "+number)
		}
		return s.emit(ctx, st, created.Number, audit.ActionContractCreated,
			fmt.Sprintf("%s %s %sg at %s", created.Metal, created.Purity, created.TotalGrams.StringFixed(3), created.FixedPrice.StringFixed(4)))
	})
	if err != nil {
		return fixing.Contract{}, err
	}
	s.metrics.IncContractCreated()
	s.logger.InfoContext(ctx, "fixing contract created",
		"contract", created.Number,
		"client_id", created.ClientID,
		"grams", created.TotalGrams.String(),
		"price_per_gram", created.FixedPrice.String(),
	)
	return created, nil
}

// Get returns the contract with its derived fields. Pending automatic
// transitions are persisted first.
func (s *Service) Get(ctx context.Context, number string) (fixing.View, error) {
	now := requestcontext.Now(ctx)
	c, err := s.backend.Stores().Contracts.Find(ctx, number)
	if err != nil {
		return fixing.View{}, storage.Translate(err, "contract "+number)
	}
	probe := c
	if fixing.RecomputeDerivedState(&probe, now) {
		if c, err = s.recompute(ctx, number); err != nil {
			return fixing.View{}, err
		}
	}
	return fixing.NewView(c, now, s.cfg.NearExpiryDays), nil
}

// List returns contract views matching f.
func (s *Service) List(ctx context.Context, f storage.ContractFilter) ([]fixing.View, error) {
	now := requestcontext.Now(ctx)
	contracts, err := s.backend.Stores().Contracts.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list contracts")
	}
	views := make([]fixing.View, len(contracts))
	for i, c := range contracts {
		views[i] = fixing.NewView(c, now, s.cfg.NearExpiryDays)
	}
	return views, nil
}

// CanAcceptDelivery reports whether grams could be delivered now.
func (s *Service) CanAcceptDelivery(ctx context.Context, number string, grams decimal.Decimal) (fixing.Eligibility, error) {
	c, err := s.backend.Stores().Contracts.Find(ctx, number)
	if err != nil {
		return fixing.Eligibility{}, storage.Translate(err, "contract "+number)
	}
	return fixing.CanAcceptDelivery(c, grams, requestcontext.Now(ctx)), nil
}

// RecordDelivery settles a delivery. The delivery row, the delivered
// quantity and any resulting completion commit together or not at all.
func (s *Service) RecordDelivery(ctx context.Context, number string, req fixing.DeliveryRequest) (fixing.Delivery, error) {
	now := requestcontext.Now(ctx)
	var (
		delivery fixing.Delivery
		contract fixing.Contract
	)
	err := s.backend.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		c, err := st.Contracts.FindForUpdate(ctx, number)
		if err != nil {
			return storage.Translate(err, "contract "+number)
		}
		if c.Status == fixing.StatusCancelled {
			return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("contract %s is cancelled", number))
		}
		fixing.RecomputeDerivedState(&c, now)
		if elig := fixing.CanAcceptDelivery(c, req.Grams, now); !elig.Valid {
			return dErrors.NewValidation("delivery rejected", elig.Reasons)
		}

		previous := c.Status
		delivery = fixing.NewDelivery(&c, s.newID(), req, requestcontext.Actor(ctx), now)
		if err := st.Deliveries.Create(ctx, delivery); err != nil {
			return storage.Translate(err, "record delivery")
		}
		if err := st.Contracts.Update(ctx, c); err != nil {
			return storage.Translate(err, "update contract "+number)
		}
		if err := s.emit(ctx, st, number, audit.ActionDeliveryRecorded,
			fmt.Sprintf("%sg at %s = %s", delivery.Grams.StringFixed(3), delivery.PriceApplied.StringFixed(4), delivery.Value.StringFixed(2))); err != nil {
			return err
		}
		if c.Status != previous {
			if err := s.emitStatus(ctx, st, c.Number, previous, c.Status); err != nil {
				return err
			}
		}
		contract = c
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			s.metrics.IncDeliveryRejection()
		}
		return fixing.Delivery{}, err
	}

	s.metrics.ObserveDelivery(contract.Metal.String(), delivery.Grams)
	if contract.Status == fixing.StatusCompleted {
		s.metrics.IncTransition(string(fixing.StatusCompleted))
	}
	s.logger.InfoContext(ctx, "delivery recorded",
		"contract", number,
		"grams", delivery.Grams.String(),
		"value", delivery.Value.String(),
		"delivered_total", contract.DeliveredGrams.String(),
		"status", string(contract.Status),
	)
	return delivery, nil
}

// Deliveries lists the settlement records of a contract.
func (s *Service) Deliveries(ctx context.Context, number string) ([]fixing.Delivery, error) {
	stores := s.backend.Stores()
	if _, err := stores.Contracts.Find(ctx, number); err != nil {
		return nil, storage.Translate(err, "contract "+number)
	}
	out, err := stores.Deliveries.ListByContract(ctx, number)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list deliveries")
	}
	return out, nil
}

// GainLoss values the remaining quantity of a contract against the market.
// A nil override uses the resolved market price.
func (s *Service) GainLoss(ctx context.Context, number string, override *decimal.Decimal) (fixing.GainLoss, error) {
	c, err := s.backend.Stores().Contracts.Find(ctx, number)
	if err != nil {
		return fixing.GainLoss{}, storage.Translate(err, "contract "+number)
	}
	return s.gainLoss(ctx, c, override), nil
}

// GainLossOf values an already loaded contract.
func (s *Service) GainLossOf(ctx context.Context, c fixing.Contract) fixing.GainLoss {
	return s.gainLoss(ctx, c, nil)
}

func (s *Service) gainLoss(ctx context.Context, c fixing.Contract, override *decimal.Decimal) fixing.GainLoss {
	if override != nil {
		gl := fixing.ComputeGainLoss(c, *override)
		gl.MarketSource = "OVERRIDE"
		return gl
	}
	q := s.prices.Resolve(ctx, c.Metal, c.Purity)
	gl := fixing.ComputeGainLoss(c, q.PricePerGram)
	gl.MarketSource = string(q.Source)
	return gl
}

// Renew carries the remaining quantity of an active contract into a new
// contract and closes the source as COMPLETED in the same transaction.
func (s *Service) Renew(ctx context.Context, number string, terms fixing.RenewalTerms) (fixing.Contract, error) {
	now := requestcontext.Now(ctx)

	var price decimal.Decimal
	if terms.FixedPrice != nil {
		price = *terms.FixedPrice
		if !price.IsPositive() {
			return fixing.Contract{}, dErrors.NewValidation("invalid renewal terms", []string{"fixed price must be positive"})
		}
	} else {
		src, err := s.backend.Stores().Contracts.Find(ctx, number)
		if err != nil {
			return fixing.Contract{}, storage.Translate(err, "contract "+number)
		}
		price = s.prices.Resolve(ctx, src.Metal, src.Purity).PricePerGram
	}

	var renewed fixing.Contract
	err := s.backend.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		src, err := st.Contracts.FindForUpdate(ctx, number)
		if err != nil {
			return storage.Translate(err, "contract "+number)
		}
		fixing.RecomputeDerivedState(&src, now)
		if err := fixing.CanRenew(src); err != nil {
			return err
		}
		next, err := nextNumber(ctx, st.Contracts, now.Year())
		if err != nil {
			return err
		}
		renewed = fixing.RenewalOf(src, next, price, terms, s.cfg.RenewalMonths, requestcontext.Actor(ctx), now)
		if err := st.Contracts.Create(ctx, renewed); err != nil {
			return storage.Translate(err, "create renewal "+next)
		}
		if err := fixing.Transition(&src, fixing.StatusCompleted, now); err != nil {
			return err
		}
		if err := st.Contracts.Update(ctx, src); err != nil {
			return storage.Translate(err, "close contract "+number)
		}
		if err := s.emit(ctx, st, number, audit.ActionContractRenewed, "renewed as "+next); err != nil {
			return err
		}
		return s.emit(ctx, st, next, audit.ActionContractCreated, "renewal of "+number)
	})
	if err != nil {
		return fixing.Contract{}, err
	}
	s.metrics.IncRenewal()
	s.metrics.IncContractCreated()
	s.logger.InfoContext(ctx, "fixing contract renewed",
		"contract", number,
		"renewal", renewed.Number,
		"grams", renewed.TotalGrams.String(),
		"price_per_gram", renewed.FixedPrice.String(),
	)
	return renewed, nil
}

// Activate moves a DRAFT contract to ACTIVE.
func (s *Service) Activate(ctx context.Context, number string) (fixing.Contract, error) {
	return s.transition(ctx, number, fixing.StatusActive)
}

// Suspend pauses an ACTIVE contract.
func (s *Service) Suspend(ctx context.Context, number string) (fixing.Contract, error) {
	return s.transition(ctx, number, fixing.StatusSuspended)
}

// Resume reactivates a SUSPENDED contract.
func (s *Service) Resume(ctx context.Context, number string) (fixing.Contract, error) {
	return s.transition(ctx, number, fixing.StatusActive)
}

// Cancel terminates a contract. Cancelled contracts accept no further changes.
func (s *Service) Cancel(ctx context.Context, number string) (fixing.Contract, error) {
	return s.transition(ctx, number, fixing.StatusCancelled)
}

func (s *Service) transition(ctx context.Context, number string, target fixing.Status) (fixing.Contract, error) {
	now := requestcontext.Now(ctx)
	var out fixing.Contract
	err := s.backend.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		c, err := st.Contracts.FindForUpdate(ctx, number)
		if err != nil {
			return storage.Translate(err, "contract "+number)
		}
		previous := c.Status
		if err := fixing.Transition(&c, target, now); err != nil {
			return err
		}
		fixing.RecomputeDerivedState(&c, now)
		if err := st.Contracts.Update(ctx, c); err != nil {
			return storage.Translate(err, "update contract "+number)
		}
		out = c
		return s.emitStatus(ctx, st, number, previous, c.Status)
	})
	if err != nil {
		return fixing.Contract{}, err
	}
	s.metrics.IncTransition(string(out.Status))
	s.logger.InfoContext(ctx, "fixing contract status changed", "contract", number, "status", string(out.Status))
	return out, nil
}

// SweepExpired persists the automatic transitions of every active contract
// past its expiry and returns how many changed.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	candidates, err := s.backend.Stores().Contracts.List(ctx, storage.ContractFilter{
		Statuses:  []fixing.Status{fixing.StatusActive},
		ExpiresTo: now,
	})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "list expiring contracts")
	}
	var (
		changed int
		errs    []error
	)
	for _, c := range candidates {
		before := c.Status
		after, err := s.recompute(ctx, c.Number)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if after.Status != before {
			changed++
		}
	}
	if changed > 0 {
		s.logger.InfoContext(ctx, "expired contracts swept", "changed", changed)
	}
	return changed, errors.Join(errs...)
}

func (s *Service) recompute(ctx context.Context, number string) (fixing.Contract, error) {
	now := requestcontext.Now(ctx)
	var out fixing.Contract
	err := s.backend.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		c, err := st.Contracts.FindForUpdate(ctx, number)
		if err != nil {
			return storage.Translate(err, "contract "+number)
		}
		previous := c.Status
		out = c
		if !fixing.RecomputeDerivedState(&c, now) {
			return nil
		}
		c.UpdatedAt = now
		if err := st.Contracts.Update(ctx, c); err != nil {
			return storage.Translate(err, "update contract "+number)
		}
		out = c
		return s.emitStatus(ctx, st, number, previous, c.Status)
	})
	if err == nil && out.Status == fixing.StatusExpired {
		s.metrics.IncTransition(string(fixing.StatusExpired))
	}
	return out, err
}

func (s *Service) emit(ctx context.Context, st storage.Stores, subject string, action audit.Action, detail string) error {
	return s.auditor.Emit(ctx, st.Audit, audit.Event{Subject: subject, Action: action, Detail: detail})
}

func (s *Service) emitStatus(ctx context.Context, st storage.Stores, subject string, from, to fixing.Status) error {
	return s.auditor.Emit(ctx, st.Audit, audit.Event{
		Subject:    subject,
		Action:     audit.ActionStatusChanged,
		Detail:     fmt.Sprintf("%s -> %s", from, to),
		Attributes: map[string]string{"from": string(from), "to": string(to)},
	})
}

func nextNumber(ctx context.Context, contracts storage.Contracts, year int) (string, error) {
	seq, err := contracts.MaxSequence(ctx, year)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "allocate contract number")
	}
	return fixing.FormatNumber(year, seq+1), nil
}
