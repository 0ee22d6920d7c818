package reports

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"bullion/internal/fixing"
	"bullion/internal/operations"
	"bullion/internal/storage"
	"bullion/pkg/requestcontext"
)

const valuationConcurrency = 8

var hundred = decimal.NewFromInt(100)

// Valuer values a contract against the market.
type Valuer interface {
	GainLossOf(ctx context.Context, c fixing.Contract) fixing.GainLoss
}

// Service computes dashboard aggregates from the stores.
type Service struct {
	backend storage.Backend
	valuer  Valuer
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(backend storage.Backend, valuer Valuer, opts ...Option) *Service {
	s := &Service{
		backend: backend,
		valuer:  valuer,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func active() []fixing.Status {
	return []fixing.Status{fixing.StatusActive}
}

// DailySummary aggregates the activity of date's calendar day. Each figure is
// computed independently; a failing step only marks its own figures unavailable.
func (s *Service) DailySummary(ctx context.Context, date time.Time) DailySummary {
	day := startOfDay(date)
	next := day.AddDate(0, 0, 1)
	st := s.backend.Stores()
	out := DailySummary{Date: day}

	var g errgroup.Group
	g.Go(func() error {
		out.ExpiringToday = s.countContracts(ctx, st, storage.ContractFilter{Statuses: active(), ExpiresFrom: day, ExpiresTo: next})
		return nil
	})
	g.Go(func() error {
		out.ExpiringWithinWeek = s.countContracts(ctx, st, storage.ContractFilter{Statuses: active(), ExpiresFrom: day, ExpiresTo: day.AddDate(0, 0, 7)})
		return nil
	})
	g.Go(func() error {
		deliveries, err := st.Deliveries.ListBetween(ctx, day, next)
		if err != nil {
			s.warn(ctx, "deliveries", err)
			out.DeliveriesCount, out.DeliveriesValue = unavailable[int](err), unavailable[decimal.Decimal](err)
			return nil
		}
		total := decimal.Zero
		for _, d := range deliveries {
			total = total.Add(d.Value)
		}
		out.DeliveriesCount, out.DeliveriesValue = available(len(deliveries)), available(total.Round(2))
		return nil
	})
	g.Go(func() error {
		ops, err := st.Operations.ListBetween(ctx, day, next)
		if err != nil {
			s.warn(ctx, "operations", err)
			out.OperationsCount, out.OperationsValue = unavailable[int](err), unavailable[decimal.Decimal](err)
			return nil
		}
		count, total := 0, decimal.Zero
		for _, op := range ops {
			if op.Status == operations.StatusCancelled {
				continue
			}
			count++
			total = total.Add(op.TotalValue)
		}
		out.OperationsCount, out.OperationsValue = available(count), available(total.Round(2))
		return nil
	})
	g.Go(func() error {
		contracts, err := st.Contracts.List(ctx, storage.ContractFilter{Statuses: active()})
		if err != nil {
			s.warn(ctx, "residual value", err)
			out.ActiveResidualValue = unavailable[decimal.Decimal](err)
			return nil
		}
		total := decimal.Zero
		for _, c := range contracts {
			total = total.Add(c.ResidualValue())
		}
		out.ActiveResidualValue = available(total.Round(2))
		return nil
	})
	_ = g.Wait()
	return out
}

// Performance values every contract signed in [from, to), cancelled ones
// excluded, against the market and sums gains and losses.
func (s *Service) Performance(ctx context.Context, from, to time.Time) Performance {
	out := Performance{From: from, To: to}
	contracts, err := s.backend.Stores().Contracts.List(ctx, storage.ContractFilter{CreatedFrom: from, CreatedTo: to})
	if err != nil {
		s.warn(ctx, "performance", err)
		out.Contracts = unavailable[int](err)
		out.ContractsInGain, out.ContractsInLoss = unavailable[int](err), unavailable[int](err)
		out.TotalGain, out.TotalLoss = unavailable[decimal.Decimal](err), unavailable[decimal.Decimal](err)
		out.Net, out.VolumeGrams = unavailable[decimal.Decimal](err), unavailable[decimal.Decimal](err)
		out.MarginPercent = unavailable[decimal.Decimal](err)
		return out
	}
	contracts = slices.DeleteFunc(contracts, func(c fixing.Contract) bool {
		return c.Status == fixing.StatusCancelled
	})

	valuations := make([]fixing.GainLoss, len(contracts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(valuationConcurrency)
	for i, c := range contracts {
		g.Go(func() error {
			valuations[i] = s.valuer.GainLossOf(gctx, c)
			return nil
		})
	}
	_ = g.Wait()

	inGain, inLoss := 0, 0
	gain, loss := decimal.Zero, decimal.Zero
	volume, committedValue := decimal.Zero, decimal.Zero
	for i, c := range contracts {
		gl := valuations[i]
		if gl.Classification == fixing.Loss {
			inLoss++
			loss = loss.Add(gl.TotalDelta.Abs())
		} else {
			inGain++
			gain = gain.Add(gl.TotalDelta)
		}
		volume = volume.Add(c.TotalGrams)
		committedValue = committedValue.Add(c.TotalGrams.Mul(c.FixedPrice))
	}
	net := gain.Sub(loss)
	margin := decimal.Zero
	if !committedValue.IsZero() {
		margin = net.Div(committedValue).Mul(hundred).Round(2)
	}

	out.Contracts = available(len(contracts))
	out.ContractsInGain, out.ContractsInLoss = available(inGain), available(inLoss)
	out.TotalGain, out.TotalLoss = available(gain.Round(2)), available(loss.Round(2))
	out.Net = available(net.Round(2))
	out.VolumeGrams = available(volume.Round(3))
	out.MarginPercent = available(margin)
	return out
}

// ExpiryReport lists active contracts already past expiry, expiring later
// today, within the week and within the month. Buckets do not overlap.
func (s *Service) ExpiryReport(ctx context.Context) ExpiryReport {
	now := requestcontext.Now(ctx)
	endOfDay := startOfDay(now).AddDate(0, 0, 1)
	week := now.AddDate(0, 0, 7)
	month := now.AddDate(0, 1, 0)
	if week.Before(endOfDay) {
		week = endOfDay
	}
	st := s.backend.Stores()
	out := ExpiryReport{GeneratedAt: now}

	buckets := []struct {
		dst      *Metric[[]string]
		from, to time.Time
	}{
		{&out.Expired, time.Time{}, now},
		{&out.ExpiringToday, now, endOfDay},
		{&out.ExpiringInWeek, endOfDay, week},
		{&out.ExpiringInMonth, week, month},
	}
	var g errgroup.Group
	for _, b := range buckets {
		g.Go(func() error {
			*b.dst = s.contractNumbers(ctx, st, storage.ContractFilter{Statuses: active(), ExpiresFrom: b.from, ExpiresTo: b.to})
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Service) countContracts(ctx context.Context, st storage.Stores, f storage.ContractFilter) Metric[int] {
	contracts, err := st.Contracts.List(ctx, f)
	if err != nil {
		s.warn(ctx, "contract count", err)
		return unavailable[int](err)
	}
	return available(len(contracts))
}

func (s *Service) contractNumbers(ctx context.Context, st storage.Stores, f storage.ContractFilter) Metric[[]string] {
	contracts, err := st.Contracts.List(ctx, f)
	if err != nil {
		s.warn(ctx, "expiry bucket", err)
		return unavailable[[]string](err)
	}
	numbers := make([]string, 0, len(contracts))
	for _, c := range contracts {
		numbers = append(numbers, c.Number)
	}
	return available(numbers)
}

func (s *Service) warn(ctx context.Context, step string, err error) {
	s.logger.WarnContext(ctx, "report step unavailable", "step", step, "error", err)
}
