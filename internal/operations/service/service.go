// Package service runs desk operations through their lifecycle. Confirmation
// is the single transactional boundary where the compliance gate, the cash
// counter and the holding period meet.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"bullion/internal/audit"
	"bullion/internal/compliance"
	"bullion/internal/metal"
	"bullion/internal/operations"
	"bullion/internal/operations/metrics"
	"bullion/internal/pricing"
	"bullion/internal/storage"
	dErrors "bullion/pkg/domain-errors"
	"bullion/pkg/requestcontext"
)

// PriceSource resolves market prices. It never fails.
type PriceSource interface {
	Resolve(ctx context.Context, m metal.Metal, p metal.Purity) pricing.Quote
}

// Gate is the slice of the compliance gate an operation needs.
type Gate interface {
	GetClient(ctx context.Context, id string) (compliance.Client, error)
	// AuthorizeCash checks and records cash usage inside st's transaction.
	AuthorizeCash(ctx context.Context, st storage.Stores, clientID string, amount decimal.Decimal, subject string) (compliance.Client, error)
	RecordDenial(ctx context.Context, clientID, subject string, cause error)
	PrepareSubmission(tx compliance.Transaction) compliance.Submission
	Submit(ctx context.Context, sub compliance.Submission) error
}

var transitions = map[operations.Status][]operations.Status{
	operations.StatusDraft:     {operations.StatusConfirmed, operations.StatusCancelled},
	operations.StatusConfirmed: {operations.StatusCompleted, operations.StatusCancelled},
}

// Service owns desk operations.
type Service struct {
	backend storage.Backend
	gate    Gate
	prices  PriceSource
	holding operations.HoldingPolicy

	auditor *audit.Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics
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

// WithPriceSource fills missing market prices on Create.
func WithPriceSource(p PriceSource) Option {
	return func(s *Service) {
		s.prices = p
	}
}

func New(backend storage.Backend, gate Gate, holding operations.HoldingPolicy, opts ...Option) *Service {
	s := &Service{
		backend: backend,
		gate:    gate,
		holding: holding,
		auditor: audit.NewPublisher(),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a DRAFT operation under the next number of its year.
func (s *Service) Create(ctx context.Context, d operations.Draft) (operations.Operation, error) {
	if err := operations.ValidateDraft(d); err != nil {
		return operations.Operation{}, err
	}
	if d.MarketPrice.IsZero() && s.prices != nil {
		d.MarketPrice = s.prices.Resolve(ctx, d.Metal, d.Purity).PricePerGram
	}
	if d.AppliedPrice.IsZero() {
		d.AppliedPrice = d.MarketPrice
	}

	now := requestcontext.Now(ctx)
	var created operations.Operation
	err := s.backend.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		if d.ClientID != "" {
			if _, err := st.Clients.Find(ctx, d.ClientID); err != nil {
				return storage.Translate(err, "client "+d.ClientID)
			}
		}
		year := now.Year()
		if !d.OperationDate.IsZero() {
			year = d.OperationDate.Year()
		}
		seq, err := st.Operations.MaxSequence(ctx, year)
		if err != nil {
			return storage.Translate(err, "operation sequence")
		}
		op := operations.NewOperation(operations.FormatNumber(year, seq+1), d, requestcontext.Actor(ctx), now)
		if err := st.Operations.Create(ctx, op); err != nil {
			return storage.Translate(err, "operation "+op.Number)
		}
		created = op
		return s.emit(ctx, st.Audit, op.Number, audit.ActionOperationCreated,
			fmt.Sprintf("%s %s g %s", op.Kind, op.NetGrams.StringFixed(3), op.Metal), nil)
	})
	if err != nil {
		return operations.Operation{}, err
	}
	s.metrics.IncCreated(string(created.Kind))
	s.logger.InfoContext(ctx, "operation created",
		"number", created.Number, "kind", string(created.Kind), "value", created.TotalValue.String())
	return created, nil
}

// Get loads an operation.
func (s *Service) Get(ctx context.Context, number string) (operations.Operation, error) {
	op, err := s.backend.Stores().Operations.Find(ctx, number)
	if err != nil {
		return operations.Operation{}, storage.Translate(err, "operation "+number)
	}
	return op, nil
}

// Confirm turns a DRAFT operation into CONFIRMED in one transaction. Cash
// paid by a client is authorized and recorded, and client purchases get their
// mandatory holding date. A denial or any failure leaves nothing applied.
func (s *Service) Confirm(ctx context.Context, number string) (operations.Operation, error) {
	now := requestcontext.Now(ctx)
	var (
		confirmed operations.Operation
		cashFrom  string
	)
	err := s.backend.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		op, err := st.Operations.FindForUpdate(ctx, number)
		if err != nil {
			return storage.Translate(err, "operation "+number)
		}
		if err := checkTransition(op, operations.StatusConfirmed); err != nil {
			return err
		}
		operations.RecalculateTotals(&op)

		if op.CashAmount.IsPositive() && op.ClientID != "" {
			cashFrom = op.ClientID
			if _, err := s.gate.AuthorizeCash(ctx, st, op.ClientID, op.CashAmount, op.Number); err != nil {
				return err
			}
			op.AMLChecked = true
		}
		if op.Kind == operations.KindPurchase && op.ClientID != "" {
			until := now.AddDate(0, 0, s.holding.Days(op.TotalValue))
			op.HoldingUntil = &until
		}
		op.Status = operations.StatusConfirmed
		op.UpdatedAt = now
		if err := st.Operations.Update(ctx, op); err != nil {
			return storage.Translate(err, "operation "+number)
		}
		confirmed = op
		return s.emit(ctx, st.Audit, op.Number, audit.ActionOperationConfirmed, "",
			map[string]string{"value": op.TotalValue.StringFixed(2), "cash": op.CashAmount.StringFixed(2)})
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			s.metrics.IncConfirmation("denied")
			if cashFrom != "" {
				s.gate.RecordDenial(ctx, cashFrom, number, err)
			}
		} else {
			s.metrics.IncConfirmation("failed")
		}
		return operations.Operation{}, err
	}
	s.metrics.IncConfirmation("confirmed")
	s.metrics.AddConfirmedValue(confirmed.Metal.String(), confirmed.TotalValue.InexactFloat64())
	s.logger.InfoContext(ctx, "operation confirmed",
		"number", confirmed.Number, "value", confirmed.TotalValue.String(), "cash", confirmed.CashAmount.String())
	return confirmed, nil
}

// Complete closes a CONFIRMED operation once payment has settled.
func (s *Service) Complete(ctx context.Context, number string) (operations.Operation, error) {
	return s.transition(ctx, number, operations.StatusCompleted, audit.ActionStatusChanged, func(op *operations.Operation) {
		op.PaymentCompleted = true
	})
}

// Cancel voids a DRAFT or CONFIRMED operation. Recorded cash usage is not
// given back.
func (s *Service) Cancel(ctx context.Context, number string) (operations.Operation, error) {
	return s.transition(ctx, number, operations.StatusCancelled, audit.ActionOperationCancelled, nil)
}

// SubmitRegulatoryReport discloses a reportable operation to the regulator
// and marks it as reported. Operations below the threshold return the
// submission with its reason and stay untouched; a publishing failure leaves
// the flag unset.
func (s *Service) SubmitRegulatoryReport(ctx context.Context, number string) (operations.Operation, compliance.Submission, error) {
	op, err := s.Get(ctx, number)
	if err != nil {
		return operations.Operation{}, compliance.Submission{}, err
	}
	switch {
	case op.Status == operations.StatusCancelled:
		return op, compliance.Submission{}, dErrors.New(dErrors.CodeInvariantViolation, "operation "+number+" is cancelled")
	case op.ReportSent:
		return op, compliance.Submission{}, dErrors.New(dErrors.CodeConflict, "operation "+number+" already reported")
	}

	var client *compliance.Client
	if op.ClientID != "" {
		c, err := s.gate.GetClient(ctx, op.ClientID)
		if err != nil {
			return operations.Operation{}, compliance.Submission{}, err
		}
		client = &c
	}
	sub := s.gate.PrepareSubmission(op.Transaction(client))
	if !sub.Required {
		return op, sub, nil
	}
	if err := s.gate.Submit(ctx, sub); err != nil {
		s.logger.WarnContext(ctx, "regulatory report not sent", "number", number, "error", err)
		return operations.Operation{}, sub, err
	}

	var reported operations.Operation
	err = s.backend.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		locked, err := st.Operations.FindForUpdate(ctx, number)
		if err != nil {
			return storage.Translate(err, "operation "+number)
		}
		locked.ReportSent = true
		locked.UpdatedAt = requestcontext.Now(ctx)
		if err := st.Operations.Update(ctx, locked); err != nil {
			return storage.Translate(err, "operation "+number)
		}
		reported = locked
		return s.emit(ctx, st.Audit, number, audit.ActionRegulatoryReportSent, "", nil)
	})
	if err != nil {
		return operations.Operation{}, sub, err
	}
	s.logger.InfoContext(ctx, "regulatory report sent", "number", number)
	return reported, sub, nil
}

func (s *Service) transition(ctx context.Context, number string, to operations.Status, action audit.Action, mutate func(*operations.Operation)) (operations.Operation, error) {
	var out operations.Operation
	err := s.backend.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		op, err := st.Operations.FindForUpdate(ctx, number)
		if err != nil {
			return storage.Translate(err, "operation "+number)
		}
		if err := checkTransition(op, to); err != nil {
			return err
		}
		from := op.Status
		op.Status = to
		op.UpdatedAt = requestcontext.Now(ctx)
		if mutate != nil {
			mutate(&op)
		}
		if err := st.Operations.Update(ctx, op); err != nil {
			return storage.Translate(err, "operation "+number)
		}
		out = op
		return s.emit(ctx, st.Audit, number, action, "",
			map[string]string{"from": string(from), "to": string(to)})
	})
	if err != nil {
		return operations.Operation{}, err
	}
	return out, nil
}

func checkTransition(op operations.Operation, to operations.Status) error {
	for _, allowed := range transitions[op.Status] {
		if allowed == to {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeInvariantViolation,
		fmt.Sprintf("operation %s cannot move from %s to %s", op.Number, op.Status, to))
}

func (s *Service) emit(ctx context.Context, log audit.Appender, subject string, action audit.Action, detail string, attrs map[string]string) error {
	return s.auditor.Emit(ctx, log, audit.Event{Subject: subject, Action: action, Detail: detail, Attributes: attrs})
}
