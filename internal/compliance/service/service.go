// Package service runs the compliance gate: client profiles, AML screening,
// cash authorization and regulator submissions.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bullion/internal/audit"
	"bullion/internal/compliance"
	"bullion/internal/compliance/metrics"
	"bullion/internal/storage"
	dErrors "bullion/pkg/domain-errors"
	"bullion/pkg/requestcontext"
)

const defaultLookupTimeout = 5 * time.Second

// Service is the compliance gate.
type Service struct {
	backend   storage.Backend
	policy    compliance.Policy
	ceiling   decimal.Decimal
	watchlist compliance.Watchlist
	registry  compliance.Registry
	documents compliance.DocumentGenerator
	publisher compliance.SubmissionPublisher

	lookupTimeout time.Duration
	auditor       *audit.Publisher
	logger        *slog.Logger
	metrics       *metrics.Metrics
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

func WithRegistry(r compliance.Registry) Option {
	return func(s *Service) {
		s.registry = r
	}
}

func WithDocumentGenerator(g compliance.DocumentGenerator) Option {
	return func(s *Service) {
		s.documents = g
	}
}

func WithSubmissionPublisher(p compliance.SubmissionPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithDefaultCeiling sets the annual cash ceiling given to new clients.
func WithDefaultCeiling(d decimal.Decimal) Option {
	return func(s *Service) {
		s.ceiling = d
	}
}

// WithLookupTimeout bounds watchlist and registry calls.
func WithLookupTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.lookupTimeout = d
	}
}

func New(backend storage.Backend, watchlist compliance.Watchlist, policy compliance.Policy, opts ...Option) *Service {
	s := &Service{
		backend:       backend,
		policy:        policy,
		ceiling:       decimal.RequireFromString("2999.99"),
		watchlist:     watchlist,
		lookupTimeout: defaultLookupTimeout,
		auditor:       audit.NewPublisher(),
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the thresholds the gate enforces.
func (s *Service) Policy() compliance.Policy {
	return s.policy
}

// RegisterClient opens a compliance profile. New clients start in
// PENDING_REVIEW until their first AML check.
func (s *Service) RegisterClient(ctx context.Context, c compliance.Client) (compliance.Client, error) {
	now := requestcontext.Now(ctx)
	c.FiscalID = strings.ToUpper(strings.TrimSpace(c.FiscalID))
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.AnnualCashCeiling.IsZero() {
		c.AnnualCashCeiling = s.ceiling
	}
	if c.AMLStatus == "" {
		c.AMLStatus = compliance.AMLPendingReview
	}
	c.CashUsed = decimal.Zero
	c.CashYear = now.Year()
	c.Active = true
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := compliance.ValidateClient(c); err != nil {
		return compliance.Client{}, err
	}

	var created compliance.Client
	err := s.backend.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		var err error
		if created, err = st.Clients.Create(ctx, c); err != nil {
			return storage.Translate(err, "client "+c.FiscalID)
		}
		return s.emit(ctx, st.Audit, created.ID, audit.ActionClientRegistered, created.FiscalID, nil)
	})
	if err != nil {
		return compliance.Client{}, err
	}
	s.logger.InfoContext(ctx, "client registered", "client_id", created.ID, "seq", created.Seq)
	return created, nil
}

// GetClient loads a client profile.
func (s *Service) GetClient(ctx context.Context, id string) (compliance.Client, error) {
	c, err := s.backend.Stores().Clients.Find(ctx, id)
	if err != nil {
		return compliance.Client{}, storage.Translate(err, "client "+id)
	}
	return c, nil
}

// CheckCashAuthorization evaluates a prospective cash amount without
// recording anything.
func (s *Service) CheckCashAuthorization(ctx context.Context, clientID string, amount decimal.Decimal) (compliance.Authorization, error) {
	c, err := s.GetClient(ctx, clientID)
	if err != nil {
		return compliance.Authorization{}, err
	}
	return compliance.CheckCashAuthorization(c, amount, s.policy, requestcontext.Now(ctx)), nil
}

// AuthorizeCash checks amount for the client under a row lock held by st's
// transaction and, when authorized, records the usage in the same
// transaction. A denial returns a validation error with every reason and
// writes nothing.
func (s *Service) AuthorizeCash(ctx context.Context, st storage.Stores, clientID string, amount decimal.Decimal, subject string) (compliance.Client, error) {
	now := requestcontext.Now(ctx)
	c, err := st.Clients.FindForUpdate(ctx, clientID)
	if err != nil {
		return compliance.Client{}, storage.Translate(err, "client "+clientID)
	}
	auth := compliance.CheckCashAuthorization(c, amount, s.policy, now)
	s.metrics.IncCashDecision(auth.Authorized)
	if !auth.Authorized {
		return compliance.Client{}, dErrors.NewValidation("cash authorization denied", auth.Reasons)
	}
	compliance.ApplyCashUsage(&c, amount, now)
	if err := st.Clients.Update(ctx, c); err != nil {
		return compliance.Client{}, storage.Translate(err, "client "+clientID)
	}
	err = s.emit(ctx, st.Audit, clientID, audit.ActionCashUsageRecorded,
		fmt.Sprintf("%s for %s", amount.StringFixed(2), subject),
		map[string]string{"amount": amount.StringFixed(2), "used": c.CashUsed.StringFixed(2), "subject": subject})
	return c, err
}

// RecordCashUsage authorizes and records a cash amount in its own transaction.
func (s *Service) RecordCashUsage(ctx context.Context, clientID string, amount decimal.Decimal) (compliance.Client, error) {
	if !amount.IsPositive() {
		return compliance.Client{}, dErrors.NewValidation("invalid cash amount", []string{"amount must be positive"})
	}
	var out compliance.Client
	err := s.backend.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		var err error
		out, err = s.AuthorizeCash(ctx, st, clientID, amount, "manual entry")
		return err
	})
	if err != nil {
		s.RecordDenial(ctx, clientID, "manual entry", err)
		return compliance.Client{}, err
	}
	s.logger.InfoContext(ctx, "cash usage recorded", "client_id", clientID, "amount", amount.String(), "used", out.CashUsed.String())
	return out, nil
}

// RecordDenial writes a cash denial to the audit trail in its own
// transaction, after the rejected one rolled back. Non-validation errors are
// ignored.
func (s *Service) RecordDenial(ctx context.Context, clientID, subject string, cause error) {
	if !dErrors.HasCode(cause, dErrors.CodeValidation) {
		return
	}
	reasons := dErrors.ReasonsOf(cause)
	err := s.backend.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		return s.emit(ctx, st.Audit, clientID, audit.ActionCashDenied,
			subject+": "+strings.Join(reasons, "; "), nil)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to audit cash denial", "client_id", clientID, "error", err)
	}
}

// Screen looks a fiscal identifier up in the watchlists.
func (s *Service) Screen(ctx context.Context, fiscalID string) (compliance.Screening, error) {
	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()
	res, err := s.watchlist.Screen(ctx, strings.ToUpper(strings.TrimSpace(fiscalID)))
	if err != nil {
		s.metrics.IncScreeningFailure()
		return compliance.Screening{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "watchlist screening unavailable")
	}
	return res, nil
}

// RunAMLCheck screens the client and stores the outcome: BLOCKED when
// listed, OK when clear. A failed lookup parks the client in PENDING_REVIEW.
func (s *Service) RunAMLCheck(ctx context.Context, clientID string) (compliance.Client, error) {
	c, err := s.GetClient(ctx, clientID)
	if err != nil {
		return compliance.Client{}, err
	}
	screening, screenErr := s.Screen(ctx, c.FiscalID)

	now := requestcontext.Now(ctx)
	var out compliance.Client
	err = s.backend.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		locked, err := st.Clients.FindForUpdate(ctx, clientID)
		if err != nil {
			return storage.Translate(err, "client "+clientID)
		}
		detail := ""
		if screenErr != nil {
			locked.AMLStatus = compliance.AMLPendingReview
			locked.UpdatedAt = now
			detail = "screening unavailable"
		} else {
			compliance.ApplyScreening(&locked, screening, now)
			if screening.Flagged {
				detail = "listed on " + screening.ListName
			}
		}
		if err := st.Clients.Update(ctx, locked); err != nil {
			return storage.Translate(err, "client "+clientID)
		}
		out = locked
		return s.emit(ctx, st.Audit, clientID, audit.ActionAMLCheckCompleted, detail,
			map[string]string{"status": string(locked.AMLStatus)})
	})
	if err != nil {
		return compliance.Client{}, err
	}
	s.metrics.IncAMLCheck(string(out.AMLStatus))
	s.logger.InfoContext(ctx, "aml check completed", "client_id", clientID, "status", string(out.AMLStatus))
	return out, nil
}

// ValidateTaxID checks format and checksum of a VAT number.
func (s *Service) ValidateTaxID(raw string) compliance.TaxIDResult {
	return compliance.ValidateTaxID(raw)
}

// VerifyCompany validates the tax id and, when valid, looks the company up.
func (s *Service) VerifyCompany(ctx context.Context, taxID string) (compliance.CompanyCheck, error) {
	res := compliance.ValidateTaxID(taxID)
	out := compliance.CompanyCheck{TaxID: res}
	if !res.Valid {
		return out, dErrors.NewValidation("invalid tax id", []string{res.Reason})
	}
	if s.registry == nil {
		return out, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()
	company, err := s.registry.Lookup(ctx, res.Normalized)
	if err != nil {
		return out, storage.Translate(err, "company "+res.Normalized)
	}
	out.Company = &company
	return out, nil
}

// GenerateProfileDocument renders the client's AML profile. A generator
// failure is returned and leaves the client untouched.
func (s *Service) GenerateProfileDocument(ctx context.Context, clientID string) (string, error) {
	if s.documents == nil {
		return "", dErrors.New(dErrors.CodeUnavailable, "document generation is not configured")
	}
	c, err := s.GetClient(ctx, clientID)
	if err != nil {
		return "", err
	}
	now := requestcontext.Now(ctx)
	profile := compliance.Profile{
		Number:      compliance.ProfileNumber(now.Year(), c.Seq),
		GeneratedAt: now,
		Client:      c,
	}
	ref, err := s.documents.Generate(ctx, profile)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "generate AML profile "+profile.Number)
	}
	err = s.backend.RunInTx(ctx, func(ctx context.Context, st storage.Stores) error {
		return s.emit(ctx, st.Audit, clientID, audit.ActionProfileGenerated, profile.Number,
			map[string]string{"document": ref})
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to audit profile generation", "client_id", clientID, "error", err)
	}
	s.metrics.IncDocument()
	return ref, nil
}

// ReportingRequired reports whether tx must be disclosed.
func (s *Service) ReportingRequired(tx compliance.Transaction) bool {
	return compliance.ReportingRequired(tx, s.policy)
}

// PrepareSubmission assembles the regulator payload for tx.
func (s *Service) PrepareSubmission(tx compliance.Transaction) compliance.Submission {
	return compliance.PrepareSubmission(tx, s.policy)
}

// Submit renders a prepared submission and hands it to the publisher.
func (s *Service) Submit(ctx context.Context, sub compliance.Submission) error {
	if !sub.Required || sub.Payload == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "submission not required: "+sub.Reason)
	}
	if s.publisher == nil {
		return dErrors.New(dErrors.CodeUnavailable, "regulator publishing is not configured")
	}
	doc, err := compliance.MarshalReport(sub.Payload)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "render regulator report")
	}
	if err := s.publisher.Publish(ctx, sub.Payload, doc); err != nil {
		s.metrics.IncSubmission("failed")
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "publish regulator report "+sub.Payload.OperationNumber)
	}
	s.metrics.IncSubmission("published")
	return nil
}

func (s *Service) emit(ctx context.Context, log audit.Appender, subject string, action audit.Action, detail string, attrs map[string]string) error {
	return s.auditor.Emit(ctx, log, audit.Event{Subject: subject, Action: action, Detail: detail, Attributes: attrs})
}
