package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"bullion/internal/audit"
	"bullion/internal/compliance"
	"bullion/internal/compliance/mocks"
	"bullion/internal/metal"
	"bullion/internal/storage"
	"bullion/internal/storage/memory"
	dErrors "bullion/pkg/domain-errors"
	"bullion/pkg/platform/sentinel"
	"bullion/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	ctrl      *gomock.Controller
	watchlist *mocks.MockWatchlist
	registry  *mocks.MockRegistry
	documents *mocks.MockDocumentGenerator
	publisher *mocks.MockSubmissionPublisher
	backend   *memory.Backend
	service   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithActor(requestcontext.WithTime(context.Background(), s.now), "desk-1")
	s.ctrl = gomock.NewController(s.T())
	s.watchlist = mocks.NewMockWatchlist(s.ctrl)
	s.registry = mocks.NewMockRegistry(s.ctrl)
	s.documents = mocks.NewMockDocumentGenerator(s.ctrl)
	s.publisher = mocks.NewMockSubmissionPublisher(s.ctrl)
	s.backend = memory.New()
	s.service = New(s.backend, s.watchlist, compliance.DefaultPolicy(),
		WithRegistry(s.registry),
		WithDocumentGenerator(s.documents),
		WithSubmissionPublisher(s.publisher),
	)
}

// clearedClient registers a client with a valid document and a fresh AML check.
func (s *ServiceSuite) clearedClient(used string) compliance.Client {
	c, err := s.service.RegisterClient(s.ctx, compliance.Client{
		FiscalID:       " rssmra80a01h501u ",
		FirstName:      "Mario",
		LastName:       "Rossi",
		DocumentExpiry: s.now.AddDate(2, 0, 0),
	})
	s.Require().NoError(err)
	err = s.backend.RunInTx(s.ctx, func(ctx context.Context, st storage.Stores) error {
		locked, err := st.Clients.FindForUpdate(ctx, c.ID)
		if err != nil {
			return err
		}
		checked := s.now.AddDate(0, -1, 0)
		locked.AMLStatus = compliance.AMLOk
		locked.LastAMLCheck = &checked
		locked.CashUsed = decimal.RequireFromString(used)
		c = locked
		return st.Clients.Update(ctx, locked)
	})
	s.Require().NoError(err)
	return c
}

func (s *ServiceSuite) actions(subject string) []audit.Action {
	events, err := s.backend.Stores().Audit.ListBySubject(s.ctx, subject)
	s.Require().NoError(err)
	out := make([]audit.Action, 0, len(events))
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

func (s *ServiceSuite) TestRegisterClientDefaults() {
	c, err := s.service.RegisterClient(s.ctx, compliance.Client{FiscalID: "rssmra80a01h501u", LastName: "Rossi"})
	s.Require().NoError(err)

	s.NotEmpty(c.ID)
	s.Equal(int64(1), c.Seq)
	s.Equal("RSSMRA80A01H501U", c.FiscalID)
	s.Equal(compliance.AMLPendingReview, c.AMLStatus)
	s.True(decimal.RequireFromString("2999.99").Equal(c.AnnualCashCeiling))
	s.True(c.Active)
	s.Equal(2025, c.CashYear)
	s.Equal([]audit.Action{audit.ActionClientRegistered}, s.actions(c.ID))

	_, err = s.service.RegisterClient(s.ctx, compliance.Client{FiscalID: "RSSMRA80A01H501U", LastName: "Rossi"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = s.service.RegisterClient(s.ctx, compliance.Client{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestGetClientNotFound() {
	_, err := s.service.GetClient(s.ctx, "missing")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestCheckCashAuthorizationDoesNotRecord() {
	c := s.clearedClient("2000")

	auth, err := s.service.CheckCashAuthorization(s.ctx, c.ID, decimal.RequireFromString("999.99"))
	s.Require().NoError(err)
	s.True(auth.Authorized)

	got, err := s.service.GetClient(s.ctx, c.ID)
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(2000).Equal(got.CashUsed))
}

func (s *ServiceSuite) TestRecordCashUsage() {
	c := s.clearedClient("2000")

	got, err := s.service.RecordCashUsage(s.ctx, c.ID, decimal.RequireFromString("999.99"))
	s.Require().NoError(err)
	s.True(decimal.RequireFromString("2999.99").Equal(got.CashUsed))

	_, err = s.service.RecordCashUsage(s.ctx, c.ID, decimal.RequireFromString("0.01"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Contains(dErrors.ReasonsOf(err)[0], "annual cash ceiling exceeded")

	stored, err := s.service.GetClient(s.ctx, c.ID)
	s.Require().NoError(err)
	s.True(decimal.RequireFromString("2999.99").Equal(stored.CashUsed))
	s.Equal([]audit.Action{
		audit.ActionClientRegistered,
		audit.ActionCashUsageRecorded,
		audit.ActionCashDenied,
	}, s.actions(c.ID))

	_, err = s.service.RecordCashUsage(s.ctx, c.ID, decimal.Zero)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestConcurrentCashUsageNeverExceedsCeiling() {
	c := s.clearedClient("0")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.service.RecordCashUsage(s.ctx, c.ID, decimal.NewFromInt(1000)); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(2, accepted)
	got, err := s.service.GetClient(s.ctx, c.ID)
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(2000).Equal(got.CashUsed))
}

func (s *ServiceSuite) TestRunAMLCheck() {
	s.Run("clear", func() {
		s.SetupTest()
		c := s.clearedClient("0")
		s.watchlist.EXPECT().Screen(gomock.Any(), "RSSMRA80A01H501U").Return(compliance.Screening{}, nil)

		got, err := s.service.RunAMLCheck(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(compliance.AMLOk, got.AMLStatus)
		s.Require().NotNil(got.LastAMLCheck)
		s.Equal(s.now, *got.LastAMLCheck)
	})
	s.Run("listed", func() {
		s.SetupTest()
		c := s.clearedClient("0")
		s.watchlist.EXPECT().Screen(gomock.Any(), gomock.Any()).
			Return(compliance.Screening{Flagged: true, ListName: "UIF terrorism"}, nil)

		got, err := s.service.RunAMLCheck(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(compliance.AMLBlocked, got.AMLStatus)

		events, err := s.backend.Stores().Audit.ListBySubject(s.ctx, c.ID)
		s.Require().NoError(err)
		last := events[len(events)-1]
		s.Equal(audit.ActionAMLCheckCompleted, last.Action)
		s.Equal("listed on UIF terrorism", last.Detail)
	})
	s.Run("lookup failure parks the client for review", func() {
		s.SetupTest()
		c := s.clearedClient("0")
		s.watchlist.EXPECT().Screen(gomock.Any(), gomock.Any()).
			Return(compliance.Screening{}, errors.New("dial tcp: connection refused"))

		got, err := s.service.RunAMLCheck(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(compliance.AMLPendingReview, got.AMLStatus)

		auth, err := s.service.CheckCashAuthorization(s.ctx, c.ID, decimal.NewFromInt(10))
		s.Require().NoError(err)
		s.False(auth.Authorized)
	})
}

func (s *ServiceSuite) TestVerifyCompany() {
	s.Run("invalid checksum never reaches the registry", func() {
		_, err := s.service.VerifyCompany(s.ctx, "00743110158")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal([]string{"tax id checksum mismatch"}, dErrors.ReasonsOf(err))
	})
	s.Run("found", func() {
		s.registry.EXPECT().Lookup(gomock.Any(), "00743110157").
			Return(compliance.Company{TaxID: "00743110157", Active: true, LegalName: "Oro Srl"}, nil)

		got, err := s.service.VerifyCompany(s.ctx, "IT00743110157")
		s.Require().NoError(err)
		s.True(got.TaxID.Valid)
		s.Require().NotNil(got.Company)
		s.Equal("Oro Srl", got.Company.LegalName)
	})
	s.Run("unknown", func() {
		s.registry.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(compliance.Company{}, sentinel.ErrNotFound)

		_, err := s.service.VerifyCompany(s.ctx, "00743110157")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestGenerateProfileDocument() {
	c := s.clearedClient("0")
	s.documents.EXPECT().Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p compliance.Profile) (string, error) {
			s.Equal("AML-2025-000001", p.Number)
			s.Equal(c.ID, p.Client.ID)
			return "/var/bullion/aml_profile_RSSMRA80A01H501U_2025_03_10.pdf", nil
		})

	ref, err := s.service.GenerateProfileDocument(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Contains(ref, "aml_profile_RSSMRA80A01H501U")
	s.Contains(s.actions(c.ID), audit.ActionProfileGenerated)

	s.documents.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("", errors.New("disk full"))
	_, err = s.service.GenerateProfileDocument(s.ctx, c.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ServiceSuite) TestSubmit() {
	tx := compliance.Transaction{
		Number: "OP-2025-000001", Date: s.now, Kind: "PURCHASE", Metal: metal.Gold,
		NetGrams: decimal.NewFromInt(250), Value: decimal.NewFromInt(12500),
	}
	sub := s.service.PrepareSubmission(tx)
	s.Require().True(sub.Required)

	s.publisher.EXPECT().Publish(gomock.Any(), sub.Payload, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ *compliance.GoldReport, doc []byte) error {
			s.Contains(string(doc), "<NumeroOperazione>OP-2025-000001</NumeroOperazione>")
			return nil
		})
	s.Require().NoError(s.service.Submit(s.ctx, sub))

	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
	err := s.service.Submit(s.ctx, sub)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	tx.Value = decimal.NewFromInt(100)
	err = s.service.Submit(s.ctx, s.service.PrepareSubmission(tx))
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
