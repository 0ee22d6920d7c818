package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bullion/internal/audit"
	"bullion/internal/compliance"
	"bullion/internal/fixing"
	"bullion/internal/storage"
	"bullion/pkg/platform/sentinel"
)

func contract(number string) fixing.Contract {
	return fixing.Contract{
		Number:     number,
		Status:     fixing.StatusActive,
		TotalGrams: decimal.NewFromInt(100),
		ExpiresAt:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRunInTxCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	b := New()

	err := b.RunInTx(ctx, func(ctx context.Context, s storage.Stores) error {
		require.NoError(t, s.Contracts.Create(ctx, contract("FIS-2025-001")))
		return s.Deliveries.Create(ctx, fixing.Delivery{ID: "d1", ContractNumber: "FIS-2025-001"})
	})
	require.NoError(t, err)

	_, err = b.Stores().Contracts.Find(ctx, "FIS-2025-001")
	assert.NoError(t, err)
	got, err := b.Stores().Deliveries.ListByContract(ctx, "FIS-2025-001")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRunInTxRollsBackEveryWrite(t *testing.T) {
	ctx := context.Background()
	b := New()
	require.NoError(t, b.Stores().Contracts.Create(ctx, contract("FIS-2025-001")))

	boom := errors.New("boom")
	err := b.RunInTx(ctx, func(ctx context.Context, s storage.Stores) error {
		c, err := s.Contracts.FindForUpdate(ctx, "FIS-2025-001")
		require.NoError(t, err)
		c.DeliveredGrams = decimal.NewFromInt(50)
		require.NoError(t, s.Contracts.Update(ctx, c))
		require.NoError(t, s.Deliveries.Create(ctx, fixing.Delivery{ID: "d1", ContractNumber: c.Number}))
		require.NoError(t, s.Audit.Append(ctx, audit.Event{ID: "e1", Subject: c.Number}))

		inside, err := s.Contracts.Find(ctx, c.Number)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(50).Equal(inside.DeliveredGrams), "writes are visible inside the transaction")
		return boom
	})
	require.ErrorIs(t, err, boom)

	c, err := b.Stores().Contracts.Find(ctx, "FIS-2025-001")
	require.NoError(t, err)
	assert.True(t, c.DeliveredGrams.IsZero())
	deliveries, _ := b.Stores().Deliveries.ListByContract(ctx, "FIS-2025-001")
	assert.Empty(t, deliveries)
	pending, _ := b.Stores().Audit.Pending(ctx, 0)
	assert.Empty(t, pending)
}

func TestRunInTxRejectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := New().RunInTx(ctx, func(context.Context, storage.Stores) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestContractsSentinelsAndSequence(t *testing.T) {
	ctx := context.Background()
	s := New().Stores()

	require.NoError(t, s.Contracts.Create(ctx, contract("FIS-2025-001")))
	require.NoError(t, s.Contracts.Create(ctx, contract("FIS-2025-007")))
	require.NoError(t, s.Contracts.Create(ctx, contract("FIS-2024-020")))

	assert.ErrorIs(t, s.Contracts.Create(ctx, contract("FIS-2025-001")), sentinel.ErrConflict)
	assert.ErrorIs(t, s.Contracts.Update(ctx, contract("FIS-2025-002")), sentinel.ErrNotFound)
	_, err := s.Contracts.Find(ctx, "FIS-2025-002")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	seq, err := s.Contracts.MaxSequence(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, 7, seq)
	seq, err = s.Contracts.MaxSequence(ctx, 2023)
	require.NoError(t, err)
	assert.Zero(t, seq)
}

func TestContractsListFilter(t *testing.T) {
	ctx := context.Background()
	s := New().Stores()
	early := contract("FIS-2025-001")
	early.ExpiresAt = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	done := contract("FIS-2025-002")
	done.Status = fixing.StatusCompleted
	require.NoError(t, s.Contracts.Create(ctx, early))
	require.NoError(t, s.Contracts.Create(ctx, done))
	require.NoError(t, s.Contracts.Create(ctx, contract("FIS-2025-003")))

	active, err := s.Contracts.List(ctx, storage.ContractFilter{Statuses: []fixing.Status{fixing.StatusActive}})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "FIS-2025-001", active[0].Number)

	expiring, err := s.Contracts.List(ctx, storage.ContractFilter{ExpiresTo: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, "FIS-2025-001", expiring[0].Number)
}

func TestClientsAssignSequenceAndRejectDuplicateFiscalID(t *testing.T) {
	ctx := context.Background()
	s := New().Stores()

	a, err := s.Clients.Create(ctx, compliance.Client{ID: "a", FiscalID: "RSSMRA80A01H501U"})
	require.NoError(t, err)
	b, err := s.Clients.Create(ctx, compliance.Client{ID: "b", FiscalID: "VRDGPP75B12F205X"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Seq)
	assert.Equal(t, int64(2), b.Seq)

	_, err = s.Clients.Create(ctx, compliance.Client{ID: "c", FiscalID: "RSSMRA80A01H501U"})
	assert.ErrorIs(t, err, sentinel.ErrConflict)

	found, err := s.Clients.FindByFiscalID(ctx, "VRDGPP75B12F205X")
	require.NoError(t, err)
	assert.Equal(t, "b", found.ID)
}

func TestAuditOutbox(t *testing.T) {
	ctx := context.Background()
	s := New().Stores()
	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, s.Audit.Append(ctx, audit.Event{ID: id, Subject: "FIS-2025-001"}))
	}

	pending, err := s.Audit.Pending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "e1", pending[0].ID)

	require.NoError(t, s.Audit.MarkPublished(ctx, []string{"e1", "e2"}, time.Now()))
	pending, err = s.Audit.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "e3", pending[0].ID)

	all, err := s.Audit.ListBySubject(ctx, "FIS-2025-001")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
