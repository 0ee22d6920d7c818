// Package memory is an in-process storage backend for tests and
// single-node runs without a database.
//
// A transaction works on a copy of the whole state and swaps it in on
// commit, so a failed transaction leaves nothing behind. Transactions are
// serialized by one mutex, which also gives FindForUpdate its locking.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"bullion/internal/audit"
	"bullion/internal/compliance"
	"bullion/internal/fixing"
	"bullion/internal/operations"
	"bullion/internal/storage"
	dErrors "bullion/pkg/domain-errors"
	"bullion/pkg/platform/sentinel"
)

type state struct {
	contracts  map[string]fixing.Contract
	deliveries []fixing.Delivery
	clients    map[string]compliance.Client
	clientSeq  int64
	operations map[string]operations.Operation
	audit      []audit.Event
}

func newState() *state {
	return &state{
		contracts:  make(map[string]fixing.Contract),
		clients:    make(map[string]compliance.Client),
		operations: make(map[string]operations.Operation),
	}
}

func (s *state) clone() *state {
	return &state{
		contracts:  maps.Clone(s.contracts),
		deliveries: slices.Clone(s.deliveries),
		clients:    maps.Clone(s.clients),
		clientSeq:  s.clientSeq,
		operations: maps.Clone(s.operations),
		audit:      slices.Clone(s.audit),
	}
}

// Backend implements storage.Backend in memory.
type Backend struct {
	mu sync.Mutex
	st *state
}

func New() *Backend {
	return &Backend{st: newState()}
}

// RunInTx runs fn against a copy of the state and publishes the copy only
// when fn succeeds.
func (b *Backend) RunInTx(ctx context.Context, fn func(ctx context.Context, s storage.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	work := b.st.clone()
	if err := fn(ctx, b.bind(work)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted before commit")
	}
	b.st = work
	return nil
}

// Stores returns repositories that lock for each call.
func (b *Backend) Stores() storage.Stores {
	return b.bind(nil)
}

func (b *Backend) bind(tx *state) storage.Stores {
	v := view{b: b, tx: tx}
	return storage.Stores{
		Contracts:  contracts{v},
		Deliveries: deliveries{v},
		Clients:    clients{v},
		Operations: ops{v},
		Audit:      auditLog{v},
	}
}

type view struct {
	b  *Backend
	tx *state
}

func (v view) with(fn func(*state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.b.mu.Lock()
	defer v.b.mu.Unlock()
	return fn(v.b.st)
}

func within(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

type contracts struct{ view }

func (r contracts) Create(_ context.Context, c fixing.Contract) error {
	return r.with(func(s *state) error {
		if _, ok := s.contracts[c.Number]; ok {
			return sentinel.ErrConflict
		}
		s.contracts[c.Number] = c
		return nil
	})
}

func (r contracts) Update(_ context.Context, c fixing.Contract) error {
	return r.with(func(s *state) error {
		if _, ok := s.contracts[c.Number]; !ok {
			return sentinel.ErrNotFound
		}
		s.contracts[c.Number] = c
		return nil
	})
}

func (r contracts) Find(_ context.Context, number string) (fixing.Contract, error) {
	var out fixing.Contract
	err := r.with(func(s *state) error {
		c, ok := s.contracts[number]
		if !ok {
			return sentinel.ErrNotFound
		}
		out = c
		return nil
	})
	return out, err
}

func (r contracts) FindForUpdate(ctx context.Context, number string) (fixing.Contract, error) {
	return r.Find(ctx, number)
}

func (r contracts) List(_ context.Context, f storage.ContractFilter) ([]fixing.Contract, error) {
	var out []fixing.Contract
	err := r.with(func(s *state) error {
		for _, c := range s.contracts {
			if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, c.Status) {
				continue
			}
			if f.ClientID != "" && c.ClientID != f.ClientID {
				continue
			}
			if !within(c.ExpiresAt, f.ExpiresFrom, f.ExpiresTo) || !within(c.CreatedAt, f.CreatedFrom, f.CreatedTo) {
				continue
			}
			out = append(out, c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, err
}

func (r contracts) MaxSequence(_ context.Context, year int) (int, error) {
	maxSeq := 0
	err := r.with(func(s *state) error {
		for number := range s.contracts {
			y, seq, err := fixing.ParseSequence(number)
			if err != nil || y != year {
				continue
			}
			maxSeq = max(maxSeq, seq)
		}
		return nil
	})
	return maxSeq, err
}

type deliveries struct{ view }

func (r deliveries) Create(_ context.Context, d fixing.Delivery) error {
	return r.with(func(s *state) error {
		s.deliveries = append(s.deliveries, d)
		return nil
	})
}

func (r deliveries) ListByContract(_ context.Context, number string) ([]fixing.Delivery, error) {
	var out []fixing.Delivery
	err := r.with(func(s *state) error {
		for _, d := range s.deliveries {
			if d.ContractNumber == number {
				out = append(out, d)
			}
		}
		return nil
	})
	return out, err
}

func (r deliveries) ListBetween(_ context.Context, from, to time.Time) ([]fixing.Delivery, error) {
	var out []fixing.Delivery
	err := r.with(func(s *state) error {
		for _, d := range s.deliveries {
			if within(d.DeliveredAt, from, to) {
				out = append(out, d)
			}
		}
		return nil
	})
	return out, err
}

type clients struct{ view }

func (r clients) Create(_ context.Context, c compliance.Client) (compliance.Client, error) {
	err := r.with(func(s *state) error {
		if _, ok := s.clients[c.ID]; ok {
			return sentinel.ErrConflict
		}
		for _, existing := range s.clients {
			if existing.FiscalID == c.FiscalID {
				return sentinel.ErrConflict
			}
		}
		s.clientSeq++
		c.Seq = s.clientSeq
		s.clients[c.ID] = c
		return nil
	})
	return c, err
}

func (r clients) Update(_ context.Context, c compliance.Client) error {
	return r.with(func(s *state) error {
		if _, ok := s.clients[c.ID]; !ok {
			return sentinel.ErrNotFound
		}
		s.clients[c.ID] = c
		return nil
	})
}

func (r clients) Find(_ context.Context, id string) (compliance.Client, error) {
	var out compliance.Client
	err := r.with(func(s *state) error {
		c, ok := s.clients[id]
		if !ok {
			return sentinel.ErrNotFound
		}
		out = c
		return nil
	})
	return out, err
}

func (r clients) FindForUpdate(ctx context.Context, id string) (compliance.Client, error) {
	return r.Find(ctx, id)
}

func (r clients) FindByFiscalID(_ context.Context, fiscalID string) (compliance.Client, error) {
	var out compliance.Client
	err := r.with(func(s *state) error {
		for _, c := range s.clients {
			if c.FiscalID == fiscalID {
				out = c
				return nil
			}
		}
		return sentinel.ErrNotFound
	})
	return out, err
}

type ops struct{ view }

func (r ops) Create(_ context.Context, op operations.Operation) error {
	return r.with(func(s *state) error {
		if _, ok := s.operations[op.Number]; ok {
			return sentinel.ErrConflict
		}
		s.operations[op.Number] = op
		return nil
	})
}

func (r ops) Update(_ context.Context, op operations.Operation) error {
	return r.with(func(s *state) error {
		if _, ok := s.operations[op.Number]; !ok {
			return sentinel.ErrNotFound
		}
		s.operations[op.Number] = op
		return nil
	})
}

func (r ops) Find(_ context.Context, number string) (operations.Operation, error) {
	var out operations.Operation
	err := r.with(func(s *state) error {
		op, ok := s.operations[number]
		if !ok {
			return sentinel.ErrNotFound
		}
		out = op
		return nil
	})
	return out, err
}

func (r ops) FindForUpdate(ctx context.Context, number string) (operations.Operation, error) {
	return r.Find(ctx, number)
}

func (r ops) MaxSequence(_ context.Context, year int) (int, error) {
	maxSeq := 0
	err := r.with(func(s *state) error {
		for _, op := range s.operations {
			y, seq, err := operations.ParseSequence(op.Number)
			if err != nil || y != year {
				continue
			}
			maxSeq = max(maxSeq, seq)
		}
		return nil
	})
	return maxSeq, err
}

func (r ops) ListBetween(_ context.Context, from, to time.Time) ([]operations.Operation, error) {
	var out []operations.Operation
	err := r.with(func(s *state) error {
		for _, op := range s.operations {
			if within(op.OperationDate, from, to) {
				out = append(out, op)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, err
}

type auditLog struct{ view }

func (r auditLog) Append(_ context.Context, e audit.Event) error {
	return r.with(func(s *state) error {
		s.audit = append(s.audit, e)
		return nil
	})
}

func (r auditLog) ListBySubject(_ context.Context, subject string) ([]audit.Event, error) {
	var out []audit.Event
	err := r.with(func(s *state) error {
		for _, e := range s.audit {
			if e.Subject == subject {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

func (r auditLog) Pending(_ context.Context, limit int) ([]audit.Event, error) {
	var out []audit.Event
	err := r.with(func(s *state) error {
		for _, e := range s.audit {
			if e.PublishedAt != nil {
				continue
			}
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (r auditLog) MarkPublished(_ context.Context, ids []string, at time.Time) error {
	return r.with(func(s *state) error {
		for i := range s.audit {
			if slices.Contains(ids, s.audit[i].ID) {
				published := at
				s.audit[i].PublishedAt = &published
			}
		}
		return nil
	})
}
