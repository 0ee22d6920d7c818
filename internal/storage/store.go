// Package storage declares the persistence contract of the desk.
//
// Services mutate contracts, clients and operations only inside RunInTx so
// the checks they make and the writes they apply commit together. Backends
// return sentinel errors (ErrNotFound, ErrConflict) for services to translate.
package storage

import (
	"context"
	"time"

	"bullion/internal/audit"
	"bullion/internal/compliance"
	"bullion/internal/fixing"
	"bullion/internal/operations"
)

// ContractFilter narrows List. Zero fields match everything.
type ContractFilter struct {
	Statuses    []fixing.Status
	ClientID    string
	ExpiresFrom time.Time
	ExpiresTo   time.Time
	CreatedFrom time.Time
	CreatedTo   time.Time
}

// Contracts persists fixing contracts keyed by number.
type Contracts interface {
	Create(ctx context.Context, c fixing.Contract) error
	Update(ctx context.Context, c fixing.Contract) error
	Find(ctx context.Context, number string) (fixing.Contract, error)
	// FindForUpdate locks the row until the transaction ends.
	FindForUpdate(ctx context.Context, number string) (fixing.Contract, error)
	List(ctx context.Context, f ContractFilter) ([]fixing.Contract, error)
	// MaxSequence returns the highest numeric suffix used in year, or 0.
	MaxSequence(ctx context.Context, year int) (int, error)
}

// Deliveries is append-only.
type Deliveries interface {
	Create(ctx context.Context, d fixing.Delivery) error
	ListByContract(ctx context.Context, number string) ([]fixing.Delivery, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]fixing.Delivery, error)
}

// Clients persists compliance profiles.
type Clients interface {
	// Create assigns Seq and returns the stored client.
	Create(ctx context.Context, c compliance.Client) (compliance.Client, error)
	Update(ctx context.Context, c compliance.Client) error
	Find(ctx context.Context, id string) (compliance.Client, error)
	FindForUpdate(ctx context.Context, id string) (compliance.Client, error)
	FindByFiscalID(ctx context.Context, fiscalID string) (compliance.Client, error)
}

// Operations persists trades keyed by number.
type Operations interface {
	Create(ctx context.Context, op operations.Operation) error
	Update(ctx context.Context, op operations.Operation) error
	Find(ctx context.Context, number string) (operations.Operation, error)
	FindForUpdate(ctx context.Context, number string) (operations.Operation, error)
	MaxSequence(ctx context.Context, year int) (int, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]operations.Operation, error)
}

// AuditLog is the transactional outbox of audit events.
type AuditLog interface {
	Append(ctx context.Context, e audit.Event) error
	ListBySubject(ctx context.Context, subject string) ([]audit.Event, error)
	Pending(ctx context.Context, limit int) ([]audit.Event, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// Stores bundles every repository bound to one connection or transaction.
type Stores struct {
	Contracts  Contracts
	Deliveries Deliveries
	Clients    Clients
	Operations Operations
	Audit      AuditLog
}

// Backend runs transactions and exposes non-transactional reads.
type Backend interface {
	// RunInTx commits when fn returns nil and rolls back every write otherwise.
	// Only the Stores passed to fn may be used inside it.
	RunInTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
	Stores() Stores
}
