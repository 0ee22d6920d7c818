package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bullion/pkg/requestcontext"
)

// Appender persists events. Services pass the audit log bound to their
// transaction so an event commits or rolls back with the change it records.
type Appender interface {
	Append(ctx context.Context, e Event) error
}

// Publisher stamps events with identity, time and request scope before
// appending them. It fails closed: an event that cannot be written fails
// the surrounding transaction.
type Publisher struct {
	newID func() string
}

func NewPublisher() *Publisher {
	return &Publisher{newID: func() string { return uuid.NewString() }}
}

// Emit appends e to store, filling ID, Timestamp, Actor and RequestID when unset.
func (p *Publisher) Emit(ctx context.Context, store Appender, e Event) error {
	if e.ID == "" {
		e.ID = p.newID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = requestcontext.Now(ctx)
	}
	if e.Actor == "" {
		e.Actor = requestcontext.Actor(ctx)
	}
	if e.RequestID == "" {
		e.RequestID = requestcontext.RequestID(ctx)
	}
	e.Timestamp = e.Timestamp.UTC().Truncate(time.Microsecond)
	if err := store.Append(ctx, e); err != nil {
		return fmt.Errorf("append audit event %s: %w", e.Action, err)
	}
	return nil
}
