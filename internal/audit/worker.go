package audit

import (
	"context"
	"log/slog"
	"time"
)

// Outbox is the pending side of the audit log.
type Outbox interface {
	Pending(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// Sink receives committed events, in commit order.
type Sink interface {
	Publish(ctx context.Context, events []Event) error
}

// Worker relays committed audit events from the outbox to a sink. Events
// are marked only after the sink accepted them, so delivery is at least once.
type Worker struct {
	outbox   Outbox
	sink     Sink
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

type WorkerOption func(*Worker)

func WithInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.interval = d
	}
}

func WithBatchSize(n int) WorkerOption {
	return func(w *Worker) {
		w.batch = n
	}
}

func WithLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

func NewWorker(outbox Outbox, sink Sink, opts ...WorkerOption) *Worker {
	w := &Worker{
		outbox:   outbox,
		sink:     sink,
		interval: 2 * time.Second,
		batch:    100,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run flushes the outbox every interval until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Flush(ctx); err != nil {
				w.logger.WarnContext(ctx, "audit outbox flush failed", "error", err)
			}
		}
	}
}

// Flush publishes pending events in batches until the outbox is drained
// and returns how many were relayed.
func (w *Worker) Flush(ctx context.Context) (int, error) {
	total := 0
	for {
		events, err := w.outbox.Pending(ctx, w.batch)
		if err != nil {
			return total, err
		}
		if len(events) == 0 {
			return total, nil
		}
		if err := w.sink.Publish(ctx, events); err != nil {
			return total, err
		}
		ids := make([]string, len(events))
		for i, e := range events {
			ids[i] = e.ID
		}
		if err := w.outbox.MarkPublished(ctx, ids, time.Now().UTC()); err != nil {
			return total, err
		}
		total += len(events)
		if len(events) < w.batch {
			return total, nil
		}
	}
}

// LogSink writes events to a logger. It is the sink when no broker is configured.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(ctx context.Context, events []Event) error {
	for _, e := range events {
		s.Logger.InfoContext(ctx, "audit event",
			"id", e.ID,
			"action", string(e.Action),
			"subject", e.Subject,
			"actor", e.Actor,
			"request_id", e.RequestID,
			"detail", e.Detail,
		)
	}
	return nil
}
