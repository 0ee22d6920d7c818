package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"bullion/pkg/requestcontext"
)

const (
	schedulerActor = "scheduler"
	sweepTimeout   = time.Minute
)

type expirySweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// newScheduler runs the contract expiry sweep on spec. Overlapping runs are
// skipped.
func newScheduler(spec string, sweeper expirySweeper, log *slog.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		ctx = requestcontext.WithActor(requestcontext.WithTime(ctx, time.Now()), schedulerActor)

		n, err := sweeper.SweepExpired(ctx)
		if err != nil {
			log.Error("expiry sweep failed", "error", err)
			return
		}
		if n > 0 {
			log.Info("expiry sweep completed", "expired", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule expiry sweep %q: %w", spec, err)
	}
	return c, nil
}
