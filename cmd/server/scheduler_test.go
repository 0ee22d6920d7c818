package main

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bullion/internal/metal"
	"bullion/internal/platform/config"
	"bullion/pkg/requestcontext"
)

type countingSweeper struct {
	calls atomic.Int32
	actor atomic.Value
}

func (s *countingSweeper) SweepExpired(ctx context.Context) (int, error) {
	s.calls.Add(1)
	s.actor.Store(requestcontext.Actor(ctx))
	return 1, nil
}

func TestSchedulerRunsSweep(t *testing.T) {
	sweeper := &countingSweeper{}
	c, err := newScheduler("@every 1s", sweeper, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	c.Start()
	defer c.Stop()

	assert.Eventually(t, func() bool { return sweeper.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, schedulerActor, sweeper.actor.Load())
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	_, err := newScheduler("every tuesday", &countingSweeper{}, slog.New(slog.DiscardHandler))
	require.Error(t, err)
}

func TestCompliancePolicy(t *testing.T) {
	p, err := compliancePolicy(config.Compliance{ReportableMetals: []string{"gold", "Platinum"}})
	require.NoError(t, err)
	assert.Equal(t, map[metal.Metal]bool{metal.Gold: true, metal.Platinum: true}, p.ReportableMetals)

	_, err = compliancePolicy(config.Compliance{ReportableMetals: []string{"gold", "unobtainium"}})
	require.Error(t, err)
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, newLimiter(0))
	assert.NotNil(t, newLimiter(60))
}
