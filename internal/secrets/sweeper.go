package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/robfig/cron/v3"

	"secret.share/internal/clock"
	"secret.share/internal/store"
)

// Sweeper periodically drops expired secrets from the store. Open already
// refuses expired secrets, so this only bounds memory.
type Sweeper struct {
	cron  *cron.Cron
	store store.Store
	clock clock.Clock
	ctx   context.Context
}

// NewSweeper schedules sweeps using a cron spec such as "@every 30s".
// The logger carried by ctx is used for sweep reports.
func NewSweeper(ctx context.Context, st store.Store, clk clock.Clock, schedule string) (*Sweeper, error) {
	s := &Sweeper{
		cron:  cron.New(),
		store: st,
		clock: clk,
		ctx:   ctx,
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	return s, nil
}

func (s *Sweeper) Start() {
	clog.FromContext(s.ctx).Info("secrets sweeper started")
	s.cron.Start()
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	clog.FromContext(s.ctx).Info("secrets sweeper stopped")
}

// Sweep removes expired secrets once and returns how many were dropped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	start := time.Now()

	removed, err := s.store.Sweep(ctx, s.clock.Now())
	if err != nil {
		return removed, fmt.Errorf("sweep secrets: %w", err)
	}

	clog.FromContext(ctx).Debugf("secrets sweep removed %d in %s", removed, time.Since(start))
	return removed, nil
}

func (s *Sweeper) run() {
	if _, err := s.Sweep(s.ctx); err != nil {
		clog.FromContext(s.ctx).Errorf("secrets sweep failed: %v", err)
	}
}
