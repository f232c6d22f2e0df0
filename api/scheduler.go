/*
scheduler.go - Background status roller

PURPOSE:
  Assignment statuses evolve as dates roll forward: an ASSIGNED assignment
  whose range has started becomes DEPLOYED. The roller runs that pass on a
  ticker so the stored statuses keep up with the calendar.

DESIGN:
  - Runs one background goroutine with a configurable check interval
  - Runs once immediately on Start
  - Each pass is workforce.Service.RollStatuses; OFFSITE is never touched
  - Stop waits for an in-flight pass to finish

CONFIGURATION:
  - CheckInterval: How often to roll (default: 1 hour)
  - Enabled: Whether the roller is active (default: true)

USAGE:
  roller := NewStatusRoller(svc, logger)
  roller.Start(ctx)
  // ... later
  roller.Stop()

SEE ALSO:
  - handlers.go: RollStatuses endpoint (manual pass)
  - workforce/scheduler.go: RollStatuses
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/deploy-engine/workforce"
	"go.uber.org/zap"
)

// StatusRoller periodically persists status roll-forwards.
type StatusRoller struct {
	Service       *workforce.Service
	Logger        *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewStatusRoller(svc *workforce.Service, logger *zap.Logger) *StatusRoller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusRoller{
		Service:       svc,
		Logger:        logger.Named("roller"),
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

// Start begins rolling. Cancelling ctx stops the roller as Stop does.
func (sr *StatusRoller) Start(ctx context.Context) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if !sr.Enabled {
		sr.Logger.Info("disabled, not starting")
		return
	}
	if sr.ticker != nil {
		return
	}

	ctx, sr.cancel = context.WithCancel(ctx)
	sr.stop = make(chan struct{})
	sr.ticker = time.NewTicker(sr.CheckInterval)
	sr.wg.Add(1)

	go sr.run(ctx, sr.ticker.C, sr.stop)

	sr.Logger.Info("started", zap.Duration("interval", sr.CheckInterval))
}

// Stop halts the roller and waits for it to exit.
func (sr *StatusRoller) Stop() {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if sr.ticker == nil {
		return
	}
	sr.ticker.Stop()
	close(sr.stop)
	sr.cancel()
	sr.wg.Wait()
	sr.ticker = nil
	sr.Logger.Info("stopped")
}

func (sr *StatusRoller) run(ctx context.Context, tick <-chan time.Time, stop <-chan struct{}) {
	defer sr.wg.Done()

	sr.RunNow(ctx)

	for {
		select {
		case <-tick:
			sr.RunNow(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunNow performs one pass and returns the applied changes.
func (sr *StatusRoller) RunNow(ctx context.Context) []workforce.StatusChange {
	start := time.Now()
	changes, err := sr.Service.RollStatuses(ctx)
	if err != nil {
		sr.Logger.Error("roll failed", zap.Error(err))
		return changes
	}
	sr.Logger.Info("rolled statuses",
		zap.Int("changed", len(changes)),
		zap.Duration("took", time.Since(start)),
	)
	return changes
}
