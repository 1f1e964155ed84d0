package sync

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// DefaultInterval is how long the scheduler sleeps between passes.
const DefaultInterval = 5 * time.Minute

var schedulerMeter = otel.Meter("fintrack/sync")

// Scheduler drives the engine in a fixed-interval loop: run a pass, sleep,
// repeat. Pass failures are logged and never stop the loop; only context
// cancellation does.
type Scheduler struct {
	engine   *Engine
	interval time.Duration

	passes   metric.Int64Counter
	failures metric.Int64Counter
}

func NewScheduler(engine *Engine, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}

	passes, err := schedulerMeter.Int64Counter("fintrack.sync.passes",
		metric.WithDescription("Completed sync passes"))
	if err != nil {
		log.Printf("failed to create sync pass counter: %v", err)
	}
	failures, err := schedulerMeter.Int64Counter("fintrack.sync.account_failures",
		metric.WithDescription("Per-account sync failures"))
	if err != nil {
		log.Printf("failed to create sync failure counter: %v", err)
	}

	return &Scheduler{
		engine:   engine,
		interval: interval,
		passes:   passes,
		failures: failures,
	}
}

// Run blocks until ctx is cancelled, executing one pass per interval.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("sync scheduler started, interval %s", s.interval)

	for {
		s.runPass(ctx)

		select {
		case <-ctx.Done():
			log.Println("sync scheduler stopped")
			return
		case <-time.After(s.interval):
		}
	}
}

func (s *Scheduler) runPass(ctx context.Context) {
	start := time.Now()

	result, err := s.engine.SyncAll(ctx)
	if err != nil {
		log.Printf("sync pass failed: %v", err)
		return
	}

	if s.passes != nil {
		s.passes.Add(ctx, 1)
	}
	if s.failures != nil && result.Failed > 0 {
		s.failures.Add(ctx, int64(result.Failed))
	}

	log.Printf("sync pass done in %s: %d accounts, %d synced, %d failed, %d inserted",
		time.Since(start).Round(time.Millisecond),
		result.Accounts, result.Synced, result.Failed, result.Inserted)
}
