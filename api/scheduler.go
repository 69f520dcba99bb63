/*
scheduler.go - Automated evaluation pass scheduler

PURPOSE:
  Periodically runs a full evaluation pass: generates missing calendar
  entries for the current period and re-evaluates every non-terminal
  entry (status transitions, penalty accrual, reminders).

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick delegates to Generator.RunPass
  - Records every pass in pass_runs for audit and UI display
  - Passes are idempotent, so an overlapping manual trigger is harmless

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewEvaluationScheduler(store, gen)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunPass endpoint (manual trigger)
  - engine/generator.go: RunPass implementation
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/compliance-engine/engine"
	"github.com/warp/compliance-engine/store/sqlite"
)

// EvaluationScheduler runs the periodic calendar evaluation pass.
type EvaluationScheduler struct {
	Store         *sqlite.Store
	Generator     *engine.Generator
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewEvaluationScheduler creates a new scheduler.
func NewEvaluationScheduler(store *sqlite.Store, gen *engine.Generator) *EvaluationScheduler {
	return &EvaluationScheduler{
		Store:         store,
		Generator:     gen,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (es *EvaluationScheduler) Start() {
	es.mu.Lock()
	defer es.mu.Unlock()

	if !es.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	es.ticker = time.NewTicker(es.CheckInterval)
	es.wg.Add(1)

	go es.run()

	log.Printf("[Scheduler] Started with check interval: %v", es.CheckInterval)
}

// Stop stops the scheduler.
func (es *EvaluationScheduler) Stop() {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.ticker != nil {
		es.ticker.Stop()
		close(es.stop)
		es.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (es *EvaluationScheduler) run() {
	defer es.wg.Done()

	// Run immediately on start
	es.runPass()

	for {
		select {
		case <-es.ticker.C:
			es.runPass()
		case <-es.stop:
			return
		}
	}
}

func (es *EvaluationScheduler) runPass() {
	ctx := context.Background()
	started := time.Now()

	run := sqlite.PassRun{
		ID:        "pass-" + uuid.NewString(),
		StartedAt: started,
		Status:    "running",
	}
	if err := es.Store.SavePassRun(ctx, run); err != nil {
		log.Printf("[Scheduler] Failed to record pass start: %v", err)
	}

	report, err := es.Generator.RunPass(ctx)

	completed := time.Now()
	run.CompletedAt = &completed
	run.Generated = report.Generated
	run.Reevaluated = report.Reevaluated
	run.Changed = report.Changed
	run.Deferred = report.Deferred
	run.Failed = report.Failed
	run.Errors = report.Errors
	if err != nil {
		run.Status = "failed"
		run.Errors = append(run.Errors, err.Error())
		log.Printf("[Scheduler] Pass failed: %v", err)
	} else {
		run.Status = "completed"
		log.Printf("[Scheduler] Pass completed: generated=%d reevaluated=%d changed=%d deferred=%d failed=%d",
			report.Generated, report.Reevaluated, report.Changed, report.Deferred, report.Failed)
	}

	if err := es.Store.SavePassRun(ctx, run); err != nil {
		log.Printf("[Scheduler] Failed to record pass completion: %v", err)
	}
}

// RunNow triggers an immediate pass (for testing/admin).
func (es *EvaluationScheduler) RunNow() {
	es.runPass()
}

// GetNextRunTime returns when the next scheduled pass will occur.
func (es *EvaluationScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(es.CheckInterval)
}
