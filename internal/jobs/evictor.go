package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// Evictor periodically drops finished job records older than the retention window.
// Records that are still queued or running are never touched.
type Evictor struct {
	store     *Store
	retention time.Duration
	cron      *cron.Cron
	logger    arbor.ILogger
	running   bool
}

// NewEvictor creates an evictor for store
func NewEvictor(store *Store, retention time.Duration, logger arbor.ILogger) *Evictor {
	return &Evictor{
		store:     store,
		retention: retention,
		cron:      cron.New(),
		logger:    logger,
	}
}

// Start schedules RunOnce with a standard 5-field cron expression
func (e *Evictor) Start(schedule string) error {
	if e.running {
		return fmt.Errorf("evictor already running")
	}
	if _, err := e.cron.AddFunc(schedule, func() { e.RunOnce() }); err != nil {
		return fmt.Errorf("invalid eviction schedule %q: %w", schedule, err)
	}
	e.cron.Start()
	e.running = true

	e.logger.Info().
		Str("schedule", schedule).
		Dur("retention", e.retention).
		Msg("Job eviction scheduled")
	return nil
}

// Stop halts the schedule and waits for a running eviction to finish
func (e *Evictor) Stop() {
	if !e.running {
		return
	}
	<-e.cron.Stop().Done()
	e.running = false
}

// RunOnce evicts expired records now and returns how many were removed
func (e *Evictor) RunOnce() int {
	removed := e.store.EvictTerminal(time.Now().Add(-e.retention))
	if removed > 0 {
		e.logger.Debug().
			Int("removed", removed).
			Int("remaining", e.store.Len()).
			Msg("Evicted finished job records")
	}
	return removed
}
