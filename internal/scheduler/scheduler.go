// Package scheduler invokes the Collector on a fixed interval, suppressing
// (never queuing) overlapping ticks, per SPEC_FULL.md §4.3.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps robfig/cron with SkipIfStillRunning so an overlapping
// tick is a no-op rather than a queued run — the next tick still fires from
// the original schedule, never from the finish time of a suppressed run.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	running int32
	entryID cron.EntryID
}

// New builds a Scheduler that calls run every interval, optionally once
// immediately if runOnStart is true.
func New(interval time.Duration, runOnStart bool, logger *slog.Logger, run func(ctx context.Context)) (*Scheduler, error) {
	s := &Scheduler{logger: logger}

	wrapped := cron.NewChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})).
		Then(cron.FuncJob(func() {
			atomic.StoreInt32(&s.running, 1)
			defer atomic.StoreInt32(&s.running, 0)
			run(context.Background())
		}))

	s.cron = cron.New()
	spec := fmt.Sprintf("@every %s", interval.String())
	id, err := s.cron.AddJob(spec, wrapped)
	if err != nil {
		return nil, fmt.Errorf("schedule collection job: %w", err)
	}
	s.entryID = id

	if runOnStart {
		go run(context.Background())
	}
	return s, nil
}

// Start begins firing ticks. Call Stop during shutdown.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop prevents future ticks and waits for an in-flight run to return. It
// does not cancel that run.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// NextRun reports when the scheduler's next tick is due.
func (s *Scheduler) NextRun() time.Time {
	entry := s.cron.Entry(s.entryID)
	return entry.Next
}

// IsRunning reports whether a collection run is currently in flight.
func (s *Scheduler) IsRunning() bool {
	return atomic.LoadInt32(&s.running) == 1
}

// cronLogger adapts slog.Logger to cron.Logger.
type cronLogger struct{ logger *slog.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	if l.logger != nil {
		l.logger.Info(msg, kv...)
	}
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	if l.logger != nil {
		args := append([]interface{}{slog.Any("error", err)}, kv...)
		l.logger.Error(msg, args...)
	}
}
