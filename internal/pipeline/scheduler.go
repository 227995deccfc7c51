package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"whodis/internal/domain"
)

// CycleRunner is the single entry point the scheduler drives
type CycleRunner interface {
	RunCycle(ctx context.Context) (*domain.ScanCycle, error)
}

// Scheduler fires RunCycle on a fixed interval. It performs no retries of its
// own: a failed cycle is just logged, and the next tick retries from the last
// committed state. Ticks that land while a cycle is in flight are dropped.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration
	reset    chan time.Duration
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler that triggers runner every interval
func NewScheduler(runner CycleRunner, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		reset:    make(chan time.Duration, 1),
	}
}

// SetInterval changes the tick interval from the next tick on. Safe to call
// from another goroutine (config hot reload). Never blocks: a still-pending
// older value is dropped in favor of the newest one.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	for {
		select {
		case s.reset <- d:
			return
		default:
		}
		// Channel full: discard the stale pending value without blocking
		// (the run loop may drain it first) and retry the send
		select {
		case <-s.reset:
		default:
		}
	}
}

// Run blocks until the context is cancelled, firing one cycle immediately and
// then one per interval. In-flight cycles are awaited before returning.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("Scheduler: running every %s", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.fire(ctx)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			log.Printf("Scheduler: stopped")
			return
		case d := <-s.reset:
			if d != s.interval {
				s.interval = d
				ticker.Reset(d)
				log.Printf("Scheduler: interval changed to %s", d)
			}
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

// fire launches one cycle without blocking the tick loop. Overlap protection
// lives in the coordinator's single-slot lock; a dropped tick is only a lost
// sample, never lost work.
func (s *Scheduler) fire(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		cycle, err := s.runner.RunCycle(ctx)
		switch {
		case errors.Is(err, ErrCycleInFlight):
			log.Printf("Scheduler: tick dropped, cycle still in flight")
		case err != nil:
			log.Printf("Scheduler: cycle %s failed (%s): %v", cycleID(cycle), cycleOutcome(cycle), err)
		}
	}()
}

func cycleID(cycle *domain.ScanCycle) string {
	if cycle == nil {
		return "?"
	}
	return shortID(cycle.ID)
}

func cycleOutcome(cycle *domain.ScanCycle) domain.CycleOutcome {
	if cycle == nil {
		return ""
	}
	return cycle.Outcome
}
