// Package pipeline drives the periodic discovery-ingestion cycle:
// probe -> reconcile -> append -> commit state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"whodis/internal/domain"
	"whodis/internal/probe"
	"whodis/internal/store"
	"whodis/internal/tracker"
)

// ErrCycleInFlight is returned when a cycle is requested while another is
// still running. The tick is dropped, never queued; the next tick runs with
// a fresh probe pass, so only one sample is lost.
var ErrCycleInFlight = errors.New("scan cycle already in flight")

// Persistence is the slice of store.Store the coordinator needs
type Persistence interface {
	store.EventAppender
	store.StateStore
	store.CycleRecorder
}

// AliasResolver maps a hardware address to a display name for logging
type AliasResolver interface {
	Alias(ctx context.Context, mac string) (string, error)
}

// Coordinator sequences one scan cycle at a time. It owns the committed
// device state map: loaded from the store at construction, replaced only
// after the writer confirms a fully successful append, so a failed or
// interrupted cycle always leaves the last committed state intact.
type Coordinator struct {
	prober  probe.Prober
	persist Persistence
	aliases AliasResolver // optional
	timeout time.Duration

	// single-slot lock held for the Probing -> Writing span
	mu     sync.Mutex
	states map[string]domain.DeviceState
}

// NewCoordinator creates a coordinator and loads the last committed device
// state. probeTimeout bounds each probe pass; expiry aborts the external
// probe and the cycle fails as probe_failed.
func NewCoordinator(prober probe.Prober, persist Persistence, probeTimeout time.Duration) (*Coordinator, error) {
	states, err := persist.LoadDeviceStates(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load device states: %w", err)
	}

	log.Printf("Coordinator: loaded %d known devices (probe=%s, timeout=%s)",
		len(states), prober.Name(), probeTimeout)

	return &Coordinator{
		prober:  prober,
		persist: persist,
		timeout: probeTimeout,
		states:  states,
	}, nil
}

// SetAliasResolver attaches an optional alias resolver used in event logs
func (c *Coordinator) SetAliasResolver(r AliasResolver) {
	c.aliases = r
}

// SetProber swaps the probe backend. Takes effect from the next cycle; a
// cycle already in flight finishes with the backend it started with.
func (c *Coordinator) SetProber(p probe.Prober) {
	c.mu.Lock()
	defer c.mu.Unlock()
	log.Printf("Coordinator: probe backend is now %s (was %s)", p.Name(), c.prober.Name())
	c.prober = p
}

// KnownDevices returns a copy of the committed device state map
func (c *Coordinator) KnownDevices() map[string]domain.DeviceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CloneStates(c.states)
}

// RunCycle executes one full scan cycle. Only one cycle may run at a time;
// a call that finds another in flight returns ErrCycleInFlight immediately.
// On any failure the committed state is untouched and the next cycle
// recomputes against it from scratch.
func (c *Coordinator) RunCycle(ctx context.Context) (*domain.ScanCycle, error) {
	if !c.mu.TryLock() {
		return nil, ErrCycleInFlight
	}
	defer c.mu.Unlock()

	cycle := &domain.ScanCycle{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	// Probing
	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.prober.Probe(probeCtx)
	if err != nil {
		c.finish(ctx, cycle, domain.OutcomeProbeFailed)
		return cycle, fmt.Errorf("probe: %w", err)
	}
	cycle.SkippedLines = result.Skipped

	// Reconciling
	events, next := tracker.Reconcile(cycle.StartedAt, cycle.ID, result.Sightings, c.states)

	// Writing
	ids, err := c.persist.AppendEvents(ctx, events)
	if err != nil {
		outcome := domain.OutcomeStoreFailed
		var appendErr *store.AppendError
		if errors.As(err, &appendErr) && appendErr.Appended > 0 {
			outcome = domain.OutcomePartial
			cycle.EventCount = appendErr.Appended
		}
		c.finish(ctx, cycle, outcome)
		return cycle, fmt.Errorf("append events: %w", err)
	}
	cycle.EventCount = len(ids)

	// Commit: state is persisted only after the append is confirmed. A crash
	// between the two replays at most duplicate appeared/still_present events
	// on the next cycle and never loses a disappearance.
	if err := c.persist.SaveDeviceStates(ctx, next); err != nil {
		c.finish(ctx, cycle, domain.OutcomeStoreFailed)
		return cycle, fmt.Errorf("commit device states: %w", err)
	}
	c.states = next

	c.logTransitions(ctx, events)
	c.finish(ctx, cycle, domain.OutcomeOK)
	log.Printf("Coordinator: cycle %s committed: %d events, %d devices tracked",
		shortID(cycle.ID), cycle.EventCount, len(next))

	return cycle, nil
}

// finish stamps the cycle and records it best-effort
func (c *Coordinator) finish(ctx context.Context, cycle *domain.ScanCycle, outcome domain.CycleOutcome) {
	cycle.Outcome = outcome
	cycle.FinishedAt = time.Now().UTC()

	if err := c.persist.RecordCycle(ctx, *cycle); err != nil {
		log.Printf("Coordinator: failed to record cycle %s: %v", shortID(cycle.ID), err)
	}
}

// logTransitions logs appearances and disappearances by alias. Steady
// still_present samples stay out of the log.
func (c *Coordinator) logTransitions(ctx context.Context, events []domain.PresenceEvent) {
	for _, ev := range events {
		if ev.Kind == domain.EventStillPresent {
			continue
		}
		name := ev.MAC
		if c.aliases != nil {
			if alias, err := c.aliases.Alias(ctx, ev.MAC); err == nil {
				name = alias
			}
		}
		if ev.IP != "" {
			log.Printf("Coordinator: %s %s (%s)", name, ev.Kind, ev.IP)
		} else {
			log.Printf("Coordinator: %s %s", name, ev.Kind)
		}
	}
}

// shortID abbreviates a uuid for log lines
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
