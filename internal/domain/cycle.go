package domain

import "time"

// CycleOutcome is the terminal result of one scan cycle.
type CycleOutcome string

const (
	OutcomeOK          CycleOutcome = "ok"
	OutcomeProbeFailed CycleOutcome = "probe_failed"
	OutcomeStoreFailed CycleOutcome = "store_failed"
	// OutcomePartial - some events were appended before the store failed;
	// device state is not committed, the next cycle recomputes from scratch
	OutcomePartial CycleOutcome = "partial"
)

// ScanCycle records one full probe -> reconcile -> write execution. Persisted
// best-effort for observability; correctness never depends on it.
type ScanCycle struct {
	ID           string       `json:"id"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	Outcome      CycleOutcome `json:"outcome"`
	EventCount   int          `json:"event_count"`
	SkippedLines int          `json:"skipped_lines"`
}
