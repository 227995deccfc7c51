// Package store defines the narrow persistence surface the pipeline needs:
// append presence events with generated increasing identifiers, and read or
// commit the last known per-device state. The backing technology stays
// swappable behind these interfaces.
package store

import (
	"context"
	"errors"
	"fmt"

	"whodis/internal/domain"
)

var (
	// ErrUnavailable - the store cannot be reached at all
	ErrUnavailable = errors.New("store unavailable")
	// ErrWrite - an append failed after the store was reached
	ErrWrite = errors.New("store write failed")
)

// AppendError reports a failed batch append together with how many records
// landed before the failure. The already-written prefix must not be
// re-appended; the coordinator retries by recomputing the whole cycle against
// uncommitted state instead.
type AppendError struct {
	Appended int
	Err      error
}

func (e *AppendError) Error() string {
	return fmt.Sprintf("append failed after %d records: %v", e.Appended, e.Err)
}

func (e *AppendError) Unwrap() error {
	return ErrWrite
}

// StoredEvent is a presence event as read back from the store, including its
// generated stream identifier.
type StoredEvent struct {
	ID string
	domain.PresenceEvent
}

// EventAppender appends presence events as ordered, addressable records.
// Identifiers are generated, strictly increasing and safe for concurrent
// producers. Records within one call are applied in the given order.
type EventAppender interface {
	AppendEvents(ctx context.Context, events []domain.PresenceEvent) ([]string, error)
}

// StateStore persists the per-device presence state across restarts
type StateStore interface {
	LoadDeviceStates(ctx context.Context) (map[string]domain.DeviceState, error)
	SaveDeviceStates(ctx context.Context, states map[string]domain.DeviceState) error
}

// CycleRecorder persists scan cycle outcomes for observability. Best-effort;
// correctness never depends on it.
type CycleRecorder interface {
	RecordCycle(ctx context.Context, cycle domain.ScanCycle) error
}

// AliasStore maps hardware addresses to operator-assigned names
type AliasStore interface {
	SetAlias(ctx context.Context, mac, name string) error
	// Alias returns the assigned name, or the MAC itself when none is set
	Alias(ctx context.Context, mac string) (string, error)
	Aliases(ctx context.Context) (map[string]string, error)
	DeleteAlias(ctx context.Context, mac string) error
}

// EventReader provides inspection reads over the event stream
type EventReader interface {
	// RecentEvents returns up to limit events, oldest first
	RecentEvents(ctx context.Context, limit int) ([]StoredEvent, error)
	EventCount(ctx context.Context) (int64, error)
	// KnownMACs lists every hardware address ever seen, sorted
	KnownMACs(ctx context.Context) ([]string, error)
}

// Store is the full persistence surface of one backing database
type Store interface {
	EventAppender
	StateStore
	CycleRecorder
	AliasStore
	EventReader
	Close() error
}
