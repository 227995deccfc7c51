package domain

import "time"

// EventKind classifies a presence event.
type EventKind string

const (
	// EventAppeared - device was absent (or never seen) and is now visible
	EventAppeared EventKind = "appeared"
	// EventStillPresent - device was visible last cycle and still is; emitted
	// once per cycle so the stream is a full periodic sample, not just edges
	EventStillPresent EventKind = "still_present"
	// EventDisappeared - device was visible last cycle and is now gone
	EventDisappeared EventKind = "disappeared"
)

// PresenceEvent is the unit appended to the time-series store. Immutable once
// written; ordered by (Timestamp, MAC).
type PresenceEvent struct {
	MAC       string    `json:"mac"`
	Kind      EventKind `json:"kind"`
	IP        string    `json:"ip,omitempty"`
	Vendor    string    `json:"vendor,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	CycleID   string    `json:"cycle_id"`
}
