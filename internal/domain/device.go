package domain

import "time"

// DeviceState is the last-known state for one hardware address. One row per
// MAC ever seen; rows are never deleted, only Present flips when a device
// drops off the segment. LastSeenAt is monotonically non-decreasing.
type DeviceState struct {
	MAC        string    `json:"mac"`
	LastSeenAt time.Time `json:"last_seen_at"`
	LastIP     string    `json:"last_ip,omitempty"`
	Present    bool      `json:"present"`
}

// CloneStates returns a shallow copy of a device state map. Reconciliation
// works on a copy so a failed cycle leaves the committed map untouched.
func CloneStates(states map[string]DeviceState) map[string]DeviceState {
	next := make(map[string]DeviceState, len(states))
	for mac, st := range states {
		next[mac] = st
	}
	return next
}
