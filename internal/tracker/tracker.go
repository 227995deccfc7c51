// Package tracker computes presence transitions between probe passes.
//
// Reconcile is deliberately a pure function: given the same prior state and
// the same sightings it always produces the same events, so a cycle that
// failed before its state was committed can simply be recomputed on the next
// tick with no replay bookkeeping.
package tracker

import (
	"sort"
	"time"

	"whodis/internal/domain"
)

// Reconcile diffs one probe pass against the last committed device states and
// returns the presence events plus the successor state map. Rules:
//
//   - sighted and previously absent (or never seen): appeared
//   - sighted and previously present: still_present (one full sample per
//     cycle, so the stream records periodic presence, not just edges)
//   - not sighted but previously present: disappeared, no grace period -
//     a single missed pass counts as absence
//
// Events are sorted by hardware address and all carry cycleTime. The prior
// map is never mutated.
func Reconcile(cycleTime time.Time, cycleID string, sightings []domain.Sighting, prior map[string]domain.DeviceState) ([]domain.PresenceEvent, map[string]domain.DeviceState) {
	next := domain.CloneStates(prior)
	events := make([]domain.PresenceEvent, 0, len(sightings))

	sighted := make(map[string]bool, len(sightings))
	for _, s := range sightings {
		sighted[s.MAC] = true

		kind := domain.EventAppeared
		if st, ok := prior[s.MAC]; ok && st.Present {
			kind = domain.EventStillPresent
		}

		events = append(events, domain.PresenceEvent{
			MAC:       s.MAC,
			Kind:      kind,
			IP:        s.IP,
			Vendor:    s.Vendor,
			Timestamp: cycleTime,
			CycleID:   cycleID,
		})

		next[s.MAC] = domain.DeviceState{
			MAC:        s.MAC,
			LastSeenAt: cycleTime,
			LastIP:     s.IP,
			Present:    true,
		}
	}

	for mac, st := range prior {
		if !st.Present || sighted[mac] {
			continue
		}

		events = append(events, domain.PresenceEvent{
			MAC:       mac,
			Kind:      domain.EventDisappeared,
			IP:        st.LastIP,
			Timestamp: cycleTime,
			CycleID:   cycleID,
		})

		st.Present = false
		next[mac] = st
	}

	sort.Slice(events, func(i, j int) bool { return events[i].MAC < events[j].MAC })
	return events, next
}
