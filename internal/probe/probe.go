package probe

import (
	"context"
	"errors"
	"sort"
	"time"

	"whodis/internal/domain"
)

// Probe error taxonomy. Implementations wrap these sentinels so the pipeline
// can classify failures without knowing which backend produced them.
var (
	// ErrUnavailable - the probe could not be launched at all (missing
	// binary, insufficient privilege, unreachable remote)
	ErrUnavailable = errors.New("probe unavailable")
	// ErrTimeout - the probe exceeded its deadline and was aborted
	ErrTimeout = errors.New("probe timed out")
	// ErrParse - the probe produced candidate output lines but none parsed
	ErrParse = errors.New("probe output unparseable")
)

// Result is the outcome of one probe pass: the deduplicated sightings plus
// the count of malformed lines that were skipped.
type Result struct {
	Sightings []domain.Sighting
	Skipped   int
}

// Prober runs one discovery pass over the local segment and reports every
// hardware address it observed. Implementations spawn at most one external
// process or connection per call and hold no shared mutable state.
type Prober interface {
	// Name returns the backend identifier used in config and logs
	Name() string

	// Available reports whether the backend can run at all (binary present,
	// credentials resolvable). Checked once at startup.
	Available() error

	// Probe runs a single discovery pass. The context carries the per-cycle
	// timeout; expiry aborts the underlying probe and fails with ErrTimeout.
	Probe(ctx context.Context) (*Result, error)
}

// dedupe collapses repeated hardware addresses within one probe pass, keeping
// the latest record for each, and returns the sightings sorted by MAC so a
// pass is reproducible regardless of probe output order.
func dedupe(sightings []domain.Sighting) []domain.Sighting {
	byMAC := make(map[string]domain.Sighting, len(sightings))
	for _, s := range sightings {
		byMAC[s.MAC] = s
	}

	out := make([]domain.Sighting, 0, len(byMAC))
	for _, s := range byMAC {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MAC < out[j].MAC })
	return out
}

// stamp applies a single observation time to every sighting in a pass.
func stamp(sightings []domain.Sighting, at time.Time) {
	for i := range sightings {
		sightings[i].ObservedAt = at
	}
}
