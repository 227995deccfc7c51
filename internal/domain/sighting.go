package domain

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Sighting is one observation of a hardware address from a single probe run.
// Sightings are rebuilt fresh each cycle and never persisted directly.
type Sighting struct {
	MAC        string    `json:"mac"`
	IP         string    `json:"ip,omitempty"`
	Vendor     string    `json:"vendor,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// NormalizeMAC canonicalizes a hardware address to lowercase colon-separated
// form so the same interface always maps to the same key. Accepts any format
// net.ParseMAC understands (colons, dashes, Cisco dotted).
func NormalizeMAC(s string) (string, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid hardware address %q: %w", s, err)
	}
	return strings.ToLower(hw.String()), nil
}
