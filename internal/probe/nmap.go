package probe

import (
	"context"
	"fmt"
	"log"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"

	"whodis/internal/domain"
)

// NmapProber discovers hosts with an nmap ping scan (-sn). nmap only reports
// hardware addresses when it can ARP the target directly, so this backend is
// useful on segments where arp-scan is not installed but nmap is.
type NmapProber struct {
	targets []string
	iface   string
}

// NewNmapProber creates an nmap-backed prober for the given targets
// (CIDR ranges or individual addresses).
func NewNmapProber(targets []string, iface string) *NmapProber {
	return &NmapProber{targets: targets, iface: iface}
}

// Name returns the backend identifier
func (p *NmapProber) Name() string {
	return "nmap"
}

// Available checks that the nmap binary can be launched
func (p *NmapProber) Available() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets("localhost"),
		nmap.WithListScan(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, _, err := scanner.Run(); err != nil {
		return fmt.Errorf("%w: nmap list scan failed: %v", ErrUnavailable, err)
	}
	return nil
}

// Probe runs one ping-scan pass over the configured targets
func (p *NmapProber) Probe(ctx context.Context) (*Result, error) {
	if len(p.targets) == 0 {
		return nil, fmt.Errorf("%w: no targets configured", ErrUnavailable)
	}

	opts := []nmap.Option{
		nmap.WithTargets(p.targets...),
		nmap.WithPingScan(),
	}
	if p.iface != "" {
		opts = append(opts, nmap.WithInterface(p.iface))
	}

	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create scanner: %v", ErrUnavailable, err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: nmap ping scan of %v", ErrTimeout, p.targets)
		}
		return nil, fmt.Errorf("%w: scan failed: %v", ErrUnavailable, err)
	}
	if warnings != nil && len(*warnings) > 0 {
		log.Printf("Nmap: warnings: %v", *warnings)
	}

	sightings, skipped := hostsToSightings(result, time.Now())
	if skipped > 0 {
		log.Printf("Nmap: skipped %d hosts without a hardware address", skipped)
	}

	return &Result{Sightings: sightings, Skipped: skipped}, nil
}

// hostsToSightings extracts MAC-bearing hosts from an nmap run. Hosts that
// are down or report no hardware address (non-local hops, the scanning host
// itself) are skipped and counted.
func hostsToSightings(result *nmap.Run, observedAt time.Time) ([]domain.Sighting, int) {
	if result == nil {
		return nil, 0
	}

	var (
		sightings []domain.Sighting
		skipped   int
	)

	for _, host := range result.Hosts {
		if host.Status.State != "up" || len(host.Addresses) == 0 {
			continue
		}

		var ip, rawMAC, vendor string
		for _, addr := range host.Addresses {
			switch addr.AddrType {
			case "ipv4":
				ip = addr.Addr
			case "mac":
				rawMAC = addr.Addr
				vendor = addr.Vendor
			}
		}
		if rawMAC == "" {
			skipped++
			continue
		}

		mac, err := domain.NormalizeMAC(rawMAC)
		if err != nil {
			skipped++
			continue
		}

		sightings = append(sightings, domain.Sighting{
			MAC:        mac,
			IP:         ip,
			Vendor:     vendor,
			ObservedAt: observedAt,
		})
	}

	return dedupe(sightings), skipped
}
