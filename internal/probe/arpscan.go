package probe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os/exec"
	"strings"
	"time"

	"whodis/internal/domain"
)

// ArpScanProber discovers hosts by running the external arp-scan binary.
// arp-scan needs a raw socket (root or CAP_NET_RAW), so launch failures are
// reported as ErrUnavailable rather than retried.
type ArpScanProber struct {
	binary    string
	iface     string
	targets   []string
	extraArgs []string
}

// NewArpScanProber creates an arp-scan backed prober. With no targets it
// scans the local subnet (--localnet).
func NewArpScanProber(opts ...ArpScanOption) *ArpScanProber {
	p := &ArpScanProber{
		binary: "arp-scan",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the backend identifier
func (p *ArpScanProber) Name() string {
	return "arp-scan"
}

// Available checks that the arp-scan binary can be found
func (p *ArpScanProber) Available() error {
	if _, err := exec.LookPath(p.binary); err != nil {
		return fmt.Errorf("%w: %s not found in PATH", ErrUnavailable, p.binary)
	}
	return nil
}

// Probe runs one arp-scan pass and parses its output into sightings
func (p *ArpScanProber) Probe(ctx context.Context) (*Result, error) {
	args := p.args()

	cmd := exec.CommandContext(ctx, p.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w after %s: %s %s", ErrTimeout,
				time.Since(start).Round(time.Millisecond), p.binary, strings.Join(args, " "))
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		// arp-scan exits non-zero when it cannot open the interface
		// (insufficient privilege) - classify as unavailable
		return nil, fmt.Errorf("%w: %v: %s", ErrUnavailable, err, firstLine(stderr.String()))
	}

	sightings, skipped, err := parseArpScanOutput(stdout.Bytes(), time.Now())
	if err != nil {
		return nil, err
	}

	if skipped > 0 {
		log.Printf("ArpScan: skipped %d malformed output lines", skipped)
	}

	return &Result{Sightings: sightings, Skipped: skipped}, nil
}

// args assembles the arp-scan command line
func (p *ArpScanProber) args() []string {
	var args []string
	if p.iface != "" {
		args = append(args, "--interface", p.iface)
	}
	args = append(args, p.extraArgs...)
	if len(p.targets) > 0 {
		args = append(args, p.targets...)
	} else {
		args = append(args, "--localnet")
	}
	return args
}

// parseArpScanOutput extracts sightings from arp-scan stdout. Data lines look
// like "192.168.1.5\t00:16:3e:2c:ce:f0\tXensource, Inc." - a line whose first
// field is an IP address is a candidate record; candidates with an invalid
// hardware address are skipped and counted. Banner and summary lines are
// ignored. It fails with ErrParse only when candidate lines existed and none
// of them parsed, so an empty segment is a valid empty result.
func parseArpScanOutput(out []byte, observedAt time.Time) ([]domain.Sighting, int, error) {
	var (
		sightings  []domain.Sighting
		skipped    int
		candidates int
	)

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if net.ParseIP(fields[0]) == nil {
			// Banner, interface info or summary line
			continue
		}
		candidates++

		if len(fields) < 2 {
			skipped++
			continue
		}

		mac, err := domain.NormalizeMAC(fields[1])
		if err != nil {
			skipped++
			continue
		}

		sightings = append(sightings, domain.Sighting{
			MAC:    mac,
			IP:     fields[0],
			Vendor: strings.Join(fields[2:], " "),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("%w: reading output: %v", ErrParse, err)
	}

	if candidates > 0 && len(sightings) == 0 {
		return nil, skipped, fmt.Errorf("%w: %d candidate lines, none parsed", ErrParse, candidates)
	}

	stamp(sightings, observedAt)
	return dedupe(sightings), skipped, nil
}

// firstLine trims stderr down to its first line for error messages
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return s
}
