package probe

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"whodis/internal/domain"
)

// SSHNeighProber reads the IPv4 neighbor table of a remote gateway over SSH.
// Useful when the daemon runs on a host that cannot open raw sockets itself:
// the router already maintains an ARP view of the whole segment.
type SSHNeighProber struct {
	addr    string // host:port
	user    string
	keyPath string
	command string
}

// neighCommand dumps the IPv4 neighbor table on Linux gateways
const neighCommand = "ip -4 neigh show"

// neighStates are the neighbor cache states that count as a live sighting.
// FAILED and INCOMPLETE entries have no confirmed hardware address.
var neighStates = map[string]bool{
	"REACHABLE": true,
	"STALE":     true,
	"DELAY":     true,
	"PROBE":     true,
	"PERMANENT": true,
}

// NewSSHNeighProber creates a prober that queries a remote neighbor table.
// addr may omit the port, in which case 22 is assumed.
func NewSSHNeighProber(addr, user, keyPath string) *SSHNeighProber {
	if !strings.Contains(addr, ":") {
		addr += ":22"
	}
	return &SSHNeighProber{
		addr:    addr,
		user:    user,
		keyPath: keyPath,
		command: neighCommand,
	}
}

// Name returns the backend identifier
func (p *SSHNeighProber) Name() string {
	return "ssh-neigh"
}

// Available checks that the configured key exists and parses
func (p *SSHNeighProber) Available() error {
	if p.addr == "" || p.user == "" {
		return fmt.Errorf("%w: ssh gateway address and user are required", ErrUnavailable)
	}
	if _, err := p.signer(); err != nil {
		return err
	}
	return nil
}

// Probe connects to the gateway, dumps its neighbor table and parses it
func (p *SSHNeighProber) Probe(ctx context.Context) (*Result, error) {
	client, err := p.connect(ctx)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: connecting to %s", ErrTimeout, p.addr)
		}
		return nil, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open session: %v", ErrUnavailable, err)
	}
	defer session.Close()

	// The session has no context support; kill it when the deadline passes
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			session.Close()
		case <-done:
		}
	}()

	out, err := session.Output(p.command)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: running %q on %s", ErrTimeout, p.command, p.addr)
		}
		return nil, fmt.Errorf("%w: %q failed on %s: %v", ErrUnavailable, p.command, p.addr, err)
	}

	sightings, skipped, err := parseNeighOutput(out, time.Now())
	if err != nil {
		return nil, err
	}

	if skipped > 0 {
		log.Printf("SSHNeigh: skipped %d malformed neighbor entries", skipped)
	}

	return &Result{Sightings: sightings, Skipped: skipped}, nil
}

// connect establishes the SSH connection with key-based auth
func (p *SSHNeighProber) connect(ctx context.Context) (*ssh.Client, error) {
	signer, err := p.signer()
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User:            p.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
	if deadline, ok := ctx.Deadline(); ok {
		config.Timeout = time.Until(deadline)
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to dial %s: %v", ErrUnavailable, p.addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, p.addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: ssh handshake with %s: %v", ErrUnavailable, p.addr, err)
	}

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// signer loads and parses the private key
func (p *SSHNeighProber) signer() (ssh.Signer, error) {
	key, err := os.ReadFile(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read ssh key: %v", ErrUnavailable, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: parse ssh key: %v", ErrUnavailable, err)
	}
	return signer, nil
}

// parseNeighOutput extracts sightings from `ip -4 neigh show` output. Entries
// look like "192.168.1.7 dev eth0 lladdr 00:16:3e:2c:ce:f0 STALE"; lines
// without a confirmed lladdr (FAILED, INCOMPLETE) are ignored, candidate lines
// with a malformed address are skipped and counted.
func parseNeighOutput(out []byte, observedAt time.Time) ([]domain.Sighting, int, error) {
	var (
		sightings  []domain.Sighting
		skipped    int
		candidates int
	)

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if net.ParseIP(fields[0]) == nil {
			continue
		}

		var rawMAC, state string
		for i := 1; i < len(fields); i++ {
			if fields[i] == "lladdr" && i+1 < len(fields) {
				rawMAC = fields[i+1]
			}
		}
		state = fields[len(fields)-1]

		if rawMAC == "" {
			// FAILED / INCOMPLETE entry, no hardware address to report
			continue
		}
		if !neighStates[state] {
			continue
		}
		candidates++

		mac, err := domain.NormalizeMAC(rawMAC)
		if err != nil {
			skipped++
			continue
		}

		sightings = append(sightings, domain.Sighting{
			MAC:        mac,
			IP:         fields[0],
			ObservedAt: observedAt,
		})
	}

	if candidates > 0 && len(sightings) == 0 {
		return nil, skipped, fmt.Errorf("%w: %d neighbor entries, none parsed", ErrParse, candidates)
	}

	return dedupe(sightings), skipped, nil
}
