package probe

import (
	"fmt"
	"sort"
)

// Factory builds a prober from backend-specific settings
type Factory func(settings Settings) (Prober, error)

// Settings carries the probe section of the config file in a backend-neutral
// shape; each factory picks out what it needs.
type Settings struct {
	Binary    string   // arp-scan binary override
	Interface string   // network interface to scan from
	Targets   []string // CIDR ranges or addresses; empty = local subnet
	ExtraArgs []string // raw passthrough flags (arp-scan only)
	SSHAddr   string   // gateway address for ssh-neigh
	SSHUser   string
	SSHKey    string // path to private key
}

// factories maps backend names to constructors. Registered at init time;
// read-only afterwards, so no locking is needed.
var factories = map[string]Factory{}

// register adds a backend factory; duplicate names are a programming error
func register(name string, f Factory) {
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("probe backend %s already registered", name))
	}
	factories[name] = f
}

func init() {
	register("arp-scan", func(s Settings) (Prober, error) {
		return NewArpScanProber(
			WithBinary(s.Binary),
			WithInterface(s.Interface),
			WithTargets(s.Targets),
			WithExtraArgs(s.ExtraArgs),
		), nil
	})

	register("nmap", func(s Settings) (Prober, error) {
		if len(s.Targets) == 0 {
			return nil, fmt.Errorf("nmap backend requires explicit targets")
		}
		return NewNmapProber(s.Targets, s.Interface), nil
	})

	register("ssh-neigh", func(s Settings) (Prober, error) {
		if s.SSHAddr == "" || s.SSHUser == "" || s.SSHKey == "" {
			return nil, fmt.Errorf("ssh-neigh backend requires ssh_addr, ssh_user and ssh_key")
		}
		return NewSSHNeighProber(s.SSHAddr, s.SSHUser, s.SSHKey), nil
	})
}

// New builds the named probe backend
func New(name string, settings Settings) (Prober, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown probe backend %q (have %v)", name, Backends())
	}
	return factory(settings)
}

// Backends lists the registered backend names, sorted
func Backends() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
