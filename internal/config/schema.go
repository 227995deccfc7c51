package config

import "time"

// Config is the root configuration structure
type Config struct {
	Version  int               `yaml:"version"`
	Database DatabaseConfig    `yaml:"database"`
	Probe    ProbeConfig       `yaml:"probe"`
	Scan     ScanConfig        `yaml:"scan"`
	Aliases  map[string]string `yaml:"aliases,omitempty"` // mac -> display name, seeded into the store
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ProbeConfig selects and configures the discovery probe backend
type ProbeConfig struct {
	// Backend is one of: arp-scan, nmap, ssh-neigh
	Backend string `yaml:"backend"`
	// Binary overrides the arp-scan executable path
	Binary string `yaml:"binary,omitempty"`
	// Interface to scan from
	Interface string `yaml:"interface,omitempty"`
	// Targets are CIDR ranges or addresses; empty means the local subnet
	Targets []string `yaml:"targets,omitempty"`
	// ExtraArgs are passed through to arp-scan verbatim
	ExtraArgs []string `yaml:"extra_args,omitempty"`
	// SSH settings for the ssh-neigh backend
	SSHAddr string `yaml:"ssh_addr,omitempty"`
	SSHUser string `yaml:"ssh_user,omitempty"`
	SSHKey  string `yaml:"ssh_key,omitempty"`
}

// ScanConfig controls the cycle cadence
type ScanConfig struct {
	// Interval between scheduled scan cycles
	Interval Duration `yaml:"interval"`
	// ProbeTimeout bounds one probe pass; expiry aborts the probe
	ProbeTimeout Duration `yaml:"probe_timeout"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the wrapped time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
