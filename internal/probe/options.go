package probe

// ArpScanOption is a functional option for configuring ArpScanProber
type ArpScanOption func(*ArpScanProber)

// WithBinary overrides the arp-scan binary path
func WithBinary(path string) ArpScanOption {
	return func(p *ArpScanProber) {
		if path != "" {
			p.binary = path
		}
	}
}

// WithInterface sets the network interface to scan from (--interface)
func WithInterface(iface string) ArpScanOption {
	return func(p *ArpScanProber) {
		p.iface = iface
	}
}

// WithTargets sets explicit scan targets (CIDR ranges or addresses).
// Without targets the prober scans the local subnet.
func WithTargets(targets []string) ArpScanOption {
	return func(p *ArpScanProber) {
		p.targets = targets
	}
}

// WithExtraArgs passes additional raw flags through to arp-scan
func WithExtraArgs(args []string) ArpScanOption {
	return func(p *ArpScanProber) {
		p.extraArgs = args
	}
}
