package probe

import (
	"context"
	"errors"
	"testing"
	"time"
)

const sampleArpScanOutput = `Interface: enp2s0, type: EN10MB, MAC: 3c:7c:3f:11:22:33, IPv4: 192.168.1.10
Starting arp-scan 1.9.7 with 256 hosts (https://github.com/royhills/arp-scan)
192.168.1.1	a4:91:b1:aa:bb:cc	Some Router Corp.
192.168.1.5	00:16:3e:2c:ce:f0	Xensource, Inc.
192.168.1.9	00:16:3e:07:b7:01	(Unknown)

3 packets received by filter, 0 packets dropped by kernel
Ending arp-scan 1.9.7: 256 hosts scanned in 1.932 seconds (132.51 hosts/sec). 3 responded
`

func TestParseArpScanOutput(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		output      string
		wantMACs    []string
		wantSkipped int
		wantErr     error
	}{
		{
			name:     "full scan output",
			output:   sampleArpScanOutput,
			wantMACs: []string{"00:16:3e:07:b7:01", "00:16:3e:2c:ce:f0", "a4:91:b1:aa:bb:cc"},
		},
		{
			name: "malformed line skipped",
			output: "192.168.1.1\ta4:91:b1:aa:bb:cc\tRouter\n" +
				"192.168.1.2\tnot-a-mac\tBroken\n",
			wantMACs:    []string{"a4:91:b1:aa:bb:cc"},
			wantSkipped: 1,
		},
		{
			name: "duplicate mac keeps latest record",
			output: "192.168.1.5\t00:16:3e:2c:ce:f0\tFirst\n" +
				"192.168.1.77\t00:16:3e:2c:ce:f0\tSecond\n",
			wantMACs: []string{"00:16:3e:2c:ce:f0"},
		},
		{
			name:     "extra whitespace and fields tolerated",
			output:   "  192.168.1.1   a4:91:b1:aa:bb:cc   Vendor  With   Spaces  (DUP: 2)\n",
			wantMACs: []string{"a4:91:b1:aa:bb:cc"},
		},
		{
			name:     "empty segment is a valid empty result",
			output:   "Starting arp-scan 1.9.7 with 256 hosts\n0 responded\n",
			wantMACs: nil,
		},
		{
			name:        "all candidates malformed",
			output:      "192.168.1.2\tjunk\n192.168.1.3\tmore-junk\n",
			wantSkipped: 2,
			wantErr:     ErrParse,
		},
		{
			name:    "candidate with no mac field",
			output:  "192.168.1.2\n",
			wantErr: ErrParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sightings, skipped, err := parseArpScanOutput([]byte(tt.output), now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if skipped != tt.wantSkipped {
				t.Errorf("expected %d skipped lines, got %d", tt.wantSkipped, skipped)
			}
			if len(sightings) != len(tt.wantMACs) {
				t.Fatalf("expected %d sightings, got %d: %v", len(tt.wantMACs), len(sightings), sightings)
			}
			for i, mac := range tt.wantMACs {
				if sightings[i].MAC != mac {
					t.Errorf("sighting %d: expected MAC %s, got %s", i, mac, sightings[i].MAC)
				}
				if !sightings[i].ObservedAt.Equal(now) {
					t.Errorf("sighting %d: expected ObservedAt %v, got %v", i, now, sightings[i].ObservedAt)
				}
			}
		})
	}
}

func TestParseArpScanOutput_LatestDuplicateWins(t *testing.T) {
	output := "192.168.1.5\t00:16:3e:2c:ce:f0\tFirst\n" +
		"192.168.1.77\t00:16:3e:2c:ce:f0\tSecond\n"

	sightings, _, err := parseArpScanOutput([]byte(output), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sightings) != 1 {
		t.Fatalf("expected 1 sighting, got %d", len(sightings))
	}
	if sightings[0].IP != "192.168.1.77" || sightings[0].Vendor != "Second" {
		t.Errorf("expected latest record to win, got %+v", sightings[0])
	}
}

func TestParseArpScanOutput_VendorJoined(t *testing.T) {
	output := "192.168.1.5\t00:16:3e:2c:ce:f0\tXensource, Inc.\n"

	sightings, _, err := parseArpScanOutput([]byte(output), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sightings[0].Vendor != "Xensource, Inc." {
		t.Errorf("expected vendor %q, got %q", "Xensource, Inc.", sightings[0].Vendor)
	}
}

func TestArpScanProber_Args(t *testing.T) {
	tests := []struct {
		name string
		opts []ArpScanOption
		want []string
	}{
		{
			name: "defaults to localnet",
			want: []string{"--localnet"},
		},
		{
			name: "explicit interface and targets",
			opts: []ArpScanOption{
				WithInterface("enp2s0"),
				WithTargets([]string{"192.168.1.0/24"}),
			},
			want: []string{"--interface", "enp2s0", "192.168.1.0/24"},
		},
		{
			name: "extra args pass through before targets",
			opts: []ArpScanOption{
				WithExtraArgs([]string{"--retry", "2"}),
			},
			want: []string{"--retry", "2", "--localnet"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArpScanProber(tt.opts...)
			got := p.args()
			if len(got) != len(tt.want) {
				t.Fatalf("expected args %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("expected args %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestArpScanProber_TimeoutClassification(t *testing.T) {
	// A binary that exists everywhere but sleeps long enough to trip the
	// deadline; the prober must classify this as ErrTimeout.
	p := NewArpScanProber(WithBinary("sleep"), WithTargets([]string{"5"}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Probe(ctx)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestArpScanProber_MissingBinary(t *testing.T) {
	p := NewArpScanProber(WithBinary("definitely-not-a-real-binary-xyz"))

	if err := p.Available(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Available: expected ErrUnavailable, got %v", err)
	}

	_, err := p.Probe(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Probe: expected ErrUnavailable, got %v", err)
	}
}
