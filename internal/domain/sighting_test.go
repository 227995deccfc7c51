package domain

import "testing"

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "already canonical",
			input: "00:16:3e:2c:ce:f0",
			want:  "00:16:3e:2c:ce:f0",
		},
		{
			name:  "uppercase",
			input: "AA:BB:CC:DD:EE:FF",
			want:  "aa:bb:cc:dd:ee:ff",
		},
		{
			name:  "dash separated",
			input: "00-16-3e-2c-ce-f0",
			want:  "00:16:3e:2c:ce:f0",
		},
		{
			name:  "cisco dotted",
			input: "0016.3e2c.cef0",
			want:  "00:16:3e:2c:ce:f0",
		},
		{
			name:  "surrounding whitespace",
			input: "  00:16:3e:2c:ce:f0\t",
			want:  "00:16:3e:2c:ce:f0",
		},
		{
			name:    "garbage",
			input:   "not-a-mac",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "truncated",
			input:   "00:16:3e",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeMAC(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCloneStates(t *testing.T) {
	orig := map[string]DeviceState{
		"aa:bb:cc:dd:ee:ff": {MAC: "aa:bb:cc:dd:ee:ff", Present: true},
	}

	clone := CloneStates(orig)
	clone["aa:bb:cc:dd:ee:ff"] = DeviceState{MAC: "aa:bb:cc:dd:ee:ff", Present: false}

	if !orig["aa:bb:cc:dd:ee:ff"].Present {
		t.Error("mutating clone changed the original map")
	}
}
