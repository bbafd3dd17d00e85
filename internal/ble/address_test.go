package ble

import "testing"

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"EE:42:00:00:00:00", false},
		{"EE4200000000", false},
		{"ee42", false},
		{"EE4", true},
		{"E:E:4", true},
		{"", true},
		{"ZZ:42", true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := ValidateAddress(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAddress(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
		})
	}
}

func TestMatchers(t *testing.T) {
	tests := []struct {
		name    string
		m       Matcher
		address string
		local   string
		want    bool
	}{
		{"full address", ByAddress("EE:42:00:00:00:01"), "EE:42:00:00:00:01", "", true},
		{"prefix without separators", ByAddress("ee42"), "EE:42:00:00:00:01", "", true},
		{"prefix mismatch", ByAddress("EE43"), "EE:42:00:00:00:01", "", false},
		{"longer than address", ByAddress("EE:42:00:00:00:01:02"), "EE:42:00:00:00:01", "", false},
		{"name", ByName("DfuTarg"), "AA:BB:CC:DD:EE:FF", "DfuTarg", true},
		{"name is exact", ByName("DfuTarg"), "AA:BB:CC:DD:EE:FF", "DfuTarget", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.Match(tt.address, tt.local); got != tt.want {
				t.Errorf("%s.Match(%q, %q) = %v, want %v", tt.m, tt.address, tt.local, got, tt.want)
			}
		})
	}
}
