package util

import "testing"

func TestStripMask(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10.0.0.1/32", "10.0.0.1"},
		{"10.0.0.1", "10.0.0.1"},
		{"2001:db8::1/128", "2001:db8::1"},
		{"/24", ""},
		{"", ""},
		{"299776", "299776"},
	}
	for _, tt := range tests {
		if got := StripMask(tt.in); got != tt.want {
			t.Errorf("StripMask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsIPAddress(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"10.0.0.1", true},
		{"2001:db8::1", true},
		{"10.0.0.1/32", false},
		{"pe1.lab", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsIPAddress(tt.in); got != tt.want {
			t.Errorf("IsIPAddress(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
