package ipclass

import (
	"errors"
	"testing"

	"mikrotik-geo-visualizer/internal/domain"
)

func TestIsPrivate(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"172.32.0.1", false},
		{"192.168.1.5", true},
		{"127.0.0.1", true},
		{"169.254.10.10", true},
		{"0.0.0.0", true},
		{"255.255.255.255", true},
		{"192.0.2.44", true},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"::1", true},
		{"::", true},
		{"fe80::1", true},
		{"fe80::1%ether1", true},
		{"fd12:3456:789a::1", true},
		{"2001:db8::1", true},
		{"2606:4700:4700::1111", false},
		{"::ffff:192.168.0.1", true},
		{"::ffff:8.8.4.4", false},
	}

	for _, tt := range tests {
		got, err := IsPrivate(tt.addr)
		if err != nil {
			t.Fatalf("IsPrivate(%q) returned error: %v", tt.addr, err)
		}
		if got != tt.want {
			t.Errorf("IsPrivate(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestIsPrivate_RejectsMalformed(t *testing.T) {
	for _, addr := range []string{"", "not-an-ip", "8.8.8.8:443", "300.1.1.1", "[::1]:80"} {
		_, err := IsPrivate(addr)
		var perr *domain.AddressParseError
		if !errors.As(err, &perr) {
			t.Fatalf("IsPrivate(%q) error = %v, want AddressParseError", addr, err)
		}
		if perr.Address != addr {
			t.Errorf("AddressParseError.Address = %q, want %q", perr.Address, addr)
		}
	}
}

func TestStripPort(t *testing.T) {
	tests := map[string]string{
		"8.8.8.8:443":          "8.8.8.8",
		"192.168.1.5":          "192.168.1.5",
		" 10.0.0.1:53 ":        "10.0.0.1",
		"[2001:db8::1]:443":    "2001:db8::1",
		"[2001:db8::1]":        "2001:db8::1",
		"2606:4700:4700::1111": "2606:4700:4700::1111",
		"host:notaport":        "host:notaport",
		"":                     "",
	}

	for in, want := range tests {
		if got := StripPort(in); got != want {
			t.Errorf("StripPort(%q) = %q, want %q", in, got, want)
		}
	}
}
