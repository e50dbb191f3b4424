package validate

import (
	"net"
	"testing"
)

func TestAddressRejectsBlockedPrefixes(t *testing.T) {
	cases := []string{
		"10.0.0.1",
		"127.0.0.1",
		"192.168.1.1",
		"172.16.0.1",
		"172.31.255.255",
		"224.0.0.5",
		"fc00::1",
		"fd00::1",
		"fe80::1",
		"::1",
		"::",
	}
	for _, ipText := range cases {
		ip := net.ParseIP(ipText)
		if ip == nil {
			t.Fatalf("test bug: %q does not parse", ipText)
		}
		if Address(ip, 8333) {
			t.Errorf("Address(%s, 8333) = true, want false", ipText)
		}
	}
}

func TestAddressAcceptsGlobalUnicast(t *testing.T) {
	cases := []string{"192.0.2.1", "203.0.113.5", "2001:db8::1"}
	for _, ipText := range cases {
		ip := net.ParseIP(ipText)
		if !Address(ip, 8333) {
			t.Errorf("Address(%s, 8333) = false, want true", ipText)
		}
	}
}

func TestAddressRejectsLowPort(t *testing.T) {
	ip := net.ParseIP("192.0.2.1")
	if Address(ip, 1024) {
		t.Errorf("Address with port 1024 should be rejected")
	}
	if Address(ip, 80) {
		t.Errorf("Address with port 80 should be rejected")
	}
	if !Address(ip, 1025) {
		t.Errorf("Address with port 1025 should be accepted")
	}
}

func TestAddressAccepts172OutsideBlockedRange(t *testing.T) {
	ip := net.ParseIP("172.15.0.1")
	if !Address(ip, 8333) {
		t.Errorf("172.15.0.1 should be accepted (below the blocked 16-31 range)")
	}
	ip = net.ParseIP("172.32.0.1")
	if !Address(ip, 8333) {
		t.Errorf("172.32.0.1 should be accepted (above the blocked 16-31 range)")
	}
}
