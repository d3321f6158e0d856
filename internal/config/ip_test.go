package config

import (
	"net/netip"
	"testing"
)

func TestBanRangeInclusive(t *testing.T) {
	f := NewIPFilter()
	if err := f.BanRange(netip.MustParseAddr("10.0.0.10"), netip.MustParseAddr("10.0.0.20")); err != nil {
		t.Fatalf("BanRange: %v", err)
	}
	for _, banned := range []string{"10.0.0.10", "10.0.0.15", "10.0.0.20"} {
		if f.Allowed(netip.MustParseAddr(banned)) {
			t.Errorf("%s should be banned", banned)
		}
	}
	for _, ok := range []string{"10.0.0.9", "10.0.0.21", "192.168.1.1"} {
		if !f.Allowed(netip.MustParseAddr(ok)) {
			t.Errorf("%s should be allowed", ok)
		}
	}
}

func TestBanRangeNormalizesReversedBounds(t *testing.T) {
	f := NewIPFilter()
	if err := f.BanRange(netip.MustParseAddr("10.0.0.20"), netip.MustParseAddr("10.0.0.10")); err != nil {
		t.Fatalf("BanRange: %v", err)
	}
	if f.Allowed(netip.MustParseAddr("10.0.0.15")) {
		t.Error("reversed bounds must still ban the range")
	}
}

func TestBanRangeRejectsMixedFamilies(t *testing.T) {
	f := NewIPFilter()
	if err := f.BanRange(netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("::1")); err == nil {
		t.Error("expected error for mixed address families")
	}
}

func TestBanRangeDoesNotCrossFamilies(t *testing.T) {
	f := NewIPFilter()
	if err := f.BanRange(netip.MustParseAddr("::1"), netip.MustParseAddr("::ff")); err != nil {
		t.Fatalf("BanRange: %v", err)
	}
	if !f.Allowed(netip.MustParseAddr("10.0.0.1")) {
		t.Error("an IPv6 range must not capture IPv4 addresses")
	}
}

func TestIPAllowOverridesBan(t *testing.T) {
	f := NewIPFilter()
	f.Ban(netip.MustParseAddr("10.0.0.5"))
	f.Allow(netip.MustParseAddr("10.0.0.5"))
	if !f.Allowed(netip.MustParseAddr("10.0.0.5")) {
		t.Error("explicit allow must win over a ban")
	}
}
