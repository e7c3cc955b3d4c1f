package packet

import (
	"net/netip"
	"testing"
)

func TestTransportChecksum_KnownVector(t *testing.T) {
	ph := PseudoHeader{
		Src:      netip.MustParseAddr("192.0.2.1"),
		Dst:      netip.MustParseAddr("192.0.2.2"),
		Protocol: 6,
		Length:   4,
	}
	payload := []byte{0x00, 0x01, 0x00, 0x02}
	got := TransportChecksum(ph, payload)
	if got != 0x7bee {
		t.Fatalf("checksum = %#04x, want 0x7bee", got)
	}
}

func TestEnforceNonZeroUDPv6(t *testing.T) {
	if EnforceNonZeroUDPv6(0) != 0xffff {
		t.Error("zero checksum must be rewritten to 0xffff over IPv6")
	}
	if EnforceNonZeroUDPv6(0x1234) != 0x1234 {
		t.Error("non-zero checksum must be left untouched")
	}
}

func TestTransportChecksum_IPv6(t *testing.T) {
	ph := PseudoHeader{
		Src:      netip.MustParseAddr("2001:db8::1"),
		Dst:      netip.MustParseAddr("2001:db8::2"),
		Protocol: 17,
		Length:   8,
	}
	payload := []byte{0, 53, 0, 53, 0, 8, 0, 0}
	got := TransportChecksum(ph, payload)
	if got == 0 {
		t.Error("unexpected zero checksum")
	}
}
