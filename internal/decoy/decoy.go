// Package decoy builds K+1 packet fan-out sets that hide the real scan
// source among spoofed decoy addresses (spec §4.11).
package decoy

import (
	"crypto/rand"
	"net/netip"

	"github.com/reconwire/scancore/internal/scancore"
)

// reservedV6Prefixes are excluded when generating random IPv6 decoy IIDs
// within a target's /64, per spec §4.11.
var reservedV6Prefixes = []netip.Prefix{
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("ff00::/8"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("2001:db8::/32"),
	netip.MustParsePrefix("::ffff:0:0/96"),
	netip.MustParsePrefix("::/128"),
}

// Build constructs a DecoySet from an explicit list of decoy source
// addresses plus the operator's real source at meIndex (spec §3
// "decoys: list of source addresses with position of ME").
func Build(decoys []netip.Addr, real netip.Addr, meIndex int) scancore.DecoySet {
	addrs := make([]netip.Addr, 0, len(decoys)+1)
	addrs = append(addrs, decoys...)
	if meIndex < 0 {
		meIndex = 0
	}
	if meIndex > len(addrs) {
		meIndex = len(addrs)
	}
	addrs = append(addrs[:meIndex], append([]netip.Addr{real}, addrs[meIndex:]...)...)
	return scancore.DecoySet{Addrs: addrs, MeIndex: meIndex}
}

// BuildAutoV6 generates count random decoy addresses within target's /64,
// excluding the seven reserved prefixes, plus the real source at meIndex
// (spec §4.11 "for IPv6, generate decoys with random 64-bit IIDs inside
// the target's /64").
func BuildAutoV6(target netip.Addr, count int, real netip.Addr, meIndex int) (scancore.DecoySet, error) {
	prefix := netip.PrefixFrom(target, 64).Masked()

	decoys := make([]netip.Addr, 0, count)
	for len(decoys) < count {
		addr, err := randomIIDWithin(prefix)
		if err != nil {
			return scancore.DecoySet{}, err
		}
		if isReserved(addr) {
			continue
		}
		decoys = append(decoys, addr)
	}
	return Build(decoys, real, meIndex), nil
}

// randomIIDWithin generates a random address sharing prefix's /64 network
// bits with a random 64-bit interface identifier.
func randomIIDWithin(prefix netip.Prefix) (netip.Addr, error) {
	base := prefix.Addr().As16()
	var iid [8]byte
	if _, err := rand.Read(iid[:]); err != nil {
		return netip.Addr{}, err
	}
	var out [16]byte
	copy(out[:8], base[:8])
	copy(out[8:], iid[:])
	return netip.AddrFrom16(out), nil
}

func isReserved(addr netip.Addr) bool {
	for _, p := range reservedV6Prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// RateBudgetPer divides the configured aggregate rate by K+1 packets
// emitted per probe, so the visible-to-the-target rate stays within the
// operator's configured budget even though K extra decoy packets are sent
// per real probe (spec §4.11: "the engine's aggregate rate is divided by
// K+1 for rate-budget purposes").
func RateBudgetPer(aggregateRatePPS uint64, set scancore.DecoySet) uint64 {
	k1 := uint64(set.Len())
	if k1 == 0 {
		return aggregateRatePPS
	}
	return aggregateRatePPS / k1
}
