// Package scheduler turns ScanConfig's raw target/port specification into
// a deterministic work stream of (target, port, protocol) items, grouped
// into per-target hostgroups for the Concurrency Gate (spec §4.3).
package scheduler

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/reconwire/scancore/internal/scanconfig"
)

// MaxCIDREnumeration bounds how many addresses a single CIDR or IPv6
// range spec may expand to, guarding against an operator-sized prefix
// spec (spec §4.3: "IPv6 ranges limited to operator-sized prefixes")
// silently exhausting memory.
const MaxCIDREnumeration = 1 << 20

// ParseTargetSpec expands one raw target token — an IP literal, a CIDR,
// or a hostname — into concrete addresses honoring pref. Hostnames are
// resolved via resolve (net.DefaultResolver.LookupIP or a stub in
// tests).
func ParseTargetSpec(ctx context.Context, spec string, pref scanconfig.IPVPreference, excludeNetworkBroadcast bool, resolve func(ctx context.Context, host string) ([]netip.Addr, error)) ([]netip.Addr, string, error) {
	if prefix, err := netip.ParsePrefix(spec); err == nil {
		addrs, err := expandCIDR(prefix, excludeNetworkBroadcast)
		return addrs, "", err
	}

	if addr, err := netip.ParseAddr(spec); err == nil {
		return []netip.Addr{addr}, "", nil
	}

	if resolve == nil {
		resolve = defaultResolve
	}
	addrs, err := resolve(ctx, spec)
	if err != nil {
		return nil, "", fmt.Errorf("scheduler: resolve %q: %w", spec, err)
	}
	filtered := filterByPreference(addrs, pref)
	if len(filtered) == 0 {
		return nil, "", fmt.Errorf("scheduler: %q resolved to no addresses matching IP version preference", spec)
	}
	return filtered, spec, nil
}

func defaultResolve(ctx context.Context, host string) ([]netip.Addr, error) {
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	out := make([]netip.Addr, 0, len(ips))
	for _, ip := range ips {
		if addr, ok := netip.AddrFromSlice(ip); ok {
			out = append(out, addr.Unmap())
		}
	}
	return out, nil
}

func filterByPreference(addrs []netip.Addr, pref scanconfig.IPVPreference) []netip.Addr {
	wantV4 := func(a netip.Addr) bool { return a.Is4() }
	wantV6 := func(a netip.Addr) bool { return a.Is6() && !a.Is4In6() }

	switch pref {
	case scanconfig.V4Only, scanconfig.Force4:
		return filterAddrs(addrs, wantV4)
	case scanconfig.V6Only, scanconfig.Force6:
		return filterAddrs(addrs, wantV6)
	case scanconfig.PreferV6:
		if v6 := filterAddrs(addrs, wantV6); len(v6) > 0 {
			return v6
		}
		return filterAddrs(addrs, wantV4)
	case scanconfig.PreferV4:
		fallthrough
	default:
		if v4 := filterAddrs(addrs, wantV4); len(v4) > 0 {
			return v4
		}
		return filterAddrs(addrs, wantV6)
	}
}

func filterAddrs(addrs []netip.Addr, want func(netip.Addr) bool) []netip.Addr {
	var out []netip.Addr
	for _, a := range addrs {
		if want(a) {
			out = append(out, a)
		}
	}
	return out
}

// expandCIDR enumerates every address in prefix in lexical (numeric)
// order. For IPv4 /30 and larger (i.e. prefix length <= 30, at least 4
// addresses) it excludes the network and broadcast addresses when
// excludeNetworkBroadcast is set, per spec §4.3; /31 and /32 have no
// broadcast/network distinction under RFC 3021 and are never trimmed.
func expandCIDR(prefix netip.Prefix, excludeNetworkBroadcast bool) ([]netip.Addr, error) {
	prefix = prefix.Masked()
	bits := prefix.Addr().BitLen()
	hostBits := bits - prefix.Bits()
	if hostBits > 20 {
		return nil, fmt.Errorf("scheduler: prefix %s would expand to more than %d addresses", prefix, MaxCIDREnumeration)
	}

	first := prefix.Addr()
	count := 1 << hostBits

	trimNetworkBroadcast := excludeNetworkBroadcast && prefix.Addr().Is4() && hostBits >= 2

	addrs := make([]netip.Addr, 0, count)
	addr := first
	for i := 0; i < count; i++ {
		isNetwork := i == 0
		isBroadcast := i == count-1
		if !(trimNetworkBroadcast && (isNetwork || isBroadcast)) {
			addrs = append(addrs, addr)
		}
		if i < count-1 {
			addr = addr.Next()
		}
	}
	return addrs, nil
}

// LooksLikeRange reports whether spec is a CIDR or literal address
// rather than a hostname, a cheap check used by callers that want to
// skip DNS resolution entirely for obviously-literal specs.
func LooksLikeRange(spec string) bool {
	if strings.Contains(spec, "/") {
		_, err := netip.ParsePrefix(spec)
		return err == nil
	}
	_, err := netip.ParseAddr(spec)
	return err == nil
}
