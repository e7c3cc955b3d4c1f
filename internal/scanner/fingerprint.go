// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package scanner is the passive fingerprint enrichment layer: while the
// rest of the engine drives active probes, any DHCP or mDNS traffic a
// target incidentally emits during the scan window carries identity hints
// a banner grab alone wouldn't surface. This package folds those hints
// into ServiceInfo (its ServiceName and OSHint fields) instead of
// reporting them as a separate record.
package scanner

import (
	"net/netip"
	"sync"

	"github.com/reconwire/scancore/internal/scancore"
)

// PassiveFingerprint accumulates opportunistic identity signals observed
// for one target over the life of a scan.
type PassiveFingerprint struct {
	Addr netip.Addr

	// DHCP
	DHCPv4Vendor  string // Option 60
	DHCPv4Params  string // Option 55, hex-encoded
	DHCPv6Vendor  string // Option 16
	DHCPv6Options string // Option 6 (ORO), hex-encoded

	// mDNS
	MDNSNames    []string
	MDNSServices []string

	mu sync.Mutex
}

func newPassiveFingerprint(addr netip.Addr) *PassiveFingerprint {
	return &PassiveFingerprint{Addr: addr}
}

func (f *PassiveFingerprint) addMDNS(name, service string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if name != "" && !containsString(f.MDNSNames, name) {
		f.MDNSNames = append(f.MDNSNames, name)
	}
	if service != "" && !containsString(f.MDNSServices, service) {
		f.MDNSServices = append(f.MDNSServices, service)
	}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// EnrichService fills in svc.OSHint and svc.ServiceName from passively
// observed signals, but only where the active probe left them empty —
// a banner-derived identification always takes precedence over a
// passive guess.
func (f *PassiveFingerprint) EnrichService(svc *scancore.ServiceInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if svc.ServiceName == "" && len(f.MDNSServices) > 0 {
		svc.ServiceName = mdnsServiceToName(f.MDNSServices[0])
	}
	if svc.OSHint == "" {
		if hint := f.dhcpOSHint(); hint != "" {
			svc.OSHint = hint
		}
	}
}

// dhcpOSHint returns the DHCPv4 vendor class identifier (Option 60)
// verbatim as the OS hint, falling back to the DHCPv6 vendor class
// (Option 16). The string is not mapped to an OS family; DHCP vendor
// strings are free-form and vendor-controlled.
func (f *PassiveFingerprint) dhcpOSHint() string {
	switch {
	case f.DHCPv4Vendor != "":
		return f.DHCPv4Vendor
	case f.DHCPv6Vendor != "":
		return f.DHCPv6Vendor
	default:
		return ""
	}
}

// mdnsServiceToName strips the mDNS/DNS-SD service-type syntax down to a
// human-readable service label, e.g. "_ssh._tcp.local" -> "ssh".
func mdnsServiceToName(service string) string {
	name := service
	for len(name) > 0 && name[0] == '_' {
		name = name[1:]
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return name
}
