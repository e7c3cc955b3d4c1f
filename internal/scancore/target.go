// Package scancore defines the shared data model for the recon engine: the
// immutable value types workers, the scheduler, and the result pipeline pass
// between each other. Nothing in this package performs I/O.
package scancore

import (
	"fmt"
	"net/netip"
)

// Target is a single scan destination, either IPv4 or IPv6. Targets are
// immutable once constructed by target expansion.
type Target struct {
	Addr netip.Addr
	// Zone is the IPv6 link-local zone identifier (interface name or
	// index), empty for global addresses and all IPv4 targets.
	Zone string
	// Hostname is retained for reporting when the target was expanded from
	// a DNS name rather than a literal address or CIDR.
	Hostname string
}

// NewTarget builds a Target from a parsed address.
func NewTarget(addr netip.Addr) Target {
	return Target{Addr: addr}
}

// IsIPv6 reports whether the target address is IPv6.
func (t Target) IsIPv6() bool { return t.Addr.Is6() && !t.Addr.Is4In6() }

func (t Target) String() string {
	if t.Zone != "" {
		return fmt.Sprintf("%s%%%s", t.Addr.String(), t.Zone)
	}
	return t.Addr.String()
}

// Protocol identifies the transport a PortSpec entry or Probe applies to.
type Protocol uint8

const (
	ProtoTCP Protocol = iota
	ProtoUDP
	ProtoICMP
	ProtoICMPv6
)

func (p Protocol) String() string {
	switch p {
	case ProtoTCP:
		return "tcp"
	case ProtoUDP:
		return "udp"
	case ProtoICMP:
		return "icmp"
	case ProtoICMPv6:
		return "icmpv6"
	default:
		return "unknown"
	}
}

// PortProto is a single (port, protocol) pair, the unit PortSpec enumerates.
type PortProto struct {
	Port     uint16
	Protocol Protocol
}
