package scanmachine

import (
	"time"

	"github.com/reconwire/scancore/internal/correlator"
	"github.com/reconwire/scancore/internal/scanconfig"
	"github.com/reconwire/scancore/internal/scancore"
)

// discoveryMachine implements host discovery (spec §4.4 row 6): the
// orchestrator sends one probe per work item: an ICMP Echo to an IPv4
// target, an NDP Neighbor Solicitation (in place of an ICMPv6 Echo) to an
// IPv6 target, and a TCP probe for a TCP work item. No ARP request is
// sent. Any affirmative reply marks the host up; "port" has no meaning
// for an ICMP discovery probe.
type discoveryMachine struct{}

func (discoveryMachine) ScanType() scancore.ScanType { return scancore.ScanDiscovery }

func (discoveryMachine) WaitWindow(p scanconfig.TimingProfile) time.Duration {
	return p.InitialRTT * 2
}

// Interpret treats any of ICMP echo reply, an NDP Neighbor Advertisement
// (ICMPv6 type 136), or a TCP reply carrying SYN, ACK or RST as "host up".
// Each probe's reply is interpreted on its own, as resolved by the
// correlator.
func (discoveryMachine) Interpret(sig correlator.ResponseSignal) scancore.PortState {
	switch {
	case sig.IsICMP && (sig.ICMPType == 0 || sig.ICMPType == 136): // Echo Reply or Neighbor Advertisement
		return scancore.StateOpen // "host up" reuses Open as the affirmative state
	case sig.TCPFlagsSYN || sig.TCPFlagsACK || sig.TCPFlagsRST:
		return scancore.StateOpen
	default:
		return scancore.StateClosed // "host down"
	}
}

func (discoveryMachine) TimeoutState() scancore.PortState { return scancore.StateClosed }

func (discoveryMachine) Payload(uint16) []byte { return nil }
