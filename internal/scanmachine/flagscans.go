package scanmachine

import (
	"time"

	"github.com/reconwire/scancore/internal/correlator"
	"github.com/reconwire/scancore/internal/scanconfig"
	"github.com/reconwire/scancore/internal/scancore"
)

// flagMachine implements the FIN, NULL, and Xmas scans, which all share
// the same interpretation rule: no reply means OpenFiltered (RFC 793
// compliant stacks silently drop on open ports), RST means Closed (spec
// §4.4 row 4). Only the transmitted flag combination differs between the
// three, carried in flags and consumed by the orchestrator's packet
// builder, not by this type.
type flagMachine struct {
	scanType scancore.ScanType
	flags    tcpProbeFlags
}

func (m flagMachine) ScanType() scancore.ScanType { return m.scanType }

func (m flagMachine) Flags() tcpProbeFlags { return m.flags }

func (flagMachine) WaitWindow(p scanconfig.TimingProfile) time.Duration {
	return p.InitialRTT * 3
}

func (flagMachine) Interpret(sig correlator.ResponseSignal) scancore.PortState {
	if sig.TCPFlagsRST {
		return scancore.StateClosed
	}
	return scancore.StateOpenFiltered
}

func (flagMachine) TimeoutState() scancore.PortState { return scancore.StateOpenFiltered }

func (flagMachine) Payload(uint16) []byte { return nil }

// ackMachine implements ACK scanning, used for firewall rule-set mapping
// rather than open/closed detection: RST means Unfiltered, anything else
// (including silence) means Filtered (spec §4.4 row 5).
type ackMachine struct{}

func (ackMachine) ScanType() scancore.ScanType { return scancore.ScanAck }

func (ackMachine) WaitWindow(p scanconfig.TimingProfile) time.Duration {
	return p.InitialRTT * 3
}

func (ackMachine) Interpret(sig correlator.ResponseSignal) scancore.PortState {
	if sig.TCPFlagsRST {
		return scancore.StateUnfiltered
	}
	return scancore.StateFiltered
}

func (ackMachine) TimeoutState() scancore.PortState { return scancore.StateFiltered }

func (ackMachine) Payload(uint16) []byte { return nil }
