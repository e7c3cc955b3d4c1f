// Package scanmachine implements the per-scan-type probe/response
// semantics of spec §4.4: for each ScanType, what probe to send, how long
// to wait, and how to classify a response (or its absence) into a
// PortState.
package scanmachine

import (
	"time"

	"github.com/reconwire/scancore/internal/correlator"
	"github.com/reconwire/scancore/internal/scanconfig"
	"github.com/reconwire/scancore/internal/scancore"
)

// Machine is the small dispatch interface every scan type implements. It
// carries no packet-construction logic itself (that's internal/packet's
// job, invoked by the orchestrator with the parameters Machine supplies) —
// it only encodes the semantics that differ between scan types.
type Machine interface {
	ScanType() scancore.ScanType

	// WaitWindow returns how long the correlator should keep a probe of
	// this type pending before sweeping it into TimeoutState.
	WaitWindow(profile scanconfig.TimingProfile) time.Duration

	// Interpret classifies an observed response into a terminal PortState.
	Interpret(sig correlator.ResponseSignal) scancore.PortState

	// TimeoutState classifies the state assigned when no response arrives
	// within WaitWindow (spec §4.4 "Otherwise" column).
	TimeoutState() scancore.PortState

	// Payload returns any protocol-aware application payload the probe
	// must carry (used by UDP probes; nil for flag-only TCP/ICMP probes).
	Payload(port uint16) []byte
}

// ResolveFunc adapts a Machine into the correlator.ResolveFunc signature.
func ResolveFunc(m Machine) correlator.ResolveFunc {
	return func(p scancore.Probe, sig correlator.ResponseSignal) scancore.PortState {
		return m.Interpret(sig)
	}
}

// For constructs the Machine for a given ScanType. Idle and Discovery are
// handled by dedicated packages (internal/idlescan, and the discovery
// machine here respectively) since idle scanning's state lives across three
// network round trips rather than a single probe/response pair.
func For(st scancore.ScanType) Machine {
	switch st {
	case scancore.ScanSynStealth:
		return synMachine{}
	case scancore.ScanTCPConnect:
		return connectMachine{}
	case scancore.ScanUDP:
		return udpMachine{}
	case scancore.ScanFin:
		return flagMachine{scanType: scancore.ScanFin, flags: tcpProbeFlags{FIN: true}}
	case scancore.ScanNull:
		return flagMachine{scanType: scancore.ScanNull, flags: tcpProbeFlags{}}
	case scancore.ScanXmas:
		return flagMachine{scanType: scancore.ScanXmas, flags: tcpProbeFlags{FIN: true, PSH: true, URG: true}}
	case scancore.ScanAck:
		return ackMachine{}
	case scancore.ScanDiscovery:
		return discoveryMachine{}
	default:
		return nil
	}
}

// tcpProbeFlags names which TCP flags FIN/NULL/Xmas probes set; kept
// separate from packet.TCPFlags so this package has no dependency on the
// packet layer.
type tcpProbeFlags struct {
	FIN, PSH, URG bool
}
