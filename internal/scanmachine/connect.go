package scanmachine

import (
	"time"

	"github.com/reconwire/scancore/internal/correlator"
	"github.com/reconwire/scancore/internal/scanconfig"
	"github.com/reconwire/scancore/internal/scancore"
)

// connectMachine implements TCP Connect scanning via the OS-level
// connect() syscall (spec §4.4 row 2). The orchestrator does not route
// connect probes through this machine's Interpret or the correlator: its
// connectProbe classifies the dial outcome itself (success -> Open,
// refused -> Closed, anything else -> Filtered) and submits the result
// straight to the aggregator. This machine still supplies the scan type
// and the Machine interface; Interpret maps SYN+ACK to Open and RST to
// Closed.
type connectMachine struct{}

func (connectMachine) ScanType() scancore.ScanType { return scancore.ScanTCPConnect }

func (connectMachine) WaitWindow(p scanconfig.TimingProfile) time.Duration {
	return p.InitialRTT * 3
}

func (connectMachine) Interpret(sig correlator.ResponseSignal) scancore.PortState {
	switch {
	case sig.TCPFlagsSYN && sig.TCPFlagsACK:
		return scancore.StateOpen
	case sig.TCPFlagsRST:
		return scancore.StateClosed
	default:
		return scancore.StateFiltered
	}
}

func (connectMachine) TimeoutState() scancore.PortState { return scancore.StateFiltered }

func (connectMachine) Payload(uint16) []byte { return nil }
