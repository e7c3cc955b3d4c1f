package scanmachine

import (
	"time"

	"github.com/reconwire/scancore/internal/correlator"
	"github.com/reconwire/scancore/internal/scanconfig"
	"github.com/reconwire/scancore/internal/scancore"
)

// synMachine implements SYN stealth scanning: SYN probe, SYN/ACK means
// Open, RST means Closed, no reply means Filtered (spec §4.4 row 1).
type synMachine struct{}

func (synMachine) ScanType() scancore.ScanType { return scancore.ScanSynStealth }

func (synMachine) WaitWindow(p scanconfig.TimingProfile) time.Duration {
	return p.InitialRTT * 3
}

func (synMachine) Interpret(sig correlator.ResponseSignal) scancore.PortState {
	switch {
	case sig.TCPFlagsSYN && sig.TCPFlagsACK:
		return scancore.StateOpen
	case sig.TCPFlagsRST:
		return scancore.StateClosed
	default:
		return scancore.StateFiltered
	}
}

func (synMachine) TimeoutState() scancore.PortState { return scancore.StateFiltered }

func (synMachine) Payload(uint16) []byte { return nil }
