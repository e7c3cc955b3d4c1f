// Package osid implements OS fingerprinting (spec §4.8): a fixed battery
// of probes whose response features are weighed against a signature
// database.
package osid

// ProbeKind enumerates the sixteen specialized OS-detection probes (spec
// §4.8: "TCP SYN to an open and a closed port with varied options, ICMP
// Echo variations, UDP to a closed port, TCP window/ISN/timestamp
// sampling"), named after the Nmap-style probe families this corpus's
// OS-fingerprint code (NeoScan) also groups responses by.
type ProbeKind uint8

const (
	ProbeSEQ1 ProbeKind = iota
	ProbeSEQ2
	ProbeSEQ3
	ProbeSEQ4
	ProbeSEQ5
	ProbeSEQ6
	ProbeIE1
	ProbeIE2
	ProbeECN
	ProbeT2
	ProbeT3
	ProbeT4
	ProbeT5
	ProbeT6
	ProbeT7
	ProbeU1

	ProbeCount = int(ProbeU1) + 1
)

func (p ProbeKind) String() string {
	names := [...]string{
		"SEQ1", "SEQ2", "SEQ3", "SEQ4", "SEQ5", "SEQ6",
		"IE1", "IE2", "ECN", "T2", "T3", "T4", "T5", "T6", "T7", "U1",
	}
	if int(p) < len(names) {
		return names[p]
	}
	return "unknown"
}

// ProbeSpec describes one probe's wire parameters, independent of address
// family; the orchestrator resolves these into actual packets via
// internal/packet.
type ProbeSpec struct {
	Kind        ProbeKind
	TargetOpen  bool // true: send to the known-open port, false: closed port
	TCPOptions  bool // SEQ/T-probes vary window size and option presence
	Window      uint16
	ECNBits     bool
	ICMPCode    uint8
	UDPToClosed bool
}

// AllProbes returns the fixed 16-probe battery for a target, given its
// known open and closed ports (spec §4.8: "Requires at least one open and
// one closed port unless operator overrides").
func AllProbes(openPort, closedPort uint16) []ProbeSpec {
	return []ProbeSpec{
		{Kind: ProbeSEQ1, TargetOpen: true, TCPOptions: true, Window: 1},
		{Kind: ProbeSEQ2, TargetOpen: true, TCPOptions: true, Window: 63},
		{Kind: ProbeSEQ3, TargetOpen: true, TCPOptions: true, Window: 4},
		{Kind: ProbeSEQ4, TargetOpen: true, TCPOptions: true, Window: 4},
		{Kind: ProbeSEQ5, TargetOpen: true, TCPOptions: true, Window: 16},
		{Kind: ProbeSEQ6, TargetOpen: true, TCPOptions: true, Window: 512},
		{Kind: ProbeIE1, ICMPCode: 9},
		{Kind: ProbeIE2, ICMPCode: 0},
		{Kind: ProbeECN, TargetOpen: true, ECNBits: true, Window: 3},
		{Kind: ProbeT2, TargetOpen: true, Window: 128},
		{Kind: ProbeT3, TargetOpen: true, Window: 256},
		{Kind: ProbeT4, TargetOpen: false, Window: 1024},
		{Kind: ProbeT5, TargetOpen: false, Window: 31337},
		{Kind: ProbeT6, TargetOpen: false, Window: 32768},
		{Kind: ProbeT7, TargetOpen: false, Window: 65535},
		{Kind: ProbeU1, UDPToClosed: true},
	}
}
