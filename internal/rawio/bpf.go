package rawio

import (
	"fmt"

	"golang.org/x/net/bpf"

	"github.com/reconwire/scancore/internal/scancore"
)

// ipProtoTCP and ipProtoUDP are the IPv4 next-header values BPF filters
// match against (RFC 790 assigned numbers).
const (
	ipProtoTCP = 6
	ipProtoUDP = 17

	ethTypeIPv4Offset = 12
	ethTypeIPv4Value  = 0x0800
	ipProtoOffset     = 23 // Ethernet header (14) + IPv4 protocol field offset (9)
)

// BuildProtocolFilter assembles a classic BPF program matching untagged
// Ethernet frames carrying an IPv4 datagram of the given transport
// protocol, narrowing capture at the kernel per spec §4.2 ("a BPF filter
// narrowed to the scan's port set when possible"). Exact port matching
// is deliberately left to software (PortFilteringConn in portfilter.go):
// encoding a port allowlist as a variable-length BPF jump table is
// fragile to hand-assemble correctly, where a protocol-level cBPF filter
// plus a cheap software port check on the already-parsed packet achieves
// the same narrowing with far less risk of a miscomputed jump offset
// silently dropping every packet.
func BuildProtocolFilter(proto scancore.Protocol) ([]bpf.RawInstruction, error) {
	var ipProto uint32
	switch proto {
	case scancore.ProtoTCP:
		ipProto = ipProtoTCP
	case scancore.ProtoUDP:
		ipProto = ipProtoUDP
	default:
		return nil, fmt.Errorf("rawio: BPF protocol filter unsupported for protocol %s", proto)
	}

	insns := []bpf.Instruction{
		bpf.LoadAbsolute{Off: ethTypeIPv4Offset, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: ethTypeIPv4Value, SkipTrue: 1},
		bpf.RetConstant{Val: 0},
		bpf.LoadAbsolute{Off: ipProtoOffset, Size: 1},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: ipProto, SkipTrue: 1},
		bpf.RetConstant{Val: 0},
		bpf.RetConstant{Val: 262144}, // snaplen: capture the whole frame
	}

	return bpf.Assemble(insns)
}

// PortSet is a software-side allowlist of ports for one protocol,
// applied after BPF-level protocol narrowing and after packet.Parse has
// decoded the transport header.
type PortSet struct {
	proto scancore.Protocol
	ports map[uint16]struct{}
}

// NewPortSet builds a PortSet. An empty ports slice matches every port.
func NewPortSet(proto scancore.Protocol, ports []uint16) PortSet {
	set := PortSet{proto: proto}
	if len(ports) > 0 {
		set.ports = make(map[uint16]struct{}, len(ports))
		for _, p := range ports {
			set.ports[p] = struct{}{}
		}
	}
	return set
}

// MatchesTCP reports whether a TCP segment's ports fall in this set,
// checking both directions since either could be the scan's fixed probe
// port depending on which side of the exchange this frame represents.
func (s PortSet) MatchesTCP(srcPort, dstPort uint16) bool {
	if s.proto != scancore.ProtoTCP {
		return false
	}
	return s.contains(srcPort) || s.contains(dstPort)
}

// MatchesUDP is MatchesTCP's UDP counterpart.
func (s PortSet) MatchesUDP(srcPort, dstPort uint16) bool {
	if s.proto != scancore.ProtoUDP {
		return false
	}
	return s.contains(srcPort) || s.contains(dstPort)
}

func (s PortSet) contains(port uint16) bool {
	if s.ports == nil {
		return true
	}
	_, ok := s.ports[port]
	return ok
}
