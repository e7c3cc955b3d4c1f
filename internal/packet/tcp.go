package packet

import (
	"net"
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// TCPFlags names the flag combinations the scan-type state machines need
// (spec §4.4): SYN, FIN/NULL/Xmas, ACK.
type TCPFlags struct {
	SYN, ACK, FIN, RST, PSH, URG bool
}

// TCPOption mirrors the OS-fingerprint probe option set (spec §6): MSS,
// NOP, WindowScale, SACK-permitted, Timestamps.
type TCPOption struct {
	Kind layers.TCPOptionKind
	Data []byte
}

// MSSOption builds a Maximum Segment Size option.
func MSSOption(mss uint16) TCPOption {
	return TCPOption{Kind: layers.TCPOptionKindMSS, Data: []byte{byte(mss >> 8), byte(mss)}}
}

// WindowScaleOption builds a Window Scale option.
func WindowScaleOption(shift uint8) TCPOption {
	return TCPOption{Kind: layers.TCPOptionKindWindowScale, Data: []byte{shift}}
}

// SACKPermittedOption builds a SACK-permitted option.
func SACKPermittedOption() TCPOption {
	return TCPOption{Kind: layers.TCPOptionKindSACKPermitted}
}

// TimestampsOption builds a Timestamps option (TSval, TSecr).
func TimestampsOption(tsval, tsecr uint32) TCPOption {
	data := make([]byte, 8)
	data[0], data[1], data[2], data[3] = byte(tsval>>24), byte(tsval>>16), byte(tsval>>8), byte(tsval)
	data[4], data[5], data[6], data[7] = byte(tsecr>>24), byte(tsecr>>16), byte(tsecr>>8), byte(tsecr)
	return TCPOption{Kind: layers.TCPOptionKindTimestamps, Data: data}
}

// NOPOption pads option alignment.
func NOPOption() TCPOption {
	return TCPOption{Kind: layers.TCPOptionKindNop}
}

// TCPParams describes the TCP segment to emit.
type TCPParams struct {
	SrcPort, DstPort uint16
	Seq, Ack         uint32
	Flags            TCPFlags
	Window           uint16
	Options          []TCPOption
	BadChecksum      bool
}

func (p TCPParams) toLayer() *layers.TCP {
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(p.SrcPort),
		DstPort: layers.TCPPort(p.DstPort),
		Seq:     p.Seq,
		Ack:     p.Ack,
		SYN:     p.Flags.SYN,
		ACK:     p.Flags.ACK,
		FIN:     p.Flags.FIN,
		RST:     p.Flags.RST,
		PSH:     p.Flags.PSH,
		URG:     p.Flags.URG,
		Window:  p.Window,
	}
	for _, o := range p.Options {
		tcp.Options = append(tcp.Options, layers.TCPOption{OptionType: o.Kind, OptionLength: uint8(len(o.Data) + 2), OptionData: o.Data})
	}
	return tcp
}

// BuildTCPv4 serializes an IPv4+TCP segment with a correct pseudo-header
// checksum, or a deliberately absent checksum when BadChecksum is set
// (spec §4.1 bad-checksum mode, §7 --badsum).
func BuildTCPv4(buf gopacket.SerializeBuffer, ipParams IPv4Params, tcpParams TCPParams, payload []byte) error {
	ip := &layers.IPv4{
		Version: 4, IHL: 5, TTL: ipParams.TTL, Id: ipParams.ID,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IP(ipParams.Src.AsSlice()),
		DstIP:    net.IP(ipParams.Dst.AsSlice()),
	}
	tcp := tcpParams.toLayer()
	_ = tcp.SetNetworkLayerForChecksum(ip)

	opts := DefaultSerializeOptions
	if tcpParams.BadChecksum {
		opts = RawSerializeOptions
	}
	return gopacket.SerializeLayers(buf, opts, ip, tcp, gopacket.Payload(payload))
}

// BuildTCPv6 serializes an IPv6+TCP segment.
func BuildTCPv6(buf gopacket.SerializeBuffer, ipParams IPv6Params, tcpParams TCPParams, payload []byte) error {
	ip := &layers.IPv6{
		Version: 6, NextHeader: layers.IPProtocolTCP, HopLimit: ipParams.HopLimit,
		SrcIP: net.IP(ipParams.Src.AsSlice()), DstIP: net.IP(ipParams.Dst.AsSlice()),
	}
	tcp := tcpParams.toLayer()
	_ = tcp.SetNetworkLayerForChecksum(ip)

	opts := DefaultSerializeOptions
	if tcpParams.BadChecksum {
		opts = RawSerializeOptions
	}
	return gopacket.SerializeLayers(buf, opts, ip, tcp, gopacket.Payload(payload))
}

// ParsedTCP is the subset of TCP fields the correlator and scan-type state
// machines need from an inbound packet.
type ParsedTCP struct {
	SrcIP, DstIP     netip.Addr
	SrcPort, DstPort uint16
	Seq, Ack         uint32
	Flags            TCPFlags
	Window           uint16
	Payload          []byte
}
