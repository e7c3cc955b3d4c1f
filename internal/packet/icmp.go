package packet

import (
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// ICMPv4 type/code constants used by the core (spec §6): Echo Reply (0),
// Destination Unreachable (3, code 3 = port unreachable, code 13 =
// administratively prohibited), Echo Request (8), Time Exceeded (11).
const (
	ICMPv4EchoReply       = 0
	ICMPv4DestUnreachable = 3
	ICMPv4EchoRequest     = 8
	ICMPv4TimeExceeded    = 11

	ICMPv4CodePortUnreachable  = 3
	ICMPv4CodeProhibited       = 13
)

// ICMPv4Params describes the ICMPv4 message to emit.
type ICMPv4Params struct {
	Type, Code uint8
	ID, Seq    uint16
}

// BuildICMPv4Echo serializes an IPv4+ICMP Echo Request/Reply.
func BuildICMPv4Echo(buf gopacket.SerializeBuffer, ipParams IPv4Params, p ICMPv4Params, payload []byte) error {
	ip := &layers.IPv4{
		Version: 4, IHL: 5, TTL: ipParams.TTL, Id: ipParams.ID,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    net.IP(ipParams.Src.AsSlice()),
		DstIP:    net.IP(ipParams.Dst.AsSlice()),
	}
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(p.Type, p.Code),
		Id:       p.ID,
		Seq:      p.Seq,
	}
	return gopacket.SerializeLayers(buf, DefaultSerializeOptions, ip, icmp, gopacket.Payload(payload))
}

// BuildICMPv4Unreachable serializes a Destination Unreachable message
// embedding the offending packet's header plus first 8 bytes, as required
// for the correlator to recover the original Fingerprint (spec §4.7).
func BuildICMPv4Unreachable(buf gopacket.SerializeBuffer, ipParams IPv4Params, code uint8, originalPacket []byte) error {
	ip := &layers.IPv4{
		Version: 4, IHL: 5, TTL: ipParams.TTL,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    net.IP(ipParams.Src.AsSlice()),
		DstIP:    net.IP(ipParams.Dst.AsSlice()),
	}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(ICMPv4DestUnreachable, code)}
	embedded := originalPacket
	if len(embedded) > 28 {
		embedded = embedded[:28]
	}
	return gopacket.SerializeLayers(buf, DefaultSerializeOptions, ip, icmp, gopacket.Payload(embedded))
}

// ParsedICMPv4 is the subset of fields the correlator needs.
type ParsedICMPv4 struct {
	Type, Code     uint8
	ID, Seq        uint16
	EmbeddedPacket []byte
}
