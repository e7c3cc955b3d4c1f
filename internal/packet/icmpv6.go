package packet

import (
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// ICMPv6 type constants used by the core (spec §6): Destination
// Unreachable (1), Packet Too Big/was reused as generic unreachable family
// here (not used), Echo Request (128), Echo Reply (129), Neighbor
// Solicitation (135), Neighbor Advertisement (136).
const (
	ICMPv6DestUnreachable      = 1
	ICMPv6EchoRequest          = 128
	ICMPv6EchoReply            = 129
	ICMPv6NeighborSolicitation = 135
	ICMPv6NeighborAdvertisement = 136

	ICMPv6CodePortUnreachable = 4
	ICMPv6CodeProhibited      = 1
)

// ICMPv6Params describes the ICMPv6 message to emit.
type ICMPv6Params struct {
	Type, Code uint8
	ID, Seq    uint16
}

// BuildICMPv6Echo serializes an IPv6+ICMPv6 Echo Request/Reply. The
// checksum uses the IPv6 pseudo-header, set via SetNetworkLayerForChecksum.
func BuildICMPv6Echo(buf gopacket.SerializeBuffer, ipParams IPv6Params, p ICMPv6Params, payload []byte) error {
	ip := &layers.IPv6{
		Version: 6, NextHeader: layers.IPProtocolICMPv6, HopLimit: ipParams.HopLimit,
		SrcIP: net.IP(ipParams.Src.AsSlice()), DstIP: net.IP(ipParams.Dst.AsSlice()),
	}
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(p.Type, p.Code)}
	_ = icmp.SetNetworkLayerForChecksum(ip)

	echo := &layers.ICMPv6Echo{Identifier: p.ID, SeqNumber: p.Seq}
	return gopacket.SerializeLayers(buf, DefaultSerializeOptions, ip, icmp, echo, gopacket.Payload(payload))
}

// BuildICMPv6Unreachable serializes a Destination Unreachable message
// embedding the offending packet for fingerprint recovery.
func BuildICMPv6Unreachable(buf gopacket.SerializeBuffer, ipParams IPv6Params, code uint8, originalPacket []byte) error {
	ip := &layers.IPv6{
		Version: 6, NextHeader: layers.IPProtocolICMPv6, HopLimit: ipParams.HopLimit,
		SrcIP: net.IP(ipParams.Src.AsSlice()), DstIP: net.IP(ipParams.Dst.AsSlice()),
	}
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(ICMPv6DestUnreachable, code)}
	_ = icmp.SetNetworkLayerForChecksum(ip)

	embedded := originalPacket
	if len(embedded) > 1232 {
		embedded = embedded[:1232]
	}
	return gopacket.SerializeLayers(buf, DefaultSerializeOptions, ip, icmp, gopacket.Payload(embedded))
}

// ParsedICMPv6 is the subset of fields the correlator needs.
type ParsedICMPv6 struct {
	Type, Code     uint8
	ID, Seq        uint16
	EmbeddedPacket []byte
}
