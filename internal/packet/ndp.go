package packet

import (
	"net"
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/mdlayher/ndp"
)

// BuildNDPNeighborSolicitation serializes an IPv6 Neighbor Solicitation
// (spec §4.4 discovery row: "an NDP Neighbor Solicitation for IPv6
// targets"), using mdlayher/ndp to marshal the ICMPv6 message body instead
// of hand-rolling the option TLV layout this package's other ICMPv6
// builders don't need.
//
// target is the address being solicited (the scan's destination). The
// solicitation is sent unicast to that address rather than to its
// solicited-node multicast group, since the prober already knows exactly
// which host it wants a Neighbor Advertisement from.
func BuildNDPNeighborSolicitation(buf gopacket.SerializeBuffer, ipParams IPv6Params, target netip.Addr) error {
	msg := &ndp.NeighborSolicitation{
		TargetAddress: net.IP(target.AsSlice()),
	}
	// MarshalMessage returns the full ICMPv6 message (type, code, a zeroed
	// checksum field, then the message body) per mdlayher/ndp's raw-socket
	// contract, which normally leaves checksumming to the kernel's
	// IPV6_CHECKSUM socket option. This engine writes its own IP header, so
	// the checksum is filled in here instead.
	body, err := ndp.MarshalMessage(msg)
	if err != nil {
		return err
	}

	ph := PseudoHeader{Src: ipParams.Src, Dst: ipParams.Dst, Protocol: uint8(layers.IPProtocolICMPv6), Length: uint16(len(body))}
	body[2], body[3] = 0, 0
	checksum := TransportChecksum(ph, body)
	body[2] = byte(checksum >> 8)
	body[3] = byte(checksum)

	ip := &layers.IPv6{
		Version: 6, NextHeader: layers.IPProtocolICMPv6, HopLimit: ipParams.HopLimit,
		SrcIP: net.IP(ipParams.Src.AsSlice()), DstIP: net.IP(ipParams.Dst.AsSlice()),
	}
	return gopacket.SerializeLayers(buf, DefaultSerializeOptions, ip, gopacket.Payload(body))
}
