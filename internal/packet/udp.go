package packet

import (
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// UDPParams describes the UDP datagram to emit.
type UDPParams struct {
	SrcPort, DstPort uint16
	BadChecksum      bool
}

// BuildUDPv4 serializes an IPv4+UDP datagram.
func BuildUDPv4(buf gopacket.SerializeBuffer, ipParams IPv4Params, udpParams UDPParams, payload []byte) error {
	ip := &layers.IPv4{
		Version: 4, IHL: 5, TTL: ipParams.TTL, Id: ipParams.ID,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP(ipParams.Src.AsSlice()),
		DstIP:    net.IP(ipParams.Dst.AsSlice()),
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(udpParams.SrcPort), DstPort: layers.UDPPort(udpParams.DstPort)}
	_ = udp.SetNetworkLayerForChecksum(ip)

	opts := DefaultSerializeOptions
	if udpParams.BadChecksum {
		opts = RawSerializeOptions
	}
	return gopacket.SerializeLayers(buf, opts, ip, udp, gopacket.Payload(payload))
}

// BuildUDPv6 serializes an IPv6+UDP datagram. The UDP checksum over IPv6
// must never be zero (RFC 8200 §8.1, spec §3/§8); gopacket computes a
// genuine checksum here, and if the extremely rare all-zero fold occurs we
// patch it to 0xffff after serialization.
func BuildUDPv6(buf gopacket.SerializeBuffer, ipParams IPv6Params, udpParams UDPParams, payload []byte) error {
	ip := &layers.IPv6{
		Version: 6, NextHeader: layers.IPProtocolUDP, HopLimit: ipParams.HopLimit,
		SrcIP: net.IP(ipParams.Src.AsSlice()), DstIP: net.IP(ipParams.Dst.AsSlice()),
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(udpParams.SrcPort), DstPort: layers.UDPPort(udpParams.DstPort)}
	_ = udp.SetNetworkLayerForChecksum(ip)

	if err := gopacket.SerializeLayers(buf, DefaultSerializeOptions, ip, udp, gopacket.Payload(payload)); err != nil {
		return err
	}

	patchUDPv6ChecksumIfZero(buf.Bytes())
	return nil
}

// patchUDPv6ChecksumIfZero finds the UDP checksum field (the 6th/7th byte
// of the UDP header, which starts 40 bytes into an IPv6 packet with no
// extension headers) and rewrites a zero checksum to 0xffff in place.
func patchUDPv6ChecksumIfZero(raw []byte) {
	const ipv6HeaderLen = 40
	const udpChecksumOffset = ipv6HeaderLen + 6
	if len(raw) < udpChecksumOffset+2 {
		return
	}
	if raw[udpChecksumOffset] == 0 && raw[udpChecksumOffset+1] == 0 {
		raw[udpChecksumOffset] = 0xff
		raw[udpChecksumOffset+1] = 0xff
	}
}

// ParsedUDP is the subset of UDP fields needed downstream.
type ParsedUDP struct {
	SrcPort, DstPort uint16
	Payload          []byte
}
