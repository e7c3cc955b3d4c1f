package packet

import (
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// ParsedPacket is the decoded view of an inbound frame the correlator and
// scan-type state machines interpret. Exactly one of TCP/UDP/ICMPv4/ICMPv6
// is non-nil.
type ParsedPacket struct {
	SrcIP, DstIP netip.Addr
	TCP          *ParsedTCP
	UDP          *ParsedUDP
	ICMPv4       *ParsedICMPv4
	ICMPv6       *ParsedICMPv6
}

// Parse decodes raw bytes captured off the wire (an IPv4 or IPv6 datagram,
// no link-layer header) into a ParsedPacket. It never panics: any
// malformed input yields a *ParseError (spec §4.1 "parse_packet is
// total").
func Parse(raw []byte) (pp *ParsedPacket, err error) {
	defer func() {
		if r := recover(); r != nil {
			pp = nil
			err = &ParseError{Kind: ParseErrTruncated, Detail: "panic during decode"}
		}
	}()

	if len(raw) < 1 {
		return nil, &ParseError{Kind: ParseErrTruncated, Detail: "empty input"}
	}

	version := raw[0] >> 4
	var firstLayer gopacket.LayerType
	switch version {
	case 4:
		firstLayer = layers.LayerTypeIPv4
	case 6:
		firstLayer = layers.LayerTypeIPv6
	default:
		return nil, &ParseError{Kind: ParseErrUnsupportedVersion, Detail: "not IPv4 or IPv6"}
	}

	packet := gopacket.NewPacket(raw, firstLayer, gopacket.DecodeOptions{
		Lazy:                     true,
		NoCopy:                   true,
		SkipDecodeRecovery:       true,
		DecodeStreamsAsDatagrams: true,
	})
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		return nil, &ParseError{Kind: ParseErrBadLength, Detail: errLayer.Error().Error()}
	}

	out := &ParsedPacket{}

	if v4 := packet.Layer(layers.LayerTypeIPv4); v4 != nil {
		ip, _ := v4.(*layers.IPv4)
		out.SrcIP, _ = netip.AddrFromSlice(ip.SrcIP.To4())
		out.DstIP, _ = netip.AddrFromSlice(ip.DstIP.To4())
	} else if v6 := packet.Layer(layers.LayerTypeIPv6); v6 != nil {
		ip, _ := v6.(*layers.IPv6)
		out.SrcIP, _ = netip.AddrFromSlice(ip.SrcIP.To16())
		out.DstIP, _ = netip.AddrFromSlice(ip.DstIP.To16())
	} else {
		return nil, &ParseError{Kind: ParseErrBadLength, Detail: "no IP layer decoded"}
	}

	switch {
	case packet.Layer(layers.LayerTypeTCP) != nil:
		tcp, _ := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		out.TCP = &ParsedTCP{
			SrcIP: out.SrcIP, DstIP: out.DstIP,
			SrcPort: uint16(tcp.SrcPort), DstPort: uint16(tcp.DstPort),
			Seq: tcp.Seq, Ack: tcp.Ack,
			Flags:   TCPFlags{SYN: tcp.SYN, ACK: tcp.ACK, FIN: tcp.FIN, RST: tcp.RST, PSH: tcp.PSH, URG: tcp.URG},
			Window:  tcp.Window,
			Payload: tcp.Payload,
		}
	case packet.Layer(layers.LayerTypeUDP) != nil:
		udp, _ := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		out.UDP = &ParsedUDP{SrcPort: uint16(udp.SrcPort), DstPort: uint16(udp.DstPort), Payload: udp.Payload}
	case packet.Layer(layers.LayerTypeICMPv4) != nil:
		icmp, _ := packet.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
		out.ICMPv4 = &ParsedICMPv4{
			Type: icmp.TypeCode.Type(), Code: icmp.TypeCode.Code(),
			ID: icmp.Id, Seq: icmp.Seq, EmbeddedPacket: icmp.Payload,
		}
	case packet.Layer(layers.LayerTypeICMPv6) != nil:
		icmp, _ := packet.Layer(layers.LayerTypeICMPv6).(*layers.ICMPv6)
		out.ICMPv6 = &ParsedICMPv6{
			Type: icmp.TypeCode.Type(), Code: icmp.TypeCode.Code(),
			EmbeddedPacket: icmp.Payload,
		}
		if echo := packet.Layer(layers.LayerTypeICMPv6Echo); echo != nil {
			e, _ := echo.(*layers.ICMPv6Echo)
			out.ICMPv6.ID = e.Identifier
			out.ICMPv6.Seq = e.SeqNumber
		}
	default:
		return nil, &ParseError{Kind: ParseErrUnknownProtocol, Detail: "no recognized transport layer"}
	}

	return out, nil
}
