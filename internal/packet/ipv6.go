package packet

import (
	"net"
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// IPv6Params carries the fields callers may override for an emitted IPv6
// header.
type IPv6Params struct {
	Src, Dst   netip.Addr
	NextHeader layers.IPProtocol
	HopLimit   uint8
}

// BuildIPv6 serializes an IPv6 header plus payload. Extension headers
// (including a fragmentation header) are handled by FragmentIPv6 for the
// fragmented case; this covers the common unfragmented path.
func BuildIPv6(buf gopacket.SerializeBuffer, p IPv6Params, payload []byte) error {
	ip := &layers.IPv6{
		Version:    6,
		NextHeader: p.NextHeader,
		HopLimit:   p.HopLimit,
		SrcIP:      net.IP(p.Src.AsSlice()),
		DstIP:      net.IP(p.Dst.AsSlice()),
	}
	return gopacket.SerializeLayers(buf, RawSerializeOptions, ip, gopacket.Payload(payload))
}

// FragmentIPv6 splits payload into MTU-aligned fragments and inserts an
// IPv6 Fragment extension header (RFC 8200 §4.5) ahead of each fragment's
// share of payload, chaining NextHeader correctly. mtu must be a multiple
// of 8.
func FragmentIPv6(buf *BufferPool, base IPv6Params, payload []byte, mtu int, identification uint32) ([][]byte, error) {
	if mtu <= 0 || mtu%8 != 0 {
		return nil, errInvalidMTU
	}

	var frags [][]byte
	for offset := 0; offset < len(payload); offset += mtu {
		end := offset + mtu
		more := true
		if end >= len(payload) {
			end = len(payload)
			more = false
		}
		chunk := payload[offset:end]

		fragHeader := make([]byte, 8)
		fragHeader[0] = uint8(base.NextHeader)
		fragHeader[1] = 0 // reserved
		offsetFlags := uint16(offset/8) << 3
		if more {
			offsetFlags |= 1
		}
		fragHeader[2] = byte(offsetFlags >> 8)
		fragHeader[3] = byte(offsetFlags)
		fragHeader[4] = byte(identification >> 24)
		fragHeader[5] = byte(identification >> 16)
		fragHeader[6] = byte(identification >> 8)
		fragHeader[7] = byte(identification)

		ip := &layers.IPv6{
			Version:    6,
			NextHeader: layers.IPProtocolIPv6Fragment,
			HopLimit:   base.HopLimit,
			SrcIP:      net.IP(base.Src.AsSlice()),
			DstIP:      net.IP(base.Dst.AsSlice()),
		}

		sb := buf.Get()
		fullPayload := append(fragHeader, chunk...)
		if err := gopacket.SerializeLayers(sb, RawSerializeOptions, ip, gopacket.Payload(fullPayload)); err != nil {
			buf.Put(sb)
			return nil, err
		}
		out := make([]byte, len(sb.Bytes()))
		copy(out, sb.Bytes())
		buf.Put(sb)
		frags = append(frags, out)
	}
	return frags, nil
}

// SolicitedNodeMulticast computes the IPv6 solicited-node multicast address
// ff02::1:ffXX:XXXX from the low 24 bits of target, per spec §4.1/Glossary.
func SolicitedNodeMulticast(target netip.Addr) netip.Addr {
	t := target.As16()
	var out [16]byte
	out[0], out[1] = 0xff, 0x02
	out[11] = 0x01
	out[12] = 0xff
	out[13] = t[13]
	out[14] = t[14]
	out[15] = t[15]
	addr := netip.AddrFrom16(out)
	return addr
}
