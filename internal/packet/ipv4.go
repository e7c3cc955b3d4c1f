package packet

import (
	"net"
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// IPv4Params carries the fields callers may override for an emitted IPv4
// header (spec §4.4 ttl_override, §4.1 fragmentation, §7 bad-checksum).
type IPv4Params struct {
	Src, Dst    netip.Addr
	Protocol    layers.IPProtocol
	TTL         uint8
	ID          uint16
	DontFrag    bool
	BadChecksum bool
}

// BuildIPv4 serializes an IPv4 header plus payload into buf, which must
// already contain the encoded transport-layer segment (TCP/UDP/ICMP) when
// checksums are computed against this IP layer by the caller beforehand via
// SerializeLayers; this function is used when the IPv4 header must be
// produced standalone, e.g. for fragmentation reassembly tests.
func BuildIPv4(buf gopacket.SerializeBuffer, p IPv4Params, payload []byte) error {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      p.TTL,
		Id:       p.ID,
		Protocol: p.Protocol,
		SrcIP:    net.IP(p.Src.AsSlice()),
		DstIP:    net.IP(p.Dst.AsSlice()),
	}
	if p.DontFrag {
		ip.Flags = layers.IPv4DontFragment
	}

	opts := DefaultSerializeOptions
	if p.BadChecksum {
		opts = RawSerializeOptions
	}

	return gopacket.SerializeLayers(buf, opts, ip, gopacket.Payload(payload))
}

// FragmentIPv4 splits payload (the IP payload, i.e. everything after the
// IPv4 header) into MTU-aligned fragments per RFC 791, inserting the
// More-Fragments flag and fragment offset on all but the last fragment.
// mtu must be a multiple of 8 (spec §4.1).
func FragmentIPv4(buf *BufferPool, base IPv4Params, payload []byte, mtu int) ([][]byte, error) {
	if mtu <= 0 || mtu%8 != 0 {
		return nil, errInvalidMTU
	}

	opts := DefaultSerializeOptions
	if base.BadChecksum {
		opts = RawSerializeOptions
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

		ip := &layers.IPv4{
			Version:    4,
			IHL:        5,
			TTL:        base.TTL,
			Id:         base.ID,
			Protocol:   base.Protocol,
			SrcIP:      net.IP(base.Src.AsSlice()),
			DstIP:      net.IP(base.Dst.AsSlice()),
			FragOffset: uint16(offset / 8),
		}
		if more {
			ip.Flags = layers.IPv4MoreFragments
		}

		sb := buf.Get()
		if err := gopacket.SerializeLayers(sb, opts, ip, gopacket.Payload(chunk)); err != nil {
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
