// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package orchestrator

import (
	"github.com/reconwire/scancore/internal/correlator"
	"github.com/reconwire/scancore/internal/packet"
	"github.com/reconwire/scancore/internal/scancore"
)

// icmpEchoToken packs an ICMP echo's 16-bit identifier and sequence number
// into the lower 32 bits of a Fingerprint.Token, since ICMP carries no
// source/destination port to fold into the HMAC the way TCP/UDP do. frame.go
// unpacks it the same way when building the outbound echo request.
func icmpEchoToken(id, seq uint16) uint32 {
	return uint32(id)<<16 | uint32(seq)
}

// extractSignal converts an inbound parsed packet into the ResponseSignal
// and the Fingerprint of the originating probe (in the orientation Register
// stored it under), per spec §4.7 steps 1-2. ok is false for packets that
// can't be correlated to any outstanding probe shape this engine emits
// (e.g. unrelated traffic sharing the capture filter).
func extractSignal(pp *packet.ParsedPacket) (scancore.Fingerprint, correlator.ResponseSignal, bool) {
	switch {
	case pp.TCP != nil:
		return extractTCPSignal(pp)
	case pp.UDP != nil:
		return extractUDPSignal(pp)
	case pp.ICMPv4 != nil:
		return extractICMPv4Signal(pp)
	case pp.ICMPv6 != nil:
		return extractICMPv6Signal(pp)
	default:
		return scancore.Fingerprint{}, correlator.ResponseSignal{}, false
	}
}

// extractTCPSignal reconstructs the probe's token from the response's
// acknowledgment number: the engine sets the outbound SYN's ISN to the
// Fingerprint token, so a SYN-ACK or RST+ACK carries Token+1 in Ack.
func extractTCPSignal(pp *packet.ParsedPacket) (scancore.Fingerprint, correlator.ResponseSignal, bool) {
	t := pp.TCP
	inbound := scancore.Fingerprint{
		SrcAddr:  pp.SrcIP,
		SrcPort:  t.SrcPort,
		DstAddr:  pp.DstIP,
		DstPort:  t.DstPort,
		Protocol: scancore.ProtoTCP,
		Token:    t.Ack - 1,
	}
	sig := correlator.ResponseSignal{
		TCPFlagsSYN: t.Flags.SYN,
		TCPFlagsACK: t.Flags.ACK,
		TCPFlagsRST: t.Flags.RST,
		TCPFlagsFIN: t.Flags.FIN,
		TCPWindow:   t.Window,
	}
	return inbound.Reversed(), sig, true
}

// extractUDPSignal handles a direct UDP reply. UDP carries no cookie the
// engine can verify, so every UDP probe this engine sends is registered
// with Token 0 and matched on address/port alone (see frame.go).
func extractUDPSignal(pp *packet.ParsedPacket) (scancore.Fingerprint, correlator.ResponseSignal, bool) {
	u := pp.UDP
	inbound := scancore.Fingerprint{
		SrcAddr:  pp.SrcIP,
		SrcPort:  u.SrcPort,
		DstAddr:  pp.DstIP,
		DstPort:  u.DstPort,
		Protocol: scancore.ProtoUDP,
		Token:    0,
	}
	return inbound.Reversed(), correlator.ResponseSignal{IsUDP: true}, true
}

// extractICMPv4Signal handles both an Echo Reply to a discovery probe and a
// Destination Unreachable carrying an embedded copy of the original UDP or
// TCP probe (spec §4.4 row 3, "closed" UDP ports answer with ICMP type 3
// code 3).
func extractICMPv4Signal(pp *packet.ParsedPacket) (scancore.Fingerprint, correlator.ResponseSignal, bool) {
	icmp := pp.ICMPv4
	sig := correlator.ResponseSignal{IsICMP: true, ICMPType: icmp.Type, ICMPCode: icmp.Code}

	if icmp.Type == 0 { // Echo Reply
		inbound := scancore.Fingerprint{
			SrcAddr:  pp.SrcIP,
			DstAddr:  pp.DstIP,
			Protocol: scancore.ProtoICMP,
			Token:    icmpEchoToken(icmp.ID, icmp.Seq),
		}
		return inbound.Reversed(), sig, true
	}

	if fp, ok := fingerprintFromEmbedded(icmp.EmbeddedPacket); ok {
		return fp, sig, true
	}
	return scancore.Fingerprint{}, sig, false
}

func extractICMPv6Signal(pp *packet.ParsedPacket) (scancore.Fingerprint, correlator.ResponseSignal, bool) {
	icmp := pp.ICMPv6
	sig := correlator.ResponseSignal{IsICMP: true, ICMPType: icmp.Type, ICMPCode: icmp.Code}

	if icmp.Type == 129 { // Echo Reply
		inbound := scancore.Fingerprint{
			SrcAddr:  pp.SrcIP,
			DstAddr:  pp.DstIP,
			Protocol: scancore.ProtoICMPv6,
			Token:    icmpEchoToken(icmp.ID, icmp.Seq),
		}
		return inbound.Reversed(), sig, true
	}

	if icmp.Type == 136 { // Neighbor Advertisement, in answer to a discovery Neighbor Solicitation
		inbound := scancore.Fingerprint{
			SrcAddr:  pp.SrcIP,
			DstAddr:  pp.DstIP,
			Protocol: scancore.ProtoICMPv6,
			Token:    0,
		}
		return inbound.Reversed(), sig, true
	}

	if fp, ok := fingerprintFromEmbedded(icmp.EmbeddedPacket); ok {
		return fp, sig, true
	}
	return scancore.Fingerprint{}, sig, false
}

// fingerprintFromEmbedded re-parses the original IP datagram an ICMP error
// quotes back (RFC 792/4443) to recover the probe it was sent for. The
// re-decoded packet is already in the original probe's own orientation (we
// are its source), so no Reversed() is needed.
func fingerprintFromEmbedded(embedded []byte) (scancore.Fingerprint, bool) {
	inner, err := packet.Parse(embedded)
	if err != nil {
		return scancore.Fingerprint{}, false
	}
	switch {
	case inner.UDP != nil:
		return scancore.Fingerprint{
			SrcAddr:  inner.SrcIP,
			SrcPort:  inner.UDP.SrcPort,
			DstAddr:  inner.DstIP,
			DstPort:  inner.UDP.DstPort,
			Protocol: scancore.ProtoUDP,
			Token:    0,
		}, true
	case inner.TCP != nil:
		return scancore.Fingerprint{
			SrcAddr:  inner.SrcIP,
			SrcPort:  inner.TCP.SrcPort,
			DstAddr:  inner.DstIP,
			DstPort:  inner.TCP.DstPort,
			Protocol: scancore.ProtoTCP,
			Token:    inner.TCP.Seq,
		}, true
	default:
		return scancore.Fingerprint{}, false
	}
}
