// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package orchestrator

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"github.com/reconwire/scancore/internal/packet"
	"github.com/reconwire/scancore/internal/scanconfig"
	"github.com/reconwire/scancore/internal/scanmachine"
	"github.com/reconwire/scancore/internal/scancore"
)

// defaultTTL is used when ScanConfig.TTLOverride is nil, matching the
// common default most stacks (and most scanners) ship with.
const defaultTTL = 64

// defaultWindow is the TCP window advertised on probes; its exact value
// doesn't affect scan semantics, only an OS-fingerprinting adversary's
// view of the prober, so there's no reason to make it configurable.
const defaultWindow = 64240

// flagsForMachine returns the TCP flag combination a scan type's probe
// carries. Only flagMachine varies this at the value level; the others
// are fixed per scan type.
func flagsForMachine(m scanmachine.Machine) packet.TCPFlags {
	switch m.ScanType() {
	case scancore.ScanSynStealth, scancore.ScanTCPConnect:
		return packet.TCPFlags{SYN: true}
	case scancore.ScanAck:
		return packet.TCPFlags{ACK: true}
	case scancore.ScanFin:
		return packet.TCPFlags{FIN: true}
	case scancore.ScanXmas:
		return packet.TCPFlags{FIN: true, PSH: true, URG: true}
	default: // ScanNull
		return packet.TCPFlags{}
	}
}

// buildProbeFrames constructs the wire bytes for one probe against one
// work item, one frame per entry in the decoy set (spec §4.11: K decoys
// plus the real source, all but the real one carrying spoofed source
// addresses and never registered with the correlator). The returned
// Fingerprint is always the real packet's, the only one Register needs.
func buildProbeFrames(pool *packet.BufferPool, secret scancore.Secret, machine scanmachine.Machine, item workItem, decoys scancore.DecoySet, cfg *scanconfig.ScanConfig) ([][]byte, scancore.Fingerprint, error) {
	if decoys.Len() == 0 {
		decoys = scancore.DecoySet{Addrs: []netip.Addr{item.srcAddr}, MeIndex: 0}
	}

	frames := make([][]byte, 0, decoys.Len())
	var realFP scancore.Fingerprint

	for i, src := range decoys.Addrs {
		fp := secret.NewFingerprint(src, item.srcPort, item.dstAddr, item.dstPort, item.proto)
		frame, err := buildFrame(pool, fp, machine, item, cfg)
		if err != nil {
			return nil, scancore.Fingerprint{}, err
		}
		frames = append(frames, frame...)
		if i == decoys.MeIndex {
			realFP = fp
			switch item.proto {
			case scancore.ProtoUDP:
				// UDP carries no field the probe's token can ride in, so a
				// reply can't quote it back. Register and resolve under a
				// fixed zero token and correlate on the address/port tuple
				// alone, matching extractUDPSignal and
				// fingerprintFromEmbedded on the receive side.
				realFP.Token = 0
			case scancore.ProtoICMP, scancore.ProtoICMPv6:
				// ICMP has no ports; an echo reply carries id/seq in place
				// of a token and no ports at all (see extractICMPv4Signal),
				// so the bookkeeping source port picked for this probe
				// can't be part of the lookup key either.
				realFP.SrcPort = 0
				realFP.DstPort = 0
				if item.proto == scancore.ProtoICMPv6 && machine.ScanType() == scancore.ScanDiscovery {
					// A Neighbor Solicitation carries no id/seq the reply
					// can echo back (a Neighbor Advertisement answers with
					// neither), so this probe correlates on the address
					// pair alone, same convention as a UDP probe.
					realFP.Token = 0
				}
			}
		}
	}
	return frames, realFP, nil
}

// workItem is the resolved per-probe addressing the send loop derives
// from a scheduler.WorkItem plus the chosen local source port.
type workItem struct {
	srcAddr netip.Addr
	srcPort uint16
	dstAddr netip.Addr
	dstPort uint16
	proto   scancore.Protocol
}

func buildFrame(pool *packet.BufferPool, fp scancore.Fingerprint, machine scanmachine.Machine, item workItem, cfg *scanconfig.ScanConfig) ([][]byte, error) {
	ttl := uint8(defaultTTL)
	if cfg.TTLOverride != nil {
		ttl = *cfg.TTLOverride
	}
	badChecksum := cfg.BadChecksumMode == scanconfig.ChecksumZero

	switch item.proto {
	case scancore.ProtoTCP:
		return buildTCPFrame(pool, fp, machine, ttl, badChecksum, cfg)
	case scancore.ProtoUDP:
		return buildUDPFrame(pool, fp, machine, ttl, badChecksum, cfg)
	case scancore.ProtoICMP, scancore.ProtoICMPv6:
		return buildICMPFrame(pool, machine, fp, ttl, badChecksum)
	default:
		return nil, fmt.Errorf("orchestrator: unhandled protocol %s", item.proto)
	}
}

func buildTCPFrame(pool *packet.BufferPool, fp scancore.Fingerprint, machine scanmachine.Machine, ttl uint8, badChecksum bool, cfg *scanconfig.ScanConfig) ([][]byte, error) {
	tcpParams := packet.TCPParams{
		SrcPort:     fp.SrcPort,
		DstPort:     fp.DstPort,
		Seq:         fp.Token,
		Flags:       flagsForMachine(machine),
		Window:      defaultWindow,
		BadChecksum: badChecksum,
	}

	if fp.SrcAddr.Is4() {
		ipParams := packet.IPv4Params{Src: fp.SrcAddr, Dst: fp.DstAddr, Protocol: layers.IPProtocolTCP, TTL: ttl, BadChecksum: badChecksum}
		if cfg.Fragmentation.Enabled {
			return fragmentTCPv4(pool, ipParams, tcpParams, cfg.Fragmentation.MTUBytes)
		}
		buf := pool.Get()
		if err := packet.BuildTCPv4(buf, ipParams, tcpParams, nil); err != nil {
			return nil, err
		}
		return [][]byte{cloneBuf(buf)}, nil
	}

	ipParams := packet.IPv6Params{Src: fp.SrcAddr, Dst: fp.DstAddr, NextHeader: layers.IPProtocolTCP, HopLimit: ttl}
	buf := pool.Get()
	if err := packet.BuildTCPv6(buf, ipParams, tcpParams, nil); err != nil {
		return nil, err
	}
	return [][]byte{cloneBuf(buf)}, nil
}

func buildUDPFrame(pool *packet.BufferPool, fp scancore.Fingerprint, machine scanmachine.Machine, ttl uint8, badChecksum bool, cfg *scanconfig.ScanConfig) ([][]byte, error) {
	payload := machine.Payload(fp.DstPort)
	udpParams := packet.UDPParams{SrcPort: fp.SrcPort, DstPort: fp.DstPort, BadChecksum: badChecksum}

	if fp.SrcAddr.Is4() {
		ipParams := packet.IPv4Params{Src: fp.SrcAddr, Dst: fp.DstAddr, Protocol: layers.IPProtocolUDP, TTL: ttl, BadChecksum: badChecksum}
		if cfg.Fragmentation.Enabled {
			return fragmentUDPv4(pool, ipParams, udpParams, payload, cfg.Fragmentation.MTUBytes)
		}
		buf := pool.Get()
		if err := packet.BuildUDPv4(buf, ipParams, udpParams, payload); err != nil {
			return nil, err
		}
		return [][]byte{cloneBuf(buf)}, nil
	}

	ipParams := packet.IPv6Params{Src: fp.SrcAddr, Dst: fp.DstAddr, NextHeader: layers.IPProtocolUDP, HopLimit: ttl}
	buf := pool.Get()
	if err := packet.BuildUDPv6(buf, ipParams, udpParams, payload); err != nil {
		return nil, err
	}
	return [][]byte{cloneBuf(buf)}, nil
}

func buildICMPFrame(pool *packet.BufferPool, machine scanmachine.Machine, fp scancore.Fingerprint, ttl uint8, badChecksum bool) ([][]byte, error) {
	id := uint16(fp.Token >> 16)
	seq := uint16(fp.Token)

	if fp.SrcAddr.Is4() {
		ipParams := packet.IPv4Params{Src: fp.SrcAddr, Dst: fp.DstAddr, Protocol: layers.IPProtocolICMPv4, TTL: ttl, BadChecksum: badChecksum}
		buf := pool.Get()
		if err := packet.BuildICMPv4Echo(buf, ipParams, packet.ICMPv4Params{Type: 8, Code: 0, ID: id, Seq: seq}, nil); err != nil {
			return nil, err
		}
		return [][]byte{cloneBuf(buf)}, nil
	}

	ipParams := packet.IPv6Params{Src: fp.SrcAddr, Dst: fp.DstAddr, NextHeader: layers.IPProtocolICMPv6, HopLimit: ttl}
	buf := pool.Get()

	if machine.ScanType() == scancore.ScanDiscovery {
		if err := packet.BuildNDPNeighborSolicitation(buf, ipParams, fp.DstAddr); err != nil {
			return nil, err
		}
		return [][]byte{cloneBuf(buf)}, nil
	}

	if err := packet.BuildICMPv6Echo(buf, ipParams, packet.ICMPv6Params{Type: 128, Code: 0, ID: id, Seq: seq}, nil); err != nil {
		return nil, err
	}
	return [][]byte{cloneBuf(buf)}, nil
}

// fragmentTCPv4 serializes the TCP segment alone (checksum computed
// against the IPv4 pseudo-header via SetNetworkLayerForChecksum, without
// the IP layer itself in this buffer), then splits it across MTU-sized
// IPv4 fragments (spec §4.1).
func fragmentTCPv4(pool *packet.BufferPool, ipParams packet.IPv4Params, tcpParams packet.TCPParams, mtu int) ([][]byte, error) {
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(tcpParams.SrcPort), DstPort: layers.TCPPort(tcpParams.DstPort),
		Seq: tcpParams.Seq, Ack: tcpParams.Ack,
		SYN: tcpParams.Flags.SYN, ACK: tcpParams.Flags.ACK, FIN: tcpParams.Flags.FIN,
		RST: tcpParams.Flags.RST, PSH: tcpParams.Flags.PSH, URG: tcpParams.Flags.URG,
		Window: tcpParams.Window,
	}
	ip := &layers.IPv4{Version: 4, IHL: 5, Protocol: layers.IPProtocolTCP,
		SrcIP: net.IP(ipParams.Src.AsSlice()), DstIP: net.IP(ipParams.Dst.AsSlice())}
	_ = tcp.SetNetworkLayerForChecksum(ip)

	segBuf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(segBuf, packet.DefaultSerializeOptions, tcp); err != nil {
		return nil, err
	}
	return packet.FragmentIPv4(pool, ipParams, segBuf.Bytes(), mtu)
}

func fragmentUDPv4(pool *packet.BufferPool, ipParams packet.IPv4Params, udpParams packet.UDPParams, payload []byte, mtu int) ([][]byte, error) {
	udp := &layers.UDP{SrcPort: layers.UDPPort(udpParams.SrcPort), DstPort: layers.UDPPort(udpParams.DstPort)}
	ip := &layers.IPv4{Version: 4, IHL: 5, Protocol: layers.IPProtocolUDP,
		SrcIP: net.IP(ipParams.Src.AsSlice()), DstIP: net.IP(ipParams.Dst.AsSlice())}
	_ = udp.SetNetworkLayerForChecksum(ip)

	segBuf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(segBuf, packet.DefaultSerializeOptions, udp, gopacket.Payload(payload)); err != nil {
		return nil, err
	}
	return packet.FragmentIPv4(pool, ipParams, segBuf.Bytes(), mtu)
}

func cloneBuf(buf gopacket.SerializeBuffer) []byte {
	b := buf.Bytes()
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
