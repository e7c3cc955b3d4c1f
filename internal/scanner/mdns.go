package scanner

import (
	"strings"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// extractMDNS analyzes a packet for mDNS service/instance announcements.
func extractMDNS(packet gopacket.Packet, fp *PassiveFingerprint) {
	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return
	}
	udp, _ := udpLayer.(*layers.UDP)
	if udp.SrcPort != 5353 && udp.DstPort != 5353 {
		return
	}

	dnsLayer := packet.Layer(layers.LayerTypeDNS)
	if dnsLayer == nil {
		return
	}
	dns, _ := dnsLayer.(*layers.DNS)

	extractDNSRecords(dns.Answers, fp)
	extractDNSRecords(dns.Authorities, fp)
	extractDNSRecords(dns.Additionals, fp)
}

func extractDNSRecords(records []layers.DNSResourceRecord, fp *PassiveFingerprint) {
	for _, rr := range records {
		name := string(rr.Name)

		switch rr.Type {
		case layers.DNSTypePTR:
			// A name starting with "_" is a service-type signature (e.g.
			// "_googlecast._tcp.local"), the most useful value for
			// identification; the PTR target is the instance name.
			if strings.HasPrefix(name, "_") {
				fp.addMDNS("", strings.TrimSuffix(name, "."))
			}
		case layers.DNSTypeSRV:
			// SRV owner names are usually the specific instance, e.g.
			// "Living Room TV._googlecast._tcp.local".
			fp.addMDNS(strings.TrimSuffix(name, "."), "")
		}
	}
}
