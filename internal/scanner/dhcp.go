package scanner

import (
	"encoding/hex"
	"fmt"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/insomniacslk/dhcp/dhcpv6"
)

// extractDHCP analyzes a packet for DHCPv4/v6 fingerprints.
func extractDHCP(packet gopacket.Packet, fp *PassiveFingerprint) {
	if layer := packet.Layer(layers.LayerTypeDHCPv4); layer != nil {
		if udpLayer := packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
			udp, _ := udpLayer.(*layers.UDP)

			msg, err := dhcpv4.FromBytes(udp.Payload)
			if err == nil && msg.MessageType() == dhcpv4.MessageTypeRequest {
				if prl := msg.ParameterRequestList(); prl != nil {
					bytes := make([]byte, len(prl))
					for i, b := range prl {
						bytes[i] = b.Code()
					}
					fp.mu.Lock()
					fp.DHCPv4Params = hex.EncodeToString(bytes)
					fp.mu.Unlock()
				}

				if vci := msg.ClassIdentifier(); vci != "" {
					fp.mu.Lock()
					fp.DHCPv4Vendor = vci
					fp.mu.Unlock()
				}
			}
		}
		return
	}

	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return
	}
	udp, _ := udpLayer.(*layers.UDP)
	srcPort := int(udp.SrcPort)
	dstPort := int(udp.DstPort)
	if !((srcPort == 546 && dstPort == 547) || (srcPort == 547 && dstPort == 546)) {
		return
	}

	msg, err := dhcpv6.FromBytes(udp.Payload)
	if err != nil {
		return
	}
	if msg.Type() != dhcpv6.MessageTypeSolicit && msg.Type() != dhcpv6.MessageTypeRequest {
		return
	}

	if oro := msg.GetOneOption(dhcpv6.OptionORO); oro != nil {
		fp.mu.Lock()
		fp.DHCPv6Options = hex.EncodeToString(oro.ToBytes())
		fp.mu.Unlock()
	}
	if vc := msg.GetOneOption(dhcpv6.OptionVendorClass); vc != nil {
		fp.mu.Lock()
		fp.DHCPv6Vendor = fmt.Sprintf("%x", vc.ToBytes())
		fp.mu.Unlock()
	}
}
