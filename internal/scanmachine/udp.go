package scanmachine

import (
	"net"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv6"
	"github.com/miekg/dns"

	"github.com/reconwire/scancore/internal/correlator"
	"github.com/reconwire/scancore/internal/scanconfig"
	"github.com/reconwire/scancore/internal/scancore"
)

// udpMachine implements UDP scanning (spec §4.4 row 3): any UDP reply
// means Open, an ICMP port-unreachable (type 3 code 3) or ICMPv6
// port-unreachable (type 1 code 4) means Closed, silence means
// OpenFiltered (the classic UDP scan ambiguity — a dropped probe and a
// listening-but-silent service are indistinguishable without a reply).
type udpMachine struct{}

func (udpMachine) ScanType() scancore.ScanType { return scancore.ScanUDP }

func (udpMachine) WaitWindow(p scanconfig.TimingProfile) time.Duration {
	return p.InitialRTT * 5
}

func (udpMachine) Interpret(sig correlator.ResponseSignal) scancore.PortState {
	switch {
	case sig.IsICMP && ((sig.ICMPType == 3 && sig.ICMPCode == 3) || (sig.ICMPType == 1 && sig.ICMPCode == 4)):
		return scancore.StateClosed
	case sig.IsUDP:
		return scancore.StateOpen
	default:
		return scancore.StateOpenFiltered
	}
}

func (udpMachine) TimeoutState() scancore.PortState { return scancore.StateOpenFiltered }

// Well-known ports that get a protocol-aware probe payload instead of an
// empty datagram, per spec §4.4: "Protocol-aware payload (DNS, SNMPv2c
// GetRequest, NTP mode 3, mDNS, DHCPv6 SOLICIT, NetBIOS for v4)".
const (
	portDNS     = 53
	portSNMP    = 161
	portNTP     = 123
	portMDNS    = 5353
	portDHCPv6  = 547
	portNetBIOS = 137
)

func (udpMachine) Payload(port uint16) []byte {
	switch port {
	case portDNS:
		return dnsQueryPayload(".", dns.TypeNS)
	case portMDNS:
		return dnsQueryPayload("_services._dns-sd._udp.local.", dns.TypePTR)
	case portSNMP:
		return snmpV2cGetRequestPayload()
	case portNTP:
		return ntpMode3Payload()
	case portDHCPv6:
		return dhcpv6SolicitPayload()
	case portNetBIOS:
		return netbiosStatusQueryPayload()
	default:
		return nil
	}
}

// dnsQueryPayload builds a minimal DNS query using miekg/dns, used
// verbatim for both the standard DNS probe and the mDNS probe (mDNS reuses
// the DNS wire format over port 5353).
func dnsQueryPayload(name string, qtype uint16) []byte {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true
	raw, err := msg.Pack()
	if err != nil {
		return nil
	}
	return raw
}

// dhcpv6SolicitPayload builds a DHCPv6 SOLICIT message using
// insomniacslk/dhcp's dhcpv6 package. The probe carries a synthetic
// locally-administered MAC since no real client hardware is involved.
func dhcpv6SolicitPayload() []byte {
	probeMAC := net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	msg, err := dhcpv6.NewSolicit(probeMAC)
	if err != nil {
		return nil
	}
	return msg.ToBytes()
}

// snmpV2cGetRequestPayload hand-builds a minimal BER-encoded SNMPv2c
// GetRequest for the "public" community querying sysDescr
// (1.3.6.1.2.1.1.1.0). No SNMP client library appears anywhere in the
// example corpus, so this is a deliberate stdlib-only exception
// (documented in DESIGN.md) rather than a dropped dependency.
func snmpV2cGetRequestPayload() []byte {
	community := []byte("public")
	oid := []byte{0x2b, 0x06, 0x01, 0x02, 0x01, 0x01, 0x01, 0x00} // 1.3.6.1.2.1.1.1.0

	varbind := berSeq(0x30, append(berOID(oid), berNull()...))
	varbindList := berSeq(0x30, varbind)
	pdu := berSeq(0xA0, append(berInt(1), append(berInt(0), append(berInt(0), varbindList...)...)...))

	msg := berSeq(0x30, append(berInt(1), append(berOctetString(community), pdu...)...))
	return msg
}

func berLen(n int) []byte {
	if n < 128 {
		return []byte{byte(n)}
	}
	return []byte{0x81, byte(n)}
}

func berSeq(tag byte, content []byte) []byte {
	return append([]byte{tag}, append(berLen(len(content)), content...)...)
}

func berInt(v int) []byte {
	return append([]byte{0x02, 0x01}, byte(v))
}

func berOctetString(v []byte) []byte {
	return append([]byte{0x04}, append(berLen(len(v)), v...)...)
}

func berOID(v []byte) []byte {
	return append([]byte{0x06}, append(berLen(len(v)), v...)...)
}

func berNull() []byte {
	return []byte{0x05, 0x00}
}

// ntpMode3Payload builds the standard 48-byte NTP client request (LI=0,
// VN=3, Mode=3) per RFC 5905. beevik/ntp's exported surface only covers
// full client round-trips, not raw request construction, so the probe
// bytes are built directly from the RFC's fixed layout.
func ntpMode3Payload() []byte {
	req := make([]byte, 48)
	req[0] = 0x1B // LI=0, VN=3, Mode=3 (client)
	return req
}

// netbiosStatusQueryPayload hand-builds a NetBIOS Name Service status
// query (NBSTAT) for the wildcard name, per RFC 1002 §4.2.
func netbiosStatusQueryPayload() []byte {
	payload := make([]byte, 0, 50)
	payload = append(payload, 0x00, 0x00) // transaction ID
	payload = append(payload, 0x00, 0x00) // flags: standard query
	payload = append(payload, 0x00, 0x01) // QDCOUNT=1
	payload = append(payload, 0x00, 0x00) // ANCOUNT
	payload = append(payload, 0x00, 0x00) // NSCOUNT
	payload = append(payload, 0x00, 0x00) // ARCOUNT

	// Encoded NetBIOS wildcard name "*" padded to 16 bytes, first-level
	// encoded per RFC 1001 §14.1.
	encoded := make([]byte, 0, 34)
	encoded = append(encoded, 0x20)
	raw := append([]byte{'*'}, make([]byte, 15)...)
	for _, b := range raw {
		hi := 'A' + (b >> 4)
		lo := 'A' + (b & 0x0F)
		encoded = append(encoded, byte(hi), byte(lo))
	}
	encoded = append(encoded, 0x00)
	payload = append(payload, encoded...)
	payload = append(payload, 0x00, 0x21) // QTYPE=NBSTAT
	payload = append(payload, 0x00, 0x01) // QCLASS=IN
	return payload
}
