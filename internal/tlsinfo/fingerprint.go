package tlsinfo

import (
	"github.com/dreadl0ck/ja3"
	"github.com/dreadl0ck/tlsx"
	"github.com/gopacket/gopacket"

	"github.com/reconwire/scancore/internal/scancore"
)

// ExtractFingerprint parses the ClientHello/ServerHello from a captured
// handshake packet into a TLSFingerprint (spec §3/§4.9): selected version,
// cipher suite, extension id list, ALPN, plus a JA3 hash when the packet
// carries a ClientHello. This mirrors the teacher's own
// internal/scanner.ExtractTLS, generalized from passive device
// fingerprinting to active per-connection TLS analysis.
func ExtractFingerprint(packet gopacket.Packet) (*scancore.TLSFingerprint, bool) {
	var hello tlsx.ClientHello
	if err := hello.Unmarshal(packet.TransportLayer().LayerPayload()); err == nil {
		fp := &scancore.TLSFingerprint{
			Version: hello.Version,
			ALPN:    hello.AlpnProtocol,
		}
		for _, ext := range hello.AllExtensions {
			fp.ExtensionIDs = append(fp.ExtensionIDs, ext)
		}
		if len(hello.CipherSuites) > 0 {
			fp.CipherSuite = hello.CipherSuites[0]
		}

		digest := ja3.DigestHexPacket(packet)
		if digest != "" {
			fp.JA3Hash = digest
		}
		return fp, true
	}

	var server tlsx.ServerHello
	if err := server.Unmarshal(packet.TransportLayer().LayerPayload()); err == nil {
		fp := &scancore.TLSFingerprint{
			Version:     server.Version,
			CipherSuite: server.CipherSuite,
			ALPN:        server.AlpnProtocol,
		}
		for _, ext := range server.AllExtensions {
			fp.ExtensionIDs = append(fp.ExtensionIDs, ext)
		}
		return fp, true
	}

	return nil, false
}
