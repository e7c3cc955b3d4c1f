// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package orchestrator

import (
	"context"
	"crypto/tls"
	"net"
	"net/netip"
	"time"

	"github.com/reconwire/scancore/internal/eventbus"
	"github.com/reconwire/scancore/internal/osid"
	"github.com/reconwire/scancore/internal/pluginhost"
	"github.com/reconwire/scancore/internal/scancore"
	"github.com/reconwire/scancore/internal/scanconfig"
	"github.com/reconwire/scancore/internal/scanner"
	"github.com/reconwire/scancore/internal/serviceid"
	"github.com/reconwire/scancore/internal/tlsinfo"
)

// probeReadTimeout bounds one service-probe round-trip: connect, write the
// probe payload (if any), read a response window (spec §4.8 step 3: "4 KiB,
// 6 s"). It runs synchronously on the aggregator's committer goroutine
// (finalizeResult is called from the result sink), so it must stay short
// relative to the scan's own probe timeouts.
const probeReadTimeout = 6 * time.Second

// probeReadWindow is the bounded read size from spec §4.8 step 3.
const probeReadWindow = 4096

// tlsHandshakeTimeout bounds the TLS handshake spec §4.9 performs against
// HTTPS-family ports, independent of the plaintext probe battery's timeout.
const tlsHandshakeTimeout = 6 * time.Second

// finalizeResult fills in Service/OS on an open TCP result, in order:
// active service-probe battery (plugin host detection scripts first, then
// built-in banner matching) when service detection is enabled, then a TLS
// handshake on HTTPS-family ports, then passive DHCP/mDNS hints filling
// whatever is still empty. A SynStealth (or any raw) scan never completes
// a handshake on its own, so none of this runs unless service detection is
// explicitly turned on — running it unconditionally would silently upgrade
// every stealth scan into a full-connect one.
func finalizeResult(r *scancore.ScanResult, svcCfg scanconfig.ServiceDetectionConfig, tlsAnalysis bool, plugins *pluginhost.Host, passive *scanner.Store) {
	if r.State != scancore.StateOpen || r.Protocol != scancore.ProtoTCP {
		return
	}

	var svc scancore.ServiceInfo
	var haveSvc bool

	if svcCfg.Enabled && probeEligible(svcCfg, r.Port) {
		svc, haveSvc = runServiceProbes(r.Target.Addr, r.Port, svcCfg.Intensity, plugins)

		if tlsAnalysis && serviceid.IsHTTPSFamily(r.Port) {
			if chain, fp, err := grabTLS(r.Target.Addr, r.Port, tlsHandshakeTimeout); err == nil {
				svc.TLSCertificate = chain
				svc.TLSFingerprint = fp
				haveSvc = true
			}
		}
	}

	if passive != nil {
		passive.Enrich(r.Target.Addr, &svc)
		haveSvc = haveSvc || svc.ServiceName != "" || svc.OSHint != "" || svc.Banner != ""
	}

	if haveSvc {
		r.Service = &svc
	}
}

// probeEligible reports whether port should receive the active probe
// battery: every open port when ProbePorts is unset, otherwise only ports
// named in it (spec §3's optional service_detection.probe_ports narrowing
// the intensity battery to a subset of open ports).
func probeEligible(svcCfg scanconfig.ServiceDetectionConfig, port uint16) bool {
	if svcCfg.ProbePorts == nil || svcCfg.ProbePorts.Len() == 0 {
		return true
	}
	return svcCfg.ProbePorts.Contains(port, scancore.ProtoTCP)
}

// runServiceProbes drives spec §4.8 steps 2-4: the rarity/intensity-ordered
// probe sequence, stopping at the first probe whose response matches the
// compiled match-set. A probe that fails or reads nothing back is skipped;
// if every probe in the sequence goes unmatched, the first non-empty
// response is returned as an unmatched fallback banner.
func runServiceProbes(addr netip.Addr, port uint16, intensity int, plugins *pluginhost.Host) (scancore.ServiceInfo, bool) {
	var fallback []byte

	for _, probe := range serviceid.SelectProbes(port, intensity) {
		banner, err := runProbe(addr, port, probe.Payload, probeReadTimeout)
		if err != nil || len(banner) == 0 {
			continue
		}
		if fallback == nil {
			fallback = banner
		}
		if svc, ok := identifyBanner(banner, plugins, addr, port); ok {
			return svc, true
		}
	}

	if fallback != nil {
		return scancore.ServiceInfo{Banner: string(fallback)}, true
	}
	return scancore.ServiceInfo{}, false
}

// identifyBanner tries the plugin host first (spec §4.13: detection
// scripts can override or augment the built-in signature match), falling
// back to the compiled-in matcher.
func identifyBanner(banner []byte, plugins *pluginhost.Host, target netip.Addr, port uint16) (scancore.ServiceInfo, bool) {
	if plugins != nil {
		for _, name := range plugins.Names() {
			info, ok, err := plugins.AnalyzeBanner(context.Background(), name, target.String(), port, banner)
			if err == nil && ok {
				return info, true
			}
		}
	}

	if info, ok := serviceid.Identify(banner); ok {
		return info.ToScanCore(), true
	}
	return scancore.ServiceInfo{}, false
}

// runProbe opens a fresh TCP connection, writes payload when non-nil (a nil
// payload is serviceid's NULL probe: connect and read whatever arrives
// unprompted), and reads a bounded response window. This is a real
// connect(), distinct from the raw SYN probe that discovered the port
// open, since reading application data needs a completed handshake the
// stealth scan types deliberately never finish.
func runProbe(addr netip.Addr, port uint16, payload []byte, timeout time.Duration) ([]byte, error) {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(addr.String(), portString(port)), timeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(timeout))
	if len(payload) > 0 {
		if _, err := conn.Write(payload); err != nil {
			return nil, err
		}
	}

	buf := make([]byte, probeReadWindow)
	n, err := conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	return nil, err
}

// grabTLS performs the spec §4.9 handshake: dial, complete just far enough
// to observe the peer's certificate chain and negotiated parameters, then
// hand off to tlsinfo for parsing. InsecureSkipVerify is required here —
// the core never validates signatures or trust roots (spec §1 non-goal);
// it only reports what the peer presented. No SNI hostname is set since
// this engine scans by address, not by name.
func grabTLS(addr netip.Addr, port uint16, timeout time.Duration) (*scancore.CertificateChain, *scancore.TLSFingerprint, error) {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(addr.String(), portString(port)), timeout)
	if err != nil {
		return nil, nil, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	tlsConn := tls.Client(conn, &tls.Config{InsecureSkipVerify: true})
	if err := tlsConn.HandshakeContext(context.Background()); err != nil {
		return nil, nil, err
	}
	defer tlsConn.Close()

	state := tlsConn.ConnectionState()
	chain := tlsinfo.BuildChain(state.PeerCertificates)
	fp := &scancore.TLSFingerprint{
		Version:     state.Version,
		CipherSuite: state.CipherSuite,
		ALPN:        state.NegotiatedProtocol,
	}
	fp.SecurityWarnings = tlsinfo.RateSecurity(chain.Leaf, fp)
	return &chain, fp, nil
}

func portString(port uint16) string {
	const digits = "0123456789"
	if port == 0 {
		return "0"
	}
	var b [5]byte
	i := len(b)
	for port > 0 {
		i--
		b[i] = digits[port%10]
		port /= 10
	}
	return string(b[i:])
}

// estimateOS applies a best-effort OS guess from the single SYN-ACK window
// size the main scan battery already observed. This is a coarse
// approximation of spec §4.8's full 16-probe active battery: ParsedPacket
// doesn't currently surface IP TTL, ECN-echo, or timestamp-option
// presence, so only the window-size dimension of osid.Score can be
// populated here. A full battery needs internal/packet to carry those
// fields through to the correlator, which is out of scope for this pass.
// Called from the receive loop for open ports when OS detection is
// enabled, with the window observed on that port's SYN-ACK.
func estimateOS(window uint16) (scancore.OSInfo, bool) {
	if window == 0 {
		return scancore.OSInfo{}, false
	}
	features := osid.Features{WindowSizes: map[osid.ProbeKind]uint16{osid.ProbeSEQ1: window}}
	return osid.Match(features, osid.DefaultSignatures)
}

// publishResultEvents emits the discovery/detection events spec §4.12
// describes for a committed result.
func publishResultEvents(bus *eventbus.Bus, scanID string, r scancore.ScanResult) {
	if r.State == scancore.StateOpen {
		bus.Publish(eventbus.NewEvent(eventbus.TypePortDiscovered, scanID, r, time.Now()))
	}
	if r.Service != nil && r.Service.ServiceName != "" {
		bus.Publish(eventbus.NewEvent(eventbus.TypeServiceDetected, scanID, r, time.Now()))
	}
	if r.OS != nil {
		bus.Publish(eventbus.NewEvent(eventbus.TypeOSDetected, scanID, r, time.Now()))
	}
}
