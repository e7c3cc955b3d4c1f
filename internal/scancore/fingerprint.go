package scancore

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"net/netip"
)

// Fingerprint uniquely identifies an outstanding probe within a 60-second
// window (spec §3). The Token is a 32-bit value derived from a scan-local
// secret keyed hash of the tuple; it doubles as the TCP ISN or UDP payload
// cookie so replies carry it back.
type Fingerprint struct {
	SrcAddr  netip.Addr
	SrcPort  uint16
	DstAddr  netip.Addr
	DstPort  uint16
	Protocol Protocol
	Token    uint32
}

// Secret is the scan-local keyed-hash secret used to derive Fingerprint
// tokens. Each Scan generates one at start-up (see orchestrator).
type Secret [32]byte

// DeriveToken computes the 32-bit token for a (src, sport, dst, dport,
// proto) tuple using an HMAC-SHA256 keyed on the scan secret, truncated to
// 32 bits. Using a keyed hash rather than a counter prevents an observer
// from predicting the sequence, matching the "scan-local secret keyed hash"
// requirement in spec §3.
func (s Secret) DeriveToken(src netip.Addr, sport uint16, dst netip.Addr, dport uint16, proto Protocol) uint32 {
	mac := hmac.New(sha256.New, s[:])
	var portBuf [4]byte
	binary.BigEndian.PutUint16(portBuf[0:2], sport)
	binary.BigEndian.PutUint16(portBuf[2:4], dport)
	srcBytes := src.As16()
	dstBytes := dst.As16()
	mac.Write(srcBytes[:])
	mac.Write(dstBytes[:])
	mac.Write(portBuf[:])
	mac.Write([]byte{byte(proto)})
	sum := mac.Sum(nil)
	return binary.BigEndian.Uint32(sum[:4])
}

// NewFingerprint builds a Fingerprint and its derived token for a probe
// about to be transmitted.
func (s Secret) NewFingerprint(src netip.Addr, sport uint16, dst netip.Addr, dport uint16, proto Protocol) Fingerprint {
	return Fingerprint{
		SrcAddr:  src,
		SrcPort:  sport,
		DstAddr:  dst,
		DstPort:  dport,
		Protocol: proto,
		Token:    s.DeriveToken(src, sport, dst, dport, proto),
	}
}

// Reversed returns the Fingerprint as seen from the other side of the wire:
// a response arrives with source and destination swapped relative to the
// original probe, which the correlator uses to look up the PendingProbe.
func (f Fingerprint) Reversed() Fingerprint {
	return Fingerprint{
		SrcAddr:  f.DstAddr,
		SrcPort:  f.DstPort,
		DstAddr:  f.SrcAddr,
		DstPort:  f.SrcPort,
		Protocol: f.Protocol,
		Token:    f.Token,
	}
}
