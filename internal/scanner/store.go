// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package scanner

import (
	"net/netip"
	"sync"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"github.com/reconwire/scancore/internal/scancore"
)

// Store holds one PassiveFingerprint per target address observed during a
// scan's passive capture window. It is safe for concurrent use by the
// capture goroutine that feeds Observe and the result pipeline that reads
// via Enrich.
type Store struct {
	mu   sync.RWMutex
	byIP map[netip.Addr]*PassiveFingerprint
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{byIP: make(map[netip.Addr]*PassiveFingerprint)}
}

func (s *Store) entryFor(addr netip.Addr) *PassiveFingerprint {
	s.mu.RLock()
	fp, ok := s.byIP[addr]
	s.mu.RUnlock()
	if ok {
		return fp
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if fp, ok := s.byIP[addr]; ok {
		return fp
	}
	fp = newPassiveFingerprint(addr)
	s.byIP[addr] = fp
	return fp
}

// Observe decodes one captured frame and folds any DHCP or mDNS signal it
// carries into the originating address's fingerprint. Packets with
// neither layer are ignored. This operates on a full gopacket.Packet
// (rather than internal/packet.ParsedPacket) because decoding DHCP/DNS
// application payloads needs layers the engine's minimal scan-path parser
// deliberately doesn't carry.
func (s *Store) Observe(packet gopacket.Packet) {
	srcIP := sourceAddr(packet)
	if !srcIP.IsValid() {
		return
	}
	fp := s.entryFor(srcIP)

	extractDHCP(packet, fp)
	extractMDNS(packet, fp)
}

func sourceAddr(packet gopacket.Packet) netip.Addr {
	if v4 := packet.Layer(layers.LayerTypeIPv4); v4 != nil {
		if ip, ok := v4.(*layers.IPv4); ok {
			if addr, ok := netip.AddrFromSlice(ip.SrcIP.To4()); ok {
				return addr
			}
		}
	}
	if v6 := packet.Layer(layers.LayerTypeIPv6); v6 != nil {
		if ip, ok := v6.(*layers.IPv6); ok {
			if addr, ok := netip.AddrFromSlice(ip.SrcIP.To16()); ok {
				return addr
			}
		}
	}
	return netip.Addr{}
}

// Enrich looks up addr's accumulated fingerprint, if any, and folds its
// hints into svc. It is a no-op when nothing has been observed for addr.
func (s *Store) Enrich(addr netip.Addr, svc *scancore.ServiceInfo) {
	s.mu.RLock()
	fp, ok := s.byIP[addr]
	s.mu.RUnlock()
	if !ok {
		return
	}
	fp.EnrichService(svc)
}

// Get returns the accumulated fingerprint for addr, if one exists.
func (s *Store) Get(addr netip.Addr) (*PassiveFingerprint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fp, ok := s.byIP[addr]
	return fp, ok
}
