package scancore

import (
	"fmt"
	"sort"
)

// PortSpec is an ordered, deduplicated set of (port, protocol) pairs built
// from ranges, unions, and exclusions. Per spec §3 there are never two
// entries with the same (port, protocol) pair in a single scan.
type PortSpec struct {
	entries map[PortProto]struct{}
	order   []PortProto
}

// NewPortSpec returns an empty port specification.
func NewPortSpec() *PortSpec {
	return &PortSpec{entries: make(map[PortProto]struct{})}
}

// AddRange inserts every port in [lo, hi] (inclusive) for the given
// protocol, ignoring ports already present for that protocol.
func (p *PortSpec) AddRange(lo, hi uint16, proto Protocol) error {
	if lo > hi {
		return fmt.Errorf("invalid port range %d-%d", lo, hi)
	}
	for port := uint32(lo); port <= uint32(hi); port++ {
		pp := PortProto{Port: uint16(port), Protocol: proto}
		if _, exists := p.entries[pp]; !exists {
			p.entries[pp] = struct{}{}
			p.order = append(p.order, pp)
		}
	}
	return nil
}

// Add inserts a single port for the given protocol.
func (p *PortSpec) Add(port uint16, proto Protocol) {
	pp := PortProto{Port: port, Protocol: proto}
	if _, exists := p.entries[pp]; !exists {
		p.entries[pp] = struct{}{}
		p.order = append(p.order, pp)
	}
}

// Exclude removes a port/protocol pair if present.
func (p *PortSpec) Exclude(port uint16, proto Protocol) {
	pp := PortProto{Port: port, Protocol: proto}
	if _, exists := p.entries[pp]; exists {
		delete(p.entries, pp)
		for i, e := range p.order {
			if e == pp {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
	}
}

// Union merges another PortSpec's entries into p, preserving p's existing
// order and appending new entries from other in other's order.
func (p *PortSpec) Union(other *PortSpec) {
	for _, pp := range other.order {
		if _, exists := p.entries[pp]; !exists {
			p.entries[pp] = struct{}{}
			p.order = append(p.order, pp)
		}
	}
}

// Len returns the number of distinct (port, protocol) pairs.
func (p *PortSpec) Len() int { return len(p.order) }

// Contains reports whether port/proto is present in the spec.
func (p *PortSpec) Contains(port uint16, proto Protocol) bool {
	_, ok := p.entries[PortProto{Port: port, Protocol: proto}]
	return ok
}

// Ports returns the entries in insertion order. The returned slice must not
// be mutated by callers.
func (p *PortSpec) Ports() []PortProto { return p.order }

// Sorted returns a new slice of entries sorted by protocol then port,
// useful for deterministic test assertions and BPF filter construction.
func (p *PortSpec) Sorted() []PortProto {
	out := make([]PortProto, len(p.order))
	copy(out, p.order)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Protocol != out[j].Protocol {
			return out[i].Protocol < out[j].Protocol
		}
		return out[i].Port < out[j].Port
	})
	return out
}
