// Package packet implements the wire-format byte layer: construction and
// parsing of IPv4, IPv6, TCP, UDP, ICMP, and ICMPv6 packets with
// family-correct checksums. Building is done through gopacket's layer
// serializer (the same approach used across the example corpus for
// constructing raw frames), which keeps pseudo-header handling and length
// fix-ups in one well-tested place rather than hand-rolled per protocol.
package packet

import (
	"sync"

	"github.com/gopacket/gopacket"
)

// BufferPool hands out zero-copy gopacket.SerializeBuffer instances sized
// for one MTU-sized packet. Buffers are exclusively owned by whichever
// worker checked them out (spec §5 "exclusive-per-worker"); Put returns a
// cleared buffer to the pool for reuse.
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a pool of MTU-sized serialize buffers.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				return gopacket.NewSerializeBufferExpectedSize(64, 1500)
			},
		},
	}
}

// Get checks out a cleared buffer.
func (p *BufferPool) Get() gopacket.SerializeBuffer {
	buf := p.pool.Get().(gopacket.SerializeBuffer)
	_ = buf.Clear()
	return buf
}

// Put returns a buffer to the pool. Callers must not use buf after Put.
func (p *BufferPool) Put(buf gopacket.SerializeBuffer) {
	p.pool.Put(buf)
}

// DefaultSerializeOptions fixes lengths and computes checksums against the
// layer's pseudo-header, the behavior spec §4.1 requires for every family.
var DefaultSerializeOptions = gopacket.SerializeOptions{
	FixLengths:       true,
	ComputeChecksums: true,
}

// RawSerializeOptions disables checksum computation, used for the
// operator-requested "deliberately zero checksum" IDS conformance mode
// (spec §4.1, §7 "--badsum").
var RawSerializeOptions = gopacket.SerializeOptions{
	FixLengths:       true,
	ComputeChecksums: false,
}
