package rawio

import (
	"context"
	"time"

	"github.com/reconwire/scancore/internal/packet"
	"github.com/reconwire/scancore/internal/scancore"
)

// PortFilteringConn wraps a Conn, narrowing Receive to a software port
// allowlist layered on top of the backend's kernel-level protocol BPF
// filter (see BuildProtocolFilter's doc comment for why port matching
// itself stays in software).
type PortFilteringConn struct {
	inner Conn
	sets  []PortSet
}

// NewPortFilteringConn wraps inner, matching only packets whose
// transport ports fall within one of sets.
func NewPortFilteringConn(inner Conn, sets ...PortSet) *PortFilteringConn {
	return &PortFilteringConn{inner: inner, sets: sets}
}

func (c *PortFilteringConn) SendBatch(ctx context.Context, frames [][]byte) SendOutcome {
	return c.inner.SendBatch(ctx, frames)
}

// Receive polls inner repeatedly until a matching packet arrives or the
// overall timeout elapses, so a burst of non-scan traffic on a shared
// interface doesn't starve the caller's poll loop.
func (c *PortFilteringConn) Receive(timeout time.Duration) (*packet.ParsedPacket, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false, nil
		}

		pp, ok, err := c.inner.Receive(remaining)
		if err != nil || !ok {
			return pp, ok, err
		}
		if c.matches(pp) {
			return pp, true, nil
		}
	}
}

func (c *PortFilteringConn) matches(pp *packet.ParsedPacket) bool {
	if len(c.sets) == 0 {
		return true
	}
	for _, set := range c.sets {
		switch {
		case pp.TCP != nil && set.MatchesTCP(pp.TCP.SrcPort, pp.TCP.DstPort):
			return true
		case pp.UDP != nil && set.MatchesUDP(pp.UDP.SrcPort, pp.UDP.DstPort):
			return true
		case pp.ICMPv4 != nil || pp.ICMPv6 != nil:
			// ICMP error/echo traffic is always relevant regardless of
			// the configured TCP/UDP port set (it carries the embedded
			// original packet the correlator matches on).
			return true
		}
	}
	return false
}

func (c *PortFilteringConn) SetPortFilter(ports []uint16, proto scancore.Protocol) error {
	if err := c.inner.SetPortFilter(ports, proto); err != nil {
		return err
	}
	c.sets = append(c.sets, NewPortSet(proto, ports))
	return nil
}

func (c *PortFilteringConn) Close() error {
	return c.inner.Close()
}
