// Package correlator matches inbound packets back to outstanding probes
// and resolves them into ScanResults (spec §4.7).
package correlator

import (
	"sync"
	"time"

	"github.com/reconwire/scancore/internal/scanerrors"
	"github.com/reconwire/scancore/internal/scancore"
)

// PendingProbe is an outstanding probe awaiting a response or timeout.
type PendingProbe struct {
	Probe   scancore.Probe
	SentAt  time.Time
	Retries int
	WaitFor time.Duration
}

// Correlator holds the concurrent Fingerprint -> PendingProbe map
// described in spec §4.7. It is shared read/write across all workers of a
// single scan.
type Correlator struct {
	mu      sync.Mutex
	pending map[scancore.Fingerprint]*PendingProbe

	strayPackets uint64
	collisions   uint64

	// resolve classifies a (scan type, observed signal) pair into a port
	// state. It's a function rather than an interface to keep this
	// package free of a dependency on every scanmachine implementation.
	resolve ResolveFunc
}

// ResolveFunc classifies the port state for a resolved probe/response
// pair, per the scan-type interpretation rules of spec §4.4.
type ResolveFunc func(p scancore.Probe, resp ResponseSignal) scancore.PortState

// ResponseSignal carries the minimal information the correlator extracts
// from an inbound packet needed to classify state (TCP flags, ICMP
// type/code, or a bare "datagram arrived" marker for UDP).
type ResponseSignal struct {
	TCPFlagsSYN bool
	TCPFlagsACK bool
	TCPFlagsRST bool
	TCPFlagsFIN bool
	ICMPType    uint8
	ICMPCode    uint8
	IsICMP      bool
	IsUDP       bool

	// TCPWindow is the advertised window size on a SYN-ACK response, the
	// one osid signal ParsedPacket currently exposes end to end. Zero
	// when the response carried no TCP segment.
	TCPWindow uint16
}

// New creates a Correlator that classifies resolved probes with resolve.
func New(resolve ResolveFunc) *Correlator {
	return &Correlator{
		pending: make(map[scancore.Fingerprint]*PendingProbe),
		resolve: resolve,
	}
}

// Register records a just-transmitted probe as pending. waitFor is the
// scan-type-specific timeout window (spec §4.4) after which Sweep will
// resolve it to Filtered/OpenFiltered. Register returns a Fatal
// KindFingerprintCollision error (spec §3 invariant) if fp is already
// outstanding within the window.
func (c *Correlator) Register(p scancore.Probe, waitFor time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.pending[p.Fingerprint]; exists {
		c.collisions++
		err := scanerrors.Errorf(scanerrors.KindFingerprintCollision,
			"fingerprint collision: token %08x already outstanding", p.Fingerprint.Token)
		return scanerrors.Attr(err, "fingerprint", p.Fingerprint)
	}
	c.pending[p.Fingerprint] = &PendingProbe{
		Probe:   p,
		SentAt:  p.SentAt,
		WaitFor: waitFor,
	}
	return nil
}

// Resolve looks up the PendingProbe matching the reversed fingerprint of
// an inbound packet (spec §4.7 step 1-2) and, if found, classifies and
// removes it, returning the completed ScanResult. A missing lookup
// increments the stray-packet counter and returns ok=false.
func (c *Correlator) Resolve(fp scancore.Fingerprint, sig ResponseSignal, now time.Time) (scancore.ScanResult, bool) {
	c.mu.Lock()
	pp, ok := c.pending[fp]
	if !ok {
		c.strayPackets++
		c.mu.Unlock()
		return scancore.ScanResult{}, false
	}
	delete(c.pending, fp)
	c.mu.Unlock()

	state := c.resolve(pp.Probe, sig)
	return scancore.ScanResult{
		Target:      pp.Probe.Target,
		Port:        pp.Probe.Port,
		Protocol:    pp.Probe.Fingerprint.Protocol,
		State:       state,
		RTT:         now.Sub(pp.SentAt),
		Timestamp:   now,
		Fingerprint: fp,
	}, true
}

// Sweep scans for pending probes whose wait window has elapsed and
// resolves them to the scan-type-appropriate timeout state (Filtered or
// OpenFiltered), per spec §4.7: "Stale pending entries past the scan-type
// wait window transition to Filtered/OpenFiltered based on the scan type."
// timeoutState maps a timed-out probe to its terminal state.
func (c *Correlator) Sweep(now time.Time, timeoutState func(scancore.Probe) scancore.PortState) []scancore.ScanResult {
	c.mu.Lock()
	var expired []*PendingProbe
	for fp, pp := range c.pending {
		if now.Sub(pp.SentAt) >= pp.WaitFor {
			expired = append(expired, pp)
			delete(c.pending, fp)
		}
	}
	c.mu.Unlock()

	results := make([]scancore.ScanResult, 0, len(expired))
	for _, pp := range expired {
		results = append(results, scancore.ScanResult{
			Target:      pp.Probe.Target,
			Port:        pp.Probe.Port,
			Protocol:    pp.Probe.Fingerprint.Protocol,
			State:       timeoutState(pp.Probe),
			RTT:         now.Sub(pp.SentAt),
			Timestamp:   now,
			Fingerprint: pp.Probe.Fingerprint,
		})
	}
	return results
}

// Flush drains every pending probe as a Cancelled result, used when the
// scan is cancelled mid-flight (spec §4.6 "Correlator flushes pending
// expectations as Cancelled results").
func (c *Correlator) Flush(now time.Time) []scancore.ScanResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	results := make([]scancore.ScanResult, 0, len(c.pending))
	for fp, pp := range c.pending {
		results = append(results, scancore.ScanResult{
			Target:      pp.Probe.Target,
			Port:        pp.Probe.Port,
			Protocol:    pp.Probe.Fingerprint.Protocol,
			State:       scancore.StateUnknown,
			RTT:         now.Sub(pp.SentAt),
			Timestamp:   now,
			Fingerprint: fp,
			Cancelled:   true,
		})
		delete(c.pending, fp)
	}
	return results
}

// Pending returns the current count of outstanding probes.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// StrayPackets returns the number of inbound packets that matched no
// pending probe.
func (c *Correlator) StrayPackets() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strayPackets
}

// Collisions returns the number of fingerprint collisions observed.
func (c *Correlator) Collisions() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collisions
}
