// Package rawio opens the raw-send and packet-capture paths of spec
// §4.2: batched transmit where the platform supports it, a BPF filter
// narrowed to the scan's port set on receive, and backpressure signaling
// on EAGAIN/buffer-full.
package rawio

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/reconwire/scancore/internal/packet"
	"github.com/reconwire/scancore/internal/scancore"
)

// DefaultBatchSize matches spec §4.2's "default batch 1024 on platforms
// that support it".
const DefaultBatchSize = 1024

// ErrUnsupportedPlatform is returned by Open on platforms with no raw
// I/O backend wired (spec §6: Windows needs a packet-capture library
// this package does not yet integrate).
var ErrUnsupportedPlatform = errors.New("rawio: no raw I/O backend for this platform")

// SendOutcome is the result of a SendBatch call (spec §4.2 contract:
// "Sent | PartialSend{ok, error_index, kind}").
type SendOutcome struct {
	// OK is how many packets, counted from the start of the batch, sent
	// successfully before any failure.
	OK int
	// ErrorIndex is the index of the first packet that failed to send,
	// or -1 if every packet in the batch sent (a full Sent outcome).
	ErrorIndex int
	// Err is the error that aborted the batch, nil on full success.
	Err error
}

// Partial reports whether this outcome represents a partial send the
// caller should resume from ErrorIndex+1.
func (s SendOutcome) Partial() bool { return s.ErrorIndex >= 0 }

// Conn is the raw-send/capture handle a scan's transmit and receive
// tasks drive. A Conn is not safe for concurrent SendBatch calls from
// multiple goroutines; spec §5 assigns exactly one transmit thread (or
// one per NUMA node).
type Conn interface {
	// SendBatch transmits frames, stopping at the first failure and
	// reporting how far it got.
	SendBatch(ctx context.Context, frames [][]byte) SendOutcome

	// Receive polls for the next inbound packet, blocking no longer than
	// timeout. It returns (nil, false, nil) on a timeout with no packet
	// available — not an error, per spec §4.2's "non-blocking poll
	// integrated with the event loop."
	Receive(timeout time.Duration) (*packet.ParsedPacket, bool, error)

	// SetPortFilter narrows capture to the given ports via a BPF
	// program, where the backend supports it.
	SetPortFilter(ports []uint16, proto scancore.Protocol) error

	Close() error
}

// Config parameterizes Open.
type Config struct {
	Interface *net.Interface
	BatchSize int
}

func (c Config) batchSize() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}
