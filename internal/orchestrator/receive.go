// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package orchestrator

import (
	"context"
	"time"

	"github.com/reconwire/scancore/internal/correlator"
	"github.com/reconwire/scancore/internal/scancore"
)

// receivePollInterval bounds how long a single Conn.Receive call blocks,
// so the loop can observe ctx cancellation promptly (spec §4.2's
// "non-blocking poll integrated with the event loop").
const receivePollInterval = 200 * time.Millisecond

// receiveLoop reads inbound packets, resolves them against the
// correlator's pending probes, and submits completed results to the
// aggregator (spec §4.7 steps 1-3). It returns when ctx is cancelled.
func (s *Scan) receiveLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		pp, ok, err := s.conn.Receive(receivePollInterval)
		if err != nil {
			s.logger.Warn("receive", "error", err)
			continue
		}
		if !ok {
			continue
		}

		fp, sig, ok := extractSignal(pp)
		if !ok {
			continue
		}

		result, ok := s.correlator.Resolve(fp, sig, time.Now())
		if !ok {
			continue // stray packet, already counted by the correlator
		}

		s.applyICMPBackoff(result, sig)
		s.applyOSEstimate(&result, sig)

		s.aggregator.Submit(ctx, result)
		s.recordProgress(ctx)
	}
}

// applyICMPBackoff trips the per-target ICMP backoff when a UDP probe
// draws an administratively-prohibited error (ICMP type 3 code 13, or
// ICMPv6 type 1 code 1), and resets it once a target answers normally
// again (spec §4.6 adaptive rate control).
func (s *Scan) applyICMPBackoff(result scancore.ScanResult, sig correlator.ResponseSignal) {
	if !s.cfg.AdaptiveRateICMPBackoff || result.Protocol != scancore.ProtoUDP {
		return
	}
	target := result.Target.Addr
	prohibited := sig.IsICMP && ((!result.Target.IsIPv6() && sig.ICMPType == 3 && sig.ICMPCode == 13) ||
		(result.Target.IsIPv6() && sig.ICMPType == 1 && sig.ICMPCode == 1))
	if prohibited {
		s.icmp.Trip(target)
	} else if result.State == scancore.StateOpen {
		s.icmp.Reset(target)
	}
}

// applyOSEstimate fills OSInfo on a freshly resolved open TCP result from
// the SYN-ACK window size observed in sig, when OS detection is enabled
// (see estimateOS's doc comment for the scope this covers).
func (s *Scan) applyOSEstimate(result *scancore.ScanResult, sig correlator.ResponseSignal) {
	if !s.cfg.OSDetection.Enabled || result.State != scancore.StateOpen || result.Protocol != scancore.ProtoTCP {
		return
	}
	if info, ok := estimateOS(sig.TCPWindow); ok {
		result.OS = &info
	}
}
