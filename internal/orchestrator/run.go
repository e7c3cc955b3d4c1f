// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reconwire/scancore/internal/scancore"
)

// Run drives the scan to completion: send, receive, and sweep all run
// concurrently (spec §5), feeding the aggregator until the scheduler's
// target stream is exhausted and every outstanding probe has resolved,
// timed out, or been cancelled. Run blocks until that point or until ctx
// is cancelled, then tears down its internal goroutines and closes the
// Results channel.
func (s *Scan) Run(ctx context.Context) error {
	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error { s.aggregator.Run(gctx); return nil })
	g.Go(func() error { return s.receiveLoop(gctx) })
	g.Go(func() error { return s.sweepLoop(gctx) })

	sendErr := s.sendLoop(gctx)
	// Every target has been dispatched and every raw probe it produced is
	// either resolved or registered with the correlator; give the sweep
	// loop one more pass to drain the wait windows already in flight,
	// then shut the rest of the pipeline down.
	s.drainPending(gctx)
	cancel()

	waitErr := g.Wait()
	s.aggregator.Close()
	s.progress.Close()
	close(s.results)

	if sendErr != nil && sendErr != context.Canceled {
		return sendErr
	}
	if waitErr != nil && waitErr != context.Canceled {
		return waitErr
	}
	return nil
}

// drainPending blocks until the correlator has no outstanding probes or
// ctx is cancelled, giving in-flight probes their full wait window before
// Run tears the pipeline down.
func (s *Scan) drainPending(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		if s.correlator.Pending() == 0 {
			return
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// Summary returns the terminal ScanSummary (spec §6), valid after Run has
// returned. PacketsSent/BytesSent count raw frames handed to Conn.SendBatch
// and don't include TCP Connect probes, which never go through that path.
func (s *Scan) Summary() scancore.ScanSummary {
	summary := s.aggregator.Summary()
	s.mu.Lock()
	summary.Duration = time.Since(s.startedAt)
	s.mu.Unlock()
	summary.PacketsSent = atomic.LoadUint64(&s.packetsSent)
	summary.BytesSent = atomic.LoadUint64(&s.bytesSent)
	summary.ErrorsByKind["stray_packets"] = int(s.correlator.StrayPackets())
	summary.ErrorsByKind["fingerprint_collisions"] = int(s.correlator.Collisions())
	for state, count := range summary.PortsByState {
		if state == scancore.StateOpen {
			summary.HostsUp += count
		}
	}
	return summary
}

// Close releases the scan's underlying connection. Call after Run
// returns.
func (s *Scan) Close() error {
	return s.conn.Close()
}
