// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package orchestrator

import (
	"context"
	"time"

	"github.com/reconwire/scancore/internal/scancore"
)

// sweepInterval is how often the correlator is checked for probes whose
// wait window has elapsed.
const sweepInterval = 250 * time.Millisecond

// sweepLoop periodically resolves timed-out pending probes into their
// scan-type-appropriate terminal state (spec §4.7 "Stale pending entries
// past the scan-type wait window transition to Filtered/OpenFiltered").
// On ctx cancellation it flushes every remaining pending probe as
// Cancelled before returning (spec §4.6).
func (s *Scan) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, r := range s.correlator.Sweep(time.Now(), s.timeoutState) {
				s.aggregator.Submit(ctx, r)
				s.recordProgress(ctx)
			}
		case <-ctx.Done():
			for _, r := range s.correlator.Flush(time.Now()) {
				// Flush uses a background context deliberately: these
				// results must not be dropped for the same reason ctx
				// just got cancelled.
				s.aggregator.Submit(context.Background(), r)
			}
			return ctx.Err()
		}
	}
}

func (s *Scan) timeoutState(p scancore.Probe) scancore.PortState {
	if s.machine != nil {
		return s.machine.TimeoutState()
	}
	return scancore.StateUnknown
}
