// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package orchestrator

import (
	"context"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reconwire/scancore/internal/decoy"
	"github.com/reconwire/scancore/internal/eventbus"
	"github.com/reconwire/scancore/internal/scancore"
	"github.com/reconwire/scancore/internal/scheduler"
)

// sendLoop drains the scheduler's Hostgroup stream, dispatching each
// target's work items on its own goroutine gated by the concurrency gate
// (spec §5: "one goroutine (or a small pool) per target, bounded by
// max_concurrent_targets"). It returns once the scheduler stream closes
// and every dispatched target has finished.
func (s *Scan) sendLoop(ctx context.Context) error {
	var wg sync.WaitGroup
	groups := s.sched.Stream(ctx)

	for hg := range groups {
		permit, err := s.gate.Acquire(ctx)
		if err != nil {
			break
		}
		wg.Add(1)
		go func(hg scheduler.Hostgroup) {
			defer wg.Done()
			defer permit.Release()
			s.sendHostgroup(ctx, hg)
		}(hg)
	}

	wg.Wait()
	return ctx.Err()
}

func (s *Scan) sendHostgroup(ctx context.Context, hg scheduler.Hostgroup) {
	for _, item := range hg.Items {
		if ctx.Err() != nil {
			return
		}
		if item.Protocol == scancore.ProtoTCP && s.cfg.ScanType == scancore.ScanTCPConnect {
			s.dispatchConnect(ctx, item)
			continue
		}
		s.dispatchRaw(ctx, item)
	}
}

// dispatchRaw builds, registers, and transmits one raw probe (every scan
// type except TCP Connect).
func (s *Scan) dispatchRaw(ctx context.Context, item scheduler.WorkItem) {
	target := item.Target.Addr

	if allowed, _ := s.breaker.Allow(target); !allowed {
		return
	}
	if err := s.tokens.Acquire(ctx); err != nil {
		return
	}
	if item.Protocol == scancore.ProtoUDP && s.cfg.AdaptiveRateICMPBackoff {
		if wait := s.icmp.Wait(target); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
		}
	}

	wi := workItem{
		srcAddr: s.srcAddr,
		srcPort: s.nextSourcePort(),
		dstAddr: target,
		dstPort: item.Port,
		proto:   item.Protocol,
	}

	decoys, err := s.decoysFor(target)
	if err != nil {
		s.logger.Warn("building decoy set", "target", target, "error", err)
		decoys = scancore.DecoySet{Addrs: []netip.Addr{s.srcAddr}, MeIndex: 0}
	}

	frames, fp, err := buildProbeFrames(s.pool, s.secret, s.machine, wi, decoys, s.cfg)
	if err != nil {
		s.logger.Warn("building probe frame", "target", target, "port", item.Port, "error", err)
		return
	}

	probe := scancore.Probe{
		Fingerprint: fp,
		ScanType:    s.cfg.ScanType,
		Target:      item.Target,
		Port:        item.Port,
		SentAt:      time.Now(),
	}
	if err := s.correlator.Register(probe, s.machine.WaitWindow(s.profile)); err != nil {
		// A collision means the same (addr, port, proto, token) is
		// already outstanding; drop this attempt rather than overwrite
		// the pending entry (spec §3 invariant).
		s.logger.Debug("fingerprint collision, dropping probe", "target", target, "port", item.Port)
		return
	}

	_ = s.batch.NextBatch()
	outcome := s.conn.SendBatch(ctx, frames)
	s.batch.RecordDispatch(time.Now(), outcome.OK)
	s.recordSent(frames)

	if outcome.Err != nil {
		s.breaker.Failure(target)
	} else {
		s.breaker.Success(target)
	}

	s.recordProgress(ctx)
}

// dispatchConnect drives TCP Connect scanning via a real connect() syscall
// rather than raw packet construction (spec §4.4 row 2): the outcome is
// known synchronously, so it's submitted straight to the aggregator
// without round-tripping through the correlator's pending map.
func (s *Scan) dispatchConnect(ctx context.Context, item scheduler.WorkItem) {
	target := item.Target.Addr

	if allowed, _ := s.breaker.Allow(target); !allowed {
		return
	}
	if err := s.tokens.Acquire(ctx); err != nil {
		return
	}

	sentAt := time.Now()
	state := connectProbe(ctx, target, item.Port, s.profile.InitialRTT*3)
	if state == scancore.StateOpen {
		s.breaker.Success(target)
	}

	fp := s.secret.NewFingerprint(s.srcAddr, 0, target, item.Port, scancore.ProtoTCP)
	s.aggregator.Submit(ctx, scancore.ScanResult{
		Target:      item.Target,
		Port:        item.Port,
		Protocol:    scancore.ProtoTCP,
		State:       state,
		RTT:         time.Since(sentAt),
		Timestamp:   time.Now(),
		Fingerprint: fp,
	})
	s.recordProgress(ctx)
}

// recordSent tallies packets and bytes actually handed to the connection
// for Summary's PacketsSent/BytesSent, regardless of how many of them the
// kernel accepted (SendOutcome.Err covers total failure, not a per-frame
// count the orchestrator can attribute precisely).
func (s *Scan) recordSent(frames [][]byte) {
	var n uint64
	for _, f := range frames {
		n += uint64(len(f))
	}
	atomic.AddUint64(&s.packetsSent, uint64(len(frames)))
	atomic.AddUint64(&s.bytesSent, n)
}

// decoysFor resolves this scan's configured decoy set for a given target.
// IPv6 auto-generation is re-run per target since it depends on the
// target's own /64 prefix; an explicit list or IPv4 decoys are reused as
// configured.
func (s *Scan) decoysFor(target netip.Addr) (scancore.DecoySet, error) {
	d := s.cfg.Decoys
	if len(d.Sources) == 0 && !d.Auto {
		return scancore.DecoySet{}, nil
	}
	if d.Auto && target.Is6() {
		return decoy.BuildAutoV6(target, d.Count, s.srcAddr, d.MeIndex)
	}
	return decoy.Build(d.Sources, s.srcAddr, d.MeIndex), nil
}

// recordProgress publishes a throttled progress_update event (spec §4.12:
// "at most every 1% or 1s, whichever comes first").
func (s *Scan) recordProgress(ctx context.Context) {
	completed := s.completedIncr()
	now := time.Now()
	if !s.throttle.Allow(completed, uint64(s.totalItems), now) {
		return
	}
	s.bus.Publish(eventbus.NewEvent(eventbus.TypeProgressUpdate, s.id, &eventbus.ProgressPayload{
		Completed: completed,
		Total:     uint64(s.totalItems),
		Stage:     s.cfg.ScanType.String(),
	}, now))
}
