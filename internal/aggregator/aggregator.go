// Package aggregator collects ScanResults produced by many concurrent
// workers and commits them to a single append-only stream (spec §4.7).
package aggregator

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/reconwire/scancore/internal/scancore"
)

// Stats tracks aggregator throughput counters, read with atomic loads.
type Stats struct {
	Committed uint64
	Dropped   uint64
	Conflicts uint64
}

// Aggregator is a many-producer single-consumer result sink. Workers call
// Submit concurrently; a single committer goroutine drains the channel and
// calls the configured sink, giving the channel itself as the MPSC queue
// (Go's channel runtime already implements a lock-free ring buffer for the
// buffered case) and guaranteeing append-only, single-writer commit order
// per spec §4.7/§3.
type Aggregator struct {
	queue chan scancore.ScanResult
	sink  func(scancore.ScanResult)

	stats Stats

	mu      sync.Mutex
	seen    map[scancore.ResultKey]scancore.PortState
	summary *scancore.ScanSummary

	done chan struct{}
}

// New creates an Aggregator with the given queue depth, draining into sink.
// sink is called exactly once per committed result, from the single
// committer goroutine, so it never needs its own locking.
func New(queueDepth int, sink func(scancore.ScanResult)) *Aggregator {
	if queueDepth <= 0 {
		queueDepth = 4096
	}
	return &Aggregator{
		queue:   make(chan scancore.ScanResult, queueDepth),
		sink:    sink,
		seen:    make(map[scancore.ResultKey]scancore.PortState),
		summary: scancore.NewScanSummary(),
		done:    make(chan struct{}),
	}
}

// Submit enqueues a result for commit. It blocks if the queue is full,
// applying natural backpressure to producers; ctx cancellation aborts the
// submit and counts the result as Dropped.
func (a *Aggregator) Submit(ctx context.Context, r scancore.ScanResult) {
	select {
	case a.queue <- r:
	case <-ctx.Done():
		atomic.AddUint64(&a.stats.Dropped, 1)
	}
}

// Run drains the queue until ctx is cancelled and the queue is empty, or
// Close is called. It is meant to run in its own goroutine; there must be
// exactly one Run call per Aggregator (single committer, spec §4.7).
func (a *Aggregator) Run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case r, ok := <-a.queue:
			if !ok {
				return
			}
			a.commit(r)
		case <-ctx.Done():
			// Drain what's already queued before exiting so no submitted
			// result is silently lost (spec §3: "every transmitted probe
			// either resolves ... or times out; no probe may be silently
			// abandoned").
			for {
				select {
				case r, ok := <-a.queue:
					if !ok {
						return
					}
					a.commit(r)
				default:
					return
				}
			}
		}
	}
}

// commit applies a single result: duplicate-key detection, summary update,
// sink dispatch. Only the committer goroutine calls this, so the seen map
// and summary need no locking against other commits — the mutex here
// guards only against concurrent reads via Summary().
func (a *Aggregator) commit(r scancore.ScanResult) {
	key := r.Key()

	a.mu.Lock()
	if prior, ok := a.seen[key]; ok && prior != r.State {
		atomic.AddUint64(&a.stats.Conflicts, 1)
	}
	a.seen[key] = r.State
	a.summary.PortsByState[r.State]++
	if r.Cancelled {
		a.summary.Cancelled = true
	}
	a.mu.Unlock()

	atomic.AddUint64(&a.stats.Committed, 1)
	if a.sink != nil {
		a.sink(r)
	}
}

// Close signals no further Submit calls will occur and waits for Run to
// drain the remaining queue.
func (a *Aggregator) Close() {
	close(a.queue)
	<-a.done
}

// Summary returns a snapshot of the running ScanSummary. Safe to call
// concurrently with Run.
func (a *Aggregator) Summary() scancore.ScanSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	byState := make(map[scancore.PortState]int, len(a.summary.PortsByState))
	for k, v := range a.summary.PortsByState {
		byState[k] = v
	}
	return scancore.ScanSummary{
		PortsByState: byState,
		Cancelled:    a.summary.Cancelled,
		ErrorsByKind: map[string]int{},
	}
}

// Committed returns the number of results committed so far.
func (a *Aggregator) Committed() uint64 { return atomic.LoadUint64(&a.stats.Committed) }

// Dropped returns the number of results dropped due to cancellation.
func (a *Aggregator) Dropped() uint64 { return atomic.LoadUint64(&a.stats.Dropped) }

// Conflicts returns the number of duplicate (target,port,protocol) commits
// observed with differing states.
func (a *Aggregator) Conflicts() uint64 { return atomic.LoadUint64(&a.stats.Conflicts) }
