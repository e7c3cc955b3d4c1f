package eventbus

import (
	"sync"
	"time"
)

// ProgressPayload is the payload carried by TypeProgressUpdate events.
type ProgressPayload struct {
	Completed uint64
	Total     uint64
	Stage     string
}

// ProgressSnapshot is the Progress Aggregator's computed view for one
// scan id (spec §4.12: "percentage, completed/total, moving throughput
// over the last 5s, ETA, current stage").
type ProgressSnapshot struct {
	ScanID      string
	Completed   uint64
	Total       uint64
	Percent     float64
	Throughput  float64 // completed items per second, trailing 5s window
	ETA         time.Duration
	Stage       string
	LastUpdated time.Time
}

type sample struct {
	at        time.Time
	completed uint64
}

type progressState struct {
	mu        sync.Mutex
	completed uint64
	total     uint64
	stage     string
	updatedAt time.Time
	samples   []sample
}

const throughputWindow = 5 * time.Second

func (p *progressState) record(completed, total uint64, stage string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed = completed
	p.total = total
	if stage != "" {
		p.stage = stage
	}
	p.updatedAt = now

	p.samples = append(p.samples, sample{at: now, completed: completed})
	cutoff := now.Add(-throughputWindow)
	i := 0
	for i < len(p.samples) && p.samples[i].at.Before(cutoff) {
		i++
	}
	p.samples = p.samples[i:]
}

func (p *progressState) snapshot(scanID string) ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := ProgressSnapshot{
		ScanID:      scanID,
		Completed:   p.completed,
		Total:       p.total,
		Stage:       p.stage,
		LastUpdated: p.updatedAt,
	}
	if p.total > 0 {
		snap.Percent = float64(p.completed) / float64(p.total) * 100
	}

	if len(p.samples) >= 2 {
		first, last := p.samples[0], p.samples[len(p.samples)-1]
		elapsed := last.at.Sub(first.at).Seconds()
		if elapsed > 0 {
			snap.Throughput = float64(last.completed-first.completed) / elapsed
		}
	}

	if snap.Throughput > 0 && p.total > p.completed {
		remaining := float64(p.total - p.completed)
		snap.ETA = time.Duration(remaining/snap.Throughput*1000) * time.Millisecond
	}

	return snap
}

// ProgressAggregator consumes progress_update events per scan id and
// exposes a computed ProgressSnapshot for each (spec §4.12). It does not
// itself throttle publication; the throttle ("at most every 1% or 1s,
// whichever is first") is the publisher's responsibility via
// ProgressThrottle.
type ProgressAggregator struct {
	mu     sync.RWMutex
	states map[string]*progressState
	sub    *Subscription
	done   chan struct{}
}

// NewProgressAggregator subscribes to bus for TypeProgressUpdate events
// and starts consuming them in a background goroutine. Call Close to
// stop.
func NewProgressAggregator(bus *Bus) *ProgressAggregator {
	pa := &ProgressAggregator{
		states: make(map[string]*progressState),
		sub:    bus.Subscribe(ByEventType(TypeProgressUpdate)),
		done:   make(chan struct{}),
	}
	go pa.run()
	return pa
}

func (pa *ProgressAggregator) run() {
	for e := range pa.sub.C {
		payload, ok := e.Payload.(*ProgressPayload)
		if !ok {
			continue
		}
		pa.stateFor(e.ScanID).record(payload.Completed, payload.Total, payload.Stage, e.Timestamp)
	}
	close(pa.done)
}

func (pa *ProgressAggregator) stateFor(scanID string) *progressState {
	pa.mu.Lock()
	defer pa.mu.Unlock()
	st, ok := pa.states[scanID]
	if !ok {
		st = &progressState{}
		pa.states[scanID] = st
	}
	return st
}

// Snapshot returns the current ProgressSnapshot for scanID, or false if
// no progress has been recorded for it yet.
func (pa *ProgressAggregator) Snapshot(scanID string) (ProgressSnapshot, bool) {
	pa.mu.RLock()
	st, ok := pa.states[scanID]
	pa.mu.RUnlock()
	if !ok {
		return ProgressSnapshot{}, false
	}
	return st.snapshot(scanID), true
}

// Close unsubscribes from the bus and waits for the consumer goroutine
// to drain.
func (pa *ProgressAggregator) Close() {
	pa.sub.Unsubscribe()
	<-pa.done
}

// ProgressThrottle decides whether a new progress_update should be
// published now, per spec §4.12's "at most every 1% or 1s, whichever
// comes first" rule.
type ProgressThrottle struct {
	mu          sync.Mutex
	lastEmit    time.Time
	lastPercent float64
}

// Allow reports whether an update at (completed, total, now) should be
// emitted, and if so records it as the new baseline.
func (t *ProgressThrottle) Allow(completed, total uint64, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	var percent float64
	if total > 0 {
		percent = float64(completed) / float64(total) * 100
	}

	if t.lastEmit.IsZero() {
		t.lastEmit, t.lastPercent = now, percent
		return true
	}

	if now.Sub(t.lastEmit) >= time.Second || percent-t.lastPercent >= 1 {
		t.lastEmit, t.lastPercent = now, percent
		return true
	}
	return false
}
