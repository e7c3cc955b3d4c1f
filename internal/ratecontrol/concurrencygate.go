package ratecontrol

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/reconwire/scancore/internal/scanerrors"
)

// Permit is an RAII-scoped concurrency slot; it must be released exactly
// once, on every worker exit path (spec §4.6 Layer 3).
type Permit struct {
	release func()
	once    sync.Once
}

// Release returns the permit to the gate. Safe to call multiple times.
func (p *Permit) Release() {
	p.once.Do(p.release)
}

// ConcurrencyGate bounds the number of simultaneously active targets
// (spec §4.6 Layer 3, alias max_parallelism). It also tracks how long the
// active count has stayed below MinConcurrentTargets so the orchestrator
// can emit a diagnostic warning.
type ConcurrencyGate struct {
	sem chan struct{}

	mu            sync.Mutex
	active        int
	min           int
	belowMinSince time.Time
	warnWindow    time.Duration
	warnCallback  func(activeSince time.Duration)
}

// NewConcurrencyGate creates a gate bounded by max, warning via cb when the
// active count stays below min for longer than warnWindow.
func NewConcurrencyGate(max, min int, warnWindow time.Duration, cb func(time.Duration)) *ConcurrencyGate {
	if max <= 0 {
		max = 1
	}
	return &ConcurrencyGate{
		sem:          make(chan struct{}, max),
		min:          min,
		warnWindow:   warnWindow,
		warnCallback: cb,
	}
}

// Acquire blocks until a slot is free or ctx is cancelled.
func (g *ConcurrencyGate) Acquire(ctx context.Context) (*Permit, error) {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, scanerrors.Wrap(ctx.Err(), scanerrors.KindCancelled, "concurrency gate acquire cancelled")
	}

	g.mu.Lock()
	g.active++
	g.checkMinLocked()
	g.mu.Unlock()

	p := &Permit{}
	p.release = func() {
		<-g.sem
		g.mu.Lock()
		g.active--
		g.checkMinLocked()
		g.mu.Unlock()
	}
	return p, nil
}

// checkMinLocked must be called with g.mu held. It records when the
// active count dropped below g.min and clears that mark once the count
// recovers; it never fires warnCallback itself. CheckStale, polled by the
// caller to avoid a background goroutine per gate, fires it once the
// window elapses.
func (g *ConcurrencyGate) checkMinLocked() {
	if g.min <= 0 {
		return
	}
	if g.active < g.min {
		if g.belowMinSince.IsZero() {
			g.belowMinSince = time.Now()
		}
	} else {
		g.belowMinSince = time.Time{}
	}
}

// CheckStale reports whether the active count has been below min for
// longer than warnWindow, invoking warnCallback at most once per breach.
func (g *ConcurrencyGate) CheckStale() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.belowMinSince.IsZero() || g.warnCallback == nil {
		return
	}
	elapsed := time.Since(g.belowMinSince)
	if elapsed >= g.warnWindow {
		g.warnCallback(elapsed)
		// Push the marker forward so we don't fire on every poll.
		g.belowMinSince = time.Now()
	}
}

// Active returns the current number of active targets.
func (g *ConcurrencyGate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

var activeTargetsDesc = prometheus.NewDesc(
	"scancore_ratecontrol_active_targets",
	"Number of targets currently holding a concurrency gate permit (Layer 3 of spec's flow control).",
	nil, nil,
)

// Describe implements prometheus.Collector.
func (g *ConcurrencyGate) Describe(ch chan<- *prometheus.Desc) {
	ch <- activeTargetsDesc
}

// Collect implements prometheus.Collector, letting a ConcurrencyGate be
// registered directly against a Prometheus registry rather than needing a
// separate exporter goroutine polling Active().
func (g *ConcurrencyGate) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(activeTargetsDesc, prometheus.GaugeValue, float64(g.Active()))
}
