// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package orchestrator wires every other package into a single running
// scan (§2 data flow, §5 concurrency model): it expands targets, drives
// the send/receive loops, resolves probes through the correlator, commits
// results through the aggregator, and reports progress on the event bus.
package orchestrator

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/reconwire/scancore/internal/aggregator"
	"github.com/reconwire/scancore/internal/circuitbreaker"
	"github.com/reconwire/scancore/internal/correlator"
	"github.com/reconwire/scancore/internal/eventbus"
	"github.com/reconwire/scancore/internal/packet"
	"github.com/reconwire/scancore/internal/pluginhost"
	"github.com/reconwire/scancore/internal/ratecontrol"
	"github.com/reconwire/scancore/internal/rawio"
	"github.com/reconwire/scancore/internal/scanconfig"
	"github.com/reconwire/scancore/internal/scancore"
	"github.com/reconwire/scancore/internal/scanlog"
	"github.com/reconwire/scancore/internal/scanmachine"
	"github.com/reconwire/scancore/internal/scanner"
	"github.com/reconwire/scancore/internal/scheduler"
)

// Config is everything the orchestrator needs beyond the pure scan
// parameters in scanconfig.ScanConfig: the I/O and optional collaborators
// a caller (a CLI, a service wrapper) supplies.
type Config struct {
	Scan *scanconfig.ScanConfig
	Conn rawio.Conn

	// SrcAddr is the real (non-decoy) source address probes are sent
	// from. Required for every scan type except TCP Connect, which lets
	// the OS pick one via the connect() syscall.
	SrcAddr netip.Addr

	// Bus receives lifecycle/progress/discovery events (spec §4.12). A
	// bus is created with default sizing when nil.
	Bus *eventbus.Bus
	// Plugins, when non-nil, is consulted for banner analysis on every
	// open TCP port (spec §4.13).
	Plugins *pluginhost.Host
	// Passive, when non-nil, enriches results with DHCP/mDNS hints
	// observed on the wire during the scan window (spec §18 adaptation
	// of the teacher's internal/scanner).
	Passive *scanner.Store

	Logger *slog.Logger

	// MetricsRegisterer, when non-nil, gets the scan's event bus counters
	// registered against it (spec §4.12's progress stream, exported
	// Prometheus-style for an operator's existing scrape setup). Left nil,
	// the bus collects no metrics.
	MetricsRegisterer prometheus.Registerer
}

// Scan is one running instance of the recon engine.
type Scan struct {
	cfg     *scanconfig.ScanConfig
	conn    rawio.Conn
	srcAddr netip.Addr
	bus     *eventbus.Bus
	plugin  *pluginhost.Host
	passive *scanner.Store
	logger  *slog.Logger

	secret  scancore.Secret
	machine scanmachine.Machine
	sched   *scheduler.Scheduler
	pool    *packet.BufferPool
	profile scanconfig.TimingProfile

	correlator *correlator.Correlator
	aggregator *aggregator.Aggregator

	tokens   *ratecontrol.TokenBucket
	gate     *ratecontrol.ConcurrencyGate
	batch    *ratecontrol.BatchThrottler
	icmp     *ratecontrol.ICMPBackoff
	breaker  *circuitbreaker.Breaker
	progress *eventbus.ProgressAggregator
	throttle eventbus.ProgressThrottle

	id string

	results chan scancore.ScanResult

	totalItems int
	completed  uint64
	nextPort   uint32

	startedAt time.Time
	mu        sync.Mutex

	packetsSent uint64
	bytesSent   uint64
}

// completedIncr atomically increments and returns the scan's completed
// work-item counter, used to throttle progress_update publication.
func (s *Scan) completedIncr() uint64 {
	return atomic.AddUint64(&s.completed, 1)
}

// nextSourcePort returns the next ephemeral source port for an outbound
// probe, or the configured override when set.
func (s *Scan) nextSourcePort() uint16 {
	if s.cfg.SourcePortOverride != nil {
		return *s.cfg.SourcePortOverride
	}
	const base = 40000
	const span = 20000
	n := atomic.AddUint32(&s.nextPort, 1)
	return uint16(base + n%span)
}

// Results returns the stream of committed ScanResults (spec §6 external
// interface). The channel closes once the aggregator has drained
// everything submitted before Run returns.
func (s *Scan) Results() <-chan scancore.ScanResult { return s.results }

// New validates cfg.Scan and wires every subsystem it describes, but does
// not start any goroutines (see Run).
func New(cfg Config) (*Scan, error) {
	if cfg.Scan == nil {
		return nil, fmt.Errorf("orchestrator: Config.Scan is required")
	}
	if cfg.Conn == nil {
		return nil, fmt.Errorf("orchestrator: Config.Conn is required")
	}
	if errs := cfg.Scan.Validate(); errs.HasErrors() {
		return nil, errs
	}
	if !cfg.SrcAddr.IsValid() && cfg.Scan.ScanType != scancore.ScanTCPConnect {
		return nil, fmt.Errorf("orchestrator: Config.SrcAddr is required for scan type %s", cfg.Scan.ScanType)
	}

	machine := scanmachine.For(cfg.Scan.ScanType)
	if machine == nil && cfg.Scan.ScanType != scancore.ScanIdle {
		return nil, fmt.Errorf("orchestrator: no machine for scan type %s", cfg.Scan.ScanType)
	}

	var secret scancore.Secret
	if _, err := rand.Read(secret[:]); err != nil {
		return nil, fmt.Errorf("orchestrator: generating scan secret: %w", err)
	}

	bus := cfg.Bus
	if bus == nil {
		bus = eventbus.New(eventbus.DefaultSubscriberQueueDepth, eventbus.DefaultHistoryCapacity)
	}
	if cfg.MetricsRegisterer != nil {
		bus.Attach(eventbus.NewMetrics(cfg.MetricsRegisterer))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = scanlog.Discard()
	}

	id := newScanID(secret)

	var tokens *ratecontrol.TokenBucket
	if cfg.Scan.RateLimitRequested {
		tb, err := ratecontrol.NewEnabledTokenBucket(cfg.Scan.MaxRatePPS)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: %w", err)
		}
		tokens = tb
	} else {
		tokens = ratecontrol.NewTokenBucket(cfg.Scan.MaxRatePPS)
	}

	maxConcurrent := cfg.Scan.MaxConcurrentTargets
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	gate := ratecontrol.NewConcurrencyGate(maxConcurrent, cfg.Scan.MinConcurrentTargets, 30*time.Second, func(d time.Duration) {
		bus.Publish(eventbus.NewEvent(eventbus.TypeWarning, id, fmt.Sprintf("active targets below minimum for %s", d), time.Now()))
	})
	if cfg.MetricsRegisterer != nil {
		_ = cfg.MetricsRegisterer.Register(gate)
	}

	profile := scanconfig.Profiles[cfg.Scan.TimingTemplate]
	targetPPS := float64(cfg.Scan.MaxRatePPS)
	if targetPPS == 0 {
		targetPPS = float64(profile.MaxParallelism) * 10
	}
	batch := ratecontrol.NewBatchThrottler(targetPPS, cfg.Scan.MmsgBatchSize)

	var resolve correlator.ResolveFunc
	if machine != nil {
		resolve = scanmachine.ResolveFunc(machine)
	} else {
		resolve = func(scancore.Probe, correlator.ResponseSignal) scancore.PortState { return scancore.StateUnknown }
	}
	corr := correlator.New(resolve)

	sched := scheduler.New(cfg.Scan.Targets, cfg.Scan.Ports,
		scheduler.NewCDNFilter(cfg.Scan.CDNFilterMode, cfg.Scan.CDNSet),
		secretToPermutationKey(secret), scheduler.DefaultQueueDepth)

	results := make(chan scancore.ScanResult, 1024)
	sink := func(r scancore.ScanResult) {
		finalizeResult(&r, cfg.Scan.ServiceDetection, cfg.Scan.TLSAnalysis, cfg.Plugins, cfg.Passive)
		publishResultEvents(bus, id, r)
		results <- r
	}
	agg := aggregator.New(1024, sink)

	scan := &Scan{
		cfg:        cfg.Scan,
		conn:       cfg.Conn,
		srcAddr:    cfg.SrcAddr,
		bus:        bus,
		plugin:     cfg.Plugins,
		passive:    cfg.Passive,
		logger:     logger,
		secret:     secret,
		machine:    machine,
		sched:      sched,
		pool:       packet.NewBufferPool(),
		profile:    profile,
		correlator: corr,
		aggregator: agg,
		tokens:     tokens,
		gate:       gate,
		batch:      batch,
		icmp:       ratecontrol.NewICMPBackoff(),
		breaker:    circuitbreaker.New(circuitbreaker.DefaultPolicy),
		progress:   eventbus.NewProgressAggregator(bus),
		id:         id,
		results:    results,
		totalItems: sched.TotalWorkItems(),
	}
	return scan, nil
}

func newScanID(secret scancore.Secret) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, secret[:]).String()
}

// secretToPermutationKey derives the scheduler's permutation key from the
// scan secret so target/port ordering is unique per scan without a
// separate random source.
func secretToPermutationKey(secret scancore.Secret) uint64 {
	var key uint64
	for i := 0; i < 8; i++ {
		key = key<<8 | uint64(secret[i])
	}
	return key
}

// Bus returns the event bus this scan publishes to (spec §6 external
// interface).
func (s *Scan) Bus() *eventbus.Bus { return s.bus }

// ID returns the scan's identifier, derived from its secret, used to tag
// every published event.
func (s *Scan) ID() string { return s.id }
