// Package scanconfig defines the normalized ScanConfig the core consumes
// (spec §3/§6). Parsing CLI flags or config files into a ScanConfig is an
// external collaborator's job; this package only defines the shape and
// validates it.
package scanconfig

import (
	"net/netip"
	"time"

	"github.com/reconwire/scancore/internal/scancore"
)

// TimingTemplate fixes the five knobs described in spec §4.5.
type TimingTemplate uint8

const (
	T0Paranoid TimingTemplate = iota
	T1Sneaky
	T2Polite
	T3Normal
	T4Aggressive
	T5Insane
)

// TimingProfile is the resolved set of knobs for a TimingTemplate.
type TimingProfile struct {
	InitialRTT     time.Duration
	MinProbeDelay  time.Duration
	MaxProbeDelay  time.Duration
	RetransmitCap  int
	MaxParallelism int
}

// Profiles maps each TimingTemplate to its approximate shape (spec §4.5
// table). The Rate Controller uses these as starting points and adapts
// within bounds.
var Profiles = map[TimingTemplate]TimingProfile{
	T0Paranoid: {InitialRTT: 5 * time.Minute, MinProbeDelay: 5 * time.Minute, MaxProbeDelay: 5 * time.Minute, RetransmitCap: 1, MaxParallelism: 1},
	T1Sneaky:   {InitialRTT: 15 * time.Second, MinProbeDelay: 15 * time.Second, MaxProbeDelay: 15 * time.Second, RetransmitCap: 2, MaxParallelism: 4},
	T2Polite:   {InitialRTT: 400 * time.Millisecond, MinProbeDelay: 400 * time.Millisecond, MaxProbeDelay: 400 * time.Millisecond, RetransmitCap: 3, MaxParallelism: 16},
	T3Normal:   {InitialRTT: 100 * time.Millisecond, MinProbeDelay: time.Millisecond, MaxProbeDelay: 100 * time.Millisecond, RetransmitCap: 6, MaxParallelism: 128},
	T4Aggressive: {InitialRTT: 50 * time.Millisecond, MinProbeDelay: 0, MaxProbeDelay: 50 * time.Millisecond, RetransmitCap: 10, MaxParallelism: 512},
	T5Insane:   {InitialRTT: 10 * time.Millisecond, MinProbeDelay: 0, MaxProbeDelay: 10 * time.Millisecond, RetransmitCap: 15, MaxParallelism: 2048},
}

// IPVPreference constrains which address families target expansion emits.
type IPVPreference uint8

const (
	V4Only IPVPreference = iota
	V6Only
	PreferV4
	PreferV6
	Force4
	Force6
)

// BadChecksumMode controls deliberate checksum corruption for IDS
// conformance testing (spec §4.1).
type BadChecksumMode uint8

const (
	ChecksumNormal BadChecksumMode = iota
	ChecksumZero
)

// CDNFilterMode controls whether addresses inside configured CDN CIDR sets
// are skipped, kept, or dropped (spec §4.3).
type CDNFilterMode uint8

const (
	CDNFilterOff CDNFilterMode = iota
	CDNFilterSkipAll
	CDNFilterWhitelist
	CDNFilterBlacklist
)

// Fragmentation controls optional IPv4/IPv6 fragmentation on emit.
type Fragmentation struct {
	Enabled  bool
	MTUBytes int // must be a multiple of 8
}

// ServiceDetectionConfig controls the service-identification state machine
// (spec §4.8).
type ServiceDetectionConfig struct {
	Enabled    bool
	Intensity  int // 0..9, default 7
	ProbePorts *scancore.PortSpec
}

// OSDetectionConfig controls OS fingerprinting (spec §4.8).
type OSDetectionConfig struct {
	Enabled             bool
	RequireOpenAndClosed bool
}

// IdleScanConfig configures an Idle (zombie) scan (spec §3).
type IdleScanConfig struct {
	Zombie       netip.Addr
	AutoDiscover bool
	CandidateSet []netip.Addr
}

// ScanConfig is the immutable, normalized scan configuration the core
// consumes (spec §3). Once constructed it must not be mutated; workers
// read it concurrently without synchronization.
type ScanConfig struct {
	ScanType       scancore.ScanType
	Targets        []scancore.Target
	Ports          *scancore.PortSpec
	TimingTemplate TimingTemplate

	MaxRatePPS uint64 // meaningful only when RateLimitRequested is set

	// RateLimitRequested is true when the operator explicitly set
	// max_rate_pps (spec §3's optional `max_rate_pps?`). It distinguishes
	// "no rate limit configured" (MaxRatePPS left at its zero value) from
	// an explicit max_rate_pps=0, which spec §8 requires to be a Config
	// error rather than a second way of spelling "unlimited".
	RateLimitRequested bool

	MaxConcurrentTargets int
	MinConcurrentTargets int

	MmsgBatchSize int // [1, 1024], default 1024

	IPVPreference IPVPreference

	Decoys DecoyConfig

	Fragmentation Fragmentation

	TTLOverride        *uint8
	BadChecksumMode    BadChecksumMode
	SourcePortOverride *uint16

	ServiceDetection ServiceDetectionConfig
	OSDetection      OSDetectionConfig

	TLSAnalysis   bool
	CDNFilterMode CDNFilterMode
	CDNSet        []netip.Prefix

	AdaptiveRateICMPBackoff bool

	Idle IdleScanConfig

	// ExcludeNetworkBroadcast controls whether IPv4 /30-and-larger CIDR
	// expansion excludes the network and broadcast addresses; /31 and /32
	// are never trimmed.
	ExcludeNetworkBroadcast bool
}

// DecoyConfig is the pre-resolution decoy configuration: a list of source
// addresses (or "auto" for IPv6 random-IID generation) with the position of
// "ME" (spec §3).
type DecoyConfig struct {
	Sources []netip.Addr
	MeIndex int
	Auto    bool
	Count   int // used when Auto is true
}
