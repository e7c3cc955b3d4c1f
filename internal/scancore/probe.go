package scancore

import (
	"net/netip"
	"time"
)

// ScanType enumerates the probe semantics a Scan runs (spec §3/§4.4).
type ScanType uint8

const (
	ScanSynStealth ScanType = iota
	ScanTCPConnect
	ScanUDP
	ScanFin
	ScanNull
	ScanXmas
	ScanAck
	ScanIdle
	ScanDiscovery
	ScanDecoy
)

func (s ScanType) String() string {
	switch s {
	case ScanSynStealth:
		return "syn"
	case ScanTCPConnect:
		return "connect"
	case ScanUDP:
		return "udp"
	case ScanFin:
		return "fin"
	case ScanNull:
		return "null"
	case ScanXmas:
		return "xmas"
	case ScanAck:
		return "ack"
	case ScanIdle:
		return "idle"
	case ScanDiscovery:
		return "discovery"
	case ScanDecoy:
		return "decoy"
	default:
		return "unknown"
	}
}

// Probe is a single transmitted packet unit.
type Probe struct {
	Fingerprint Fingerprint
	ScanType    ScanType
	Target      Target
	Port        uint16
	Payload     []byte
	SentAt      time.Time
	Retries     int
}

// ZombiePattern classifies how a candidate zombie host's IPID/Fragment-ID
// counter evolves between consecutive probes (spec §4.10).
type ZombiePattern uint8

const (
	ZombieUnknown ZombiePattern = iota
	ZombieSequential
	ZombieRandom
	ZombiePerHost
)

// ZombieQuality rates a zombie's suitability based on response latency and
// jitter (spec §4.10).
type ZombieQuality uint8

const (
	QualityUnusable ZombieQuality = iota
	QualityPoor
	QualityFair
	QualityGood
	QualityExcellent
)

func (q ZombieQuality) String() string {
	switch q {
	case QualityExcellent:
		return "excellent"
	case QualityGood:
		return "good"
	case QualityFair:
		return "fair"
	case QualityPoor:
		return "poor"
	default:
		return "unusable"
	}
}

// Zombie is a third-party host with a predictable IP-ID / Fragment-ID
// counter used for idle scanning (spec §3).
type Zombie struct {
	Addr             netip.Addr
	Pattern          ZombiePattern
	BaselineID       uint32
	LastProbeTime    time.Time
	ReliabilityScore float64
	Quality          ZombieQuality
}

// DecoySet is the ordered list of K+1 source addresses emitted per probe:
// K spoofed decoys plus the real source ("ME") at MeIndex (spec §3/§4.11).
type DecoySet struct {
	Addrs   []netip.Addr
	MeIndex int
}

// Len returns K+1, the total number of packets emitted per probe.
func (d DecoySet) Len() int { return len(d.Addrs) }

// Real returns the operator's real source address.
func (d DecoySet) Real() netip.Addr { return d.Addrs[d.MeIndex] }
