package idlescan

import (
	"net/netip"
	"time"

	"github.com/reconwire/scancore/internal/scancore"
)

// Baseline is one observed (IPID-or-FragmentID, response time) sample
// collected during zombie qualification probing.
type Baseline struct {
	ID       uint16
	Observed time.Time
	RTT      time.Duration
}

// ClassifyPattern inspects a run of 10 baseline probes (spec §4.10 "probe
// pattern with 10 baseline probes") and classifies the zombie candidate's
// ID-increment pattern as Sequential, Random, or PerHost. Only Sequential
// qualifies for idle scanning.
func ClassifyPattern(samples []Baseline) scancore.ZombiePattern {
	if len(samples) < 2 {
		return scancore.ZombieUnknown
	}

	incrementing := true
	var deltas []uint16
	for i := 1; i < len(samples); i++ {
		d := IDDelta(samples[i-1].ID, samples[i].ID)
		deltas = append(deltas, d)
		if d == 0 || d > 1000 {
			incrementing = false
		}
	}
	if incrementing {
		return scancore.ZombieSequential
	}

	// A PerHost counter still increments but shares the counter across
	// many connections to other hosts concurrently, producing larger,
	// still-positive but erratic steps rather than the near-1-per-probe
	// cadence of a pure Sequential counter. Under 16-bit wraparound a delta
	// of 0x8000 or more is a backward step, so it does not count as positive.
	var allPositive = true
	for _, d := range deltas {
		if d == 0 || d >= 0x8000 {
			allPositive = false
			break
		}
	}
	if allPositive {
		return scancore.ZombiePerHost
	}
	return scancore.ZombieRandom
}

// RateQuality converts mean response time and jitter into the five-level
// rating of spec §4.10 ("Excellent"/"Good"/"Fair"/"Poor"/"Unusable"). The
// thresholds favor low, stable latency, since idle scanning needs the
// zombie's counter to be quiescent between the scanner's own probes.
func RateQuality(mean, jitter time.Duration) scancore.ZombieQuality {
	switch {
	case mean < 20*time.Millisecond && jitter < 5*time.Millisecond:
		return scancore.QualityExcellent
	case mean < 75*time.Millisecond && jitter < 20*time.Millisecond:
		return scancore.QualityGood
	case mean < 200*time.Millisecond && jitter < 50*time.Millisecond:
		return scancore.QualityFair
	case mean < 500*time.Millisecond:
		return scancore.QualityPoor
	default:
		return scancore.QualityUnusable
	}
}

// Qualify builds a full Zombie record from a qualification run.
func Qualify(addr netip.Addr, samples []Baseline) scancore.Zombie {
	pattern := ClassifyPattern(samples)

	rtts := make([]float64, len(samples))
	for i, s := range samples {
		rtts[i] = float64(s.RTT)
	}
	meanRTT := time.Duration(Mean(rtts))
	jitterRTT := time.Duration(Jitter(rtts))

	var baselineID uint16
	var lastProbe time.Time
	if len(samples) > 0 {
		last := samples[len(samples)-1]
		baselineID = last.ID
		lastProbe = last.Observed
	}

	reliability := 0.0
	if pattern == scancore.ZombieSequential {
		reliability = 1.0
	}

	return scancore.Zombie{
		Addr:             addr,
		Pattern:          pattern,
		BaselineID:       uint32(baselineID),
		LastProbeTime:    lastProbe,
		ReliabilityScore: reliability,
		Quality:          RateQuality(meanRTT, jitterRTT),
	}
}

// Qualifies reports whether a zombie candidate is usable for idle scanning
// (spec §4.10: "Only Sequential qualifies").
func Qualifies(z scancore.Zombie) bool {
	return z.Pattern == scancore.ZombieSequential
}

// SelectBest picks the highest-quality reachable Sequential zombie from a
// set of qualification results, used by automatic zombie discovery (spec
// §4.10: "retain Sequentials, pick highest-quality reachable host").
func SelectBest(candidates []scancore.Zombie) (scancore.Zombie, bool) {
	var best scancore.Zombie
	found := false
	for _, c := range candidates {
		if !Qualifies(c) {
			continue
		}
		if !found || c.Quality > best.Quality {
			best = c
			found = true
		}
	}
	return best, found
}
