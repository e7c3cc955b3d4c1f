// Package idlescan implements zombie (idle) scanning: using a third-party
// host's predictable IP-ID/Fragment-ID counter as a side channel to infer
// a target port's state without any packet that carries the real scanner's
// source address (spec §4.10).
package idlescan

import (
	"math"

	"github.com/reconwire/scancore/internal/scancore"
)

// IDDelta computes the 16-bit wrap-aware distance from baseline to after,
// i.e. how many times the counter incremented between two samples.
// baseline=65534, after=1 wraps through 0 and yields Δ=3, not 2.
func IDDelta(baseline, after uint16) uint16 {
	return after - baseline // unsigned wraparound is exactly mod-65536 subtraction
}

// Outcome classifies a single idle-scan probe round per spec §4.10:
// Δ==1 -> Closed, Δ==2 -> Open, Δ>=3 -> interference (retry, else Unknown).
type Outcome uint8

const (
	OutcomeRetry Outcome = iota
	OutcomeClosed
	OutcomeOpen
	OutcomeUnknown
)

// Classify interprets a single delta measurement.
func Classify(delta uint16) Outcome {
	switch delta {
	case 1:
		return OutcomeClosed
	case 2:
		return OutcomeOpen
	default:
		return OutcomeRetry
	}
}

// ToPortState converts a final (non-retry) Outcome to a PortState.
func (o Outcome) ToPortState() scancore.PortState {
	switch o {
	case OutcomeClosed:
		return scancore.StateClosed
	case OutcomeOpen:
		return scancore.StateOpen
	default:
		return scancore.StateUnknown
	}
}

// Probe runs the three-step IPID side channel against a zombie for a
// single target port, retrying on interference up to maxRetries times
// (spec §4.10 step interpretation: "Δ≥3 → interference, retry up to
// max_retries, else Unknown"). measure is supplied by the orchestrator and
// performs the actual baseline/spoof/remeasure network round trip,
// returning the observed (baseline, after) ID pair for one attempt.
func Probe(maxRetries int, measure func() (baseline, after uint16, err error)) (scancore.PortState, error) {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		baseline, after, err := measure()
		if err != nil {
			return scancore.StateUnknown, err
		}
		delta := IDDelta(baseline, after)
		outcome := Classify(delta)
		if outcome == OutcomeRetry {
			continue
		}
		return outcome.ToPortState(), nil
	}
	return scancore.StateUnknown, nil
}

// Jitter computes the sample standard deviation of a set of response-time
// observations in the same unit as the input (spec §4.10 "quality rating
// by mean response + jitter").
func Jitter(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(len(samples))

	var variance float64
	for _, s := range samples {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(samples) - 1)
	return math.Sqrt(variance)
}

// Mean computes the arithmetic mean of a set of samples, 0 for an empty set.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}
