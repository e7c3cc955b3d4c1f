package osid

import "github.com/reconwire/scancore/internal/scancore"

// Features is the set of observed probe characteristics extracted from
// the 16-probe battery's responses, feeding the weighted signature match.
type Features struct {
	WindowSizes  map[ProbeKind]uint16
	ISNSamples   []uint32
	TSOptionSeen bool
	ECNEchoed    bool
	DFSet        bool
	TTLObserved  uint8
}

// Signature is one entry in the OS fingerprint database: a named
// OS/family/generation with the feature values it expects. It carries no
// per-feature weights: Score gives each scored dimension an equal share,
// and ExpectDF is not scored.
type Signature struct {
	Name           string
	Family         string
	Generation     string
	ExpectWindow   map[ProbeKind]uint16
	ExpectTS       bool
	ExpectECN      bool
	ExpectDF       bool
	ExpectTTLRange [2]uint8
}

// DefaultSignatures is a small representative OS signature database. Real
// deployments load a much larger corpus (akin to nmap-os-db); this set
// exercises the full matching algorithm end to end.
var DefaultSignatures = []Signature{
	{
		Name: "Linux 5.x/6.x", Family: "Linux", Generation: "5.x-6.x",
		ExpectWindow:   map[ProbeKind]uint16{ProbeSEQ1: 64240},
		ExpectTS:       true,
		ExpectECN:      true,
		ExpectDF:       true,
		ExpectTTLRange: [2]uint8{60, 64},
	},
	{
		Name: "Windows 10/11", Family: "Windows", Generation: "10-11",
		ExpectWindow:   map[ProbeKind]uint16{ProbeSEQ1: 65535},
		ExpectTS:       false,
		ExpectECN:      false,
		ExpectDF:       true,
		ExpectTTLRange: [2]uint8{124, 128},
	},
	{
		Name: "FreeBSD", Family: "BSD", Generation: "12.x-14.x",
		ExpectWindow:   map[ProbeKind]uint16{ProbeSEQ1: 65535},
		ExpectTS:       true,
		ExpectECN:      true,
		ExpectDF:       true,
		ExpectTTLRange: [2]uint8{60, 64},
	},
}

// Score weighs features against a Signature, returning a 0..100 match
// confidence. Each matching dimension contributes a fixed share of the
// total so the score degrades gracefully under partial observation
// (spec §4.8: "accuracy is reported, not promised").
func Score(f Features, sig Signature) int {
	const dims = 4
	share := 100 / dims
	score := 0

	if w, ok := f.WindowSizes[ProbeSEQ1]; ok {
		if want, ok := sig.ExpectWindow[ProbeSEQ1]; ok && w == want {
			score += share
		}
	}
	if f.TSOptionSeen == sig.ExpectTS {
		score += share
	}
	if f.ECNEchoed == sig.ExpectECN {
		score += share
	}
	if f.TTLObserved >= sig.ExpectTTLRange[0] && f.TTLObserved <= sig.ExpectTTLRange[1] {
		score += share
	}
	return score
}

// Match scores Features against every signature in db and returns the
// best match as an OSInfo, or ok=false if db is empty.
func Match(f Features, db []Signature) (scancore.OSInfo, bool) {
	if len(db) == 0 {
		return scancore.OSInfo{}, false
	}

	best := db[0]
	bestScore := Score(f, best)
	for _, sig := range db[1:] {
		s := Score(f, sig)
		if s > bestScore {
			best = sig
			bestScore = s
		}
	}

	return scancore.OSInfo{
		Name:       best.Name,
		Family:     best.Family,
		Generation: best.Generation,
		Confidence: bestScore,
		Signature:  best.Name,
	}, true
}
