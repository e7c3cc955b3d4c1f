package idlescan

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reconwire/scancore/internal/scancore"
)

func TestIDDelta_WrapsAt16Bits(t *testing.T) {
	require.Equal(t, uint16(2), IDDelta(65535, 1))
	require.Equal(t, uint16(1), IDDelta(100, 101))
}

func TestClassify(t *testing.T) {
	require.Equal(t, OutcomeClosed, Classify(1))
	require.Equal(t, OutcomeOpen, Classify(2))
	require.Equal(t, OutcomeRetry, Classify(3))
	require.Equal(t, OutcomeRetry, Classify(0))
}

func TestProbe_ResolvesOnFirstCleanDelta(t *testing.T) {
	calls := 0
	state, err := Probe(3, func() (uint16, uint16, error) {
		calls++
		return 10, 12, nil
	})
	require.NoError(t, err)
	require.Equal(t, scancore.StateOpen, state)
	require.Equal(t, 1, calls)
}

func TestProbe_RetriesOnInterferenceThenUnknown(t *testing.T) {
	calls := 0
	state, err := Probe(2, func() (uint16, uint16, error) {
		calls++
		return 10, 15, nil // delta=5, always interference
	})
	require.NoError(t, err)
	require.Equal(t, scancore.StateUnknown, state)
	require.Equal(t, 3, calls) // initial + 2 retries
}

func TestProbe_PropagatesMeasureError(t *testing.T) {
	_, err := Probe(1, func() (uint16, uint16, error) {
		return 0, 0, errors.New("network unreachable")
	})
	require.Error(t, err)
}

func TestClassifyPattern_Sequential(t *testing.T) {
	samples := make([]Baseline, 10)
	for i := range samples {
		samples[i] = Baseline{ID: uint16(i + 1)}
	}
	require.Equal(t, scancore.ZombieSequential, ClassifyPattern(samples))
}

func TestClassifyPattern_Random(t *testing.T) {
	ids := []uint16{100, 50000, 200, 60000, 300}
	samples := make([]Baseline, len(ids))
	for i, id := range ids {
		samples[i] = Baseline{ID: id}
	}
	require.Equal(t, scancore.ZombieRandom, ClassifyPattern(samples))
}

func TestRateQuality_Thresholds(t *testing.T) {
	require.Equal(t, scancore.QualityExcellent, RateQuality(5*time.Millisecond, time.Millisecond))
	require.Equal(t, scancore.QualityUnusable, RateQuality(time.Second, time.Millisecond))
}

func TestQualify_SequentialProducesReliableZombie(t *testing.T) {
	addr := netip.MustParseAddr("192.0.2.1")
	samples := []Baseline{
		{ID: 1, RTT: 5 * time.Millisecond},
		{ID: 2, RTT: 6 * time.Millisecond},
		{ID: 3, RTT: 5 * time.Millisecond},
	}
	z := Qualify(addr, samples)
	require.Equal(t, scancore.ZombieSequential, z.Pattern)
	require.True(t, Qualifies(z))
	require.Equal(t, 1.0, z.ReliabilityScore)
}

func TestSelectBest_PicksHighestQualitySequential(t *testing.T) {
	good := scancore.Zombie{Addr: netip.MustParseAddr("192.0.2.2"), Pattern: scancore.ZombieSequential, Quality: scancore.QualityGood}
	excellent := scancore.Zombie{Addr: netip.MustParseAddr("192.0.2.3"), Pattern: scancore.ZombieSequential, Quality: scancore.QualityExcellent}
	random := scancore.Zombie{Addr: netip.MustParseAddr("192.0.2.4"), Pattern: scancore.ZombieRandom, Quality: scancore.QualityExcellent}

	best, ok := SelectBest([]scancore.Zombie{good, random, excellent})
	require.True(t, ok)
	require.Equal(t, excellent.Addr, best.Addr)
}

func TestSelectBest_NoSequentialCandidates(t *testing.T) {
	_, ok := SelectBest([]scancore.Zombie{{Pattern: scancore.ZombieRandom}})
	require.False(t, ok)
}
