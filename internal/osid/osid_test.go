package osid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllProbes_ReturnsSixteenProbes(t *testing.T) {
	probes := AllProbes(80, 81)
	require.Len(t, probes, ProbeCount)
	require.Equal(t, 16, ProbeCount)
}

func TestProbeKind_String(t *testing.T) {
	require.Equal(t, "SEQ1", ProbeSEQ1.String())
	require.Equal(t, "U1", ProbeU1.String())
}

func TestScore_PerfectMatch(t *testing.T) {
	sig := DefaultSignatures[0] // Linux
	f := Features{
		WindowSizes:  map[ProbeKind]uint16{ProbeSEQ1: 64240},
		TSOptionSeen: true,
		ECNEchoed:    true,
		TTLObserved:  64,
	}
	require.Equal(t, 100, Score(f, sig))
}

func TestScore_PartialMatch(t *testing.T) {
	sig := DefaultSignatures[0]
	f := Features{TTLObserved: 64}
	score := Score(f, sig)
	require.Greater(t, score, 0)
	require.Less(t, score, 100)
}

func TestMatch_PicksBestSignature(t *testing.T) {
	f := Features{
		WindowSizes: map[ProbeKind]uint16{ProbeSEQ1: 65535},
		TSOptionSeen: false,
		ECNEchoed:    false,
		TTLObserved:  128,
	}
	info, ok := Match(f, DefaultSignatures)
	require.True(t, ok)
	require.Equal(t, "Windows 10/11", info.Name)
}

func TestMatch_EmptyDB(t *testing.T) {
	_, ok := Match(Features{}, nil)
	require.False(t, ok)
}
