package decoy

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reconwire/scancore/internal/scancore"
)

func TestBuild_PlacesRealAtMeIndex(t *testing.T) {
	decoys := []netip.Addr{
		netip.MustParseAddr("10.0.0.1"),
		netip.MustParseAddr("10.0.0.2"),
	}
	real := netip.MustParseAddr("10.0.0.99")

	set := Build(decoys, real, 1)
	require.Equal(t, 3, set.Len())
	require.Equal(t, real, set.Addrs[1])
	require.Equal(t, real, set.Real())
}

func TestBuild_ClampsOutOfRangeIndex(t *testing.T) {
	real := netip.MustParseAddr("10.0.0.99")
	set := Build(nil, real, 5)
	require.Equal(t, 1, set.Len())
	require.Equal(t, real, set.Real())
}

func TestBuildAutoV6_StaysWithinTargetPrefixAndExcludesReserved(t *testing.T) {
	target := netip.MustParseAddr("2001:470:abcd::1")
	real := netip.MustParseAddr("2001:470:abcd::ffff")

	set, err := BuildAutoV6(target, 20, real, 0)
	require.NoError(t, err)
	require.Equal(t, 21, set.Len())

	prefix := netip.PrefixFrom(target, 64).Masked()
	for i, addr := range set.Addrs {
		if i == set.MeIndex {
			continue
		}
		require.True(t, prefix.Contains(addr), "decoy %s not within target /64", addr)
		require.False(t, isReserved(addr), "decoy %s is in a reserved range", addr)
	}
}

func TestRateBudgetPer_DividesByKPlusOne(t *testing.T) {
	set := scancore.DecoySet{Addrs: make([]netip.Addr, 4)}
	require.Equal(t, uint64(250), RateBudgetPer(1000, set))
}

func TestRateBudgetPer_ZeroLenIsNoOp(t *testing.T) {
	require.Equal(t, uint64(1000), RateBudgetPer(1000, scancore.DecoySet{}))
}
