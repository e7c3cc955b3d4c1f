package scheduler

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reconwire/scancore/internal/scancore"
	"github.com/reconwire/scancore/internal/scanconfig"
)

func TestExpandCIDR_ExcludesNetworkAndBroadcast(t *testing.T) {
	prefix := netip.MustParsePrefix("192.0.2.0/30")
	addrs, err := expandCIDR(prefix, true)
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	require.Equal(t, "192.0.2.1", addrs[0].String())
	require.Equal(t, "192.0.2.2", addrs[1].String())
}

func TestExpandCIDR_KeepsNetworkAndBroadcastWhenNotExcluded(t *testing.T) {
	prefix := netip.MustParsePrefix("192.0.2.0/30")
	addrs, err := expandCIDR(prefix, false)
	require.NoError(t, err)
	require.Len(t, addrs, 4)
}

func TestExpandCIDR_SlashThirtyOneNeverTrimmed(t *testing.T) {
	prefix := netip.MustParsePrefix("192.0.2.0/31")
	addrs, err := expandCIDR(prefix, true)
	require.NoError(t, err)
	require.Len(t, addrs, 2)
}

func TestExpandCIDR_RejectsOversizedPrefix(t *testing.T) {
	prefix := netip.MustParsePrefix("2001:db8::/64")
	_, err := expandCIDR(prefix, false)
	require.Error(t, err)
}

func TestParseTargetSpec_LiteralAddress(t *testing.T) {
	addrs, hostname, err := ParseTargetSpec(context.Background(), "10.0.0.5", scanconfig.PreferV4, false, nil)
	require.NoError(t, err)
	require.Equal(t, "", hostname)
	require.Equal(t, []netip.Addr{netip.MustParseAddr("10.0.0.5")}, addrs)
}

func TestParseTargetSpec_HostnameUsesResolver(t *testing.T) {
	resolve := func(ctx context.Context, host string) ([]netip.Addr, error) {
		return []netip.Addr{netip.MustParseAddr("198.51.100.1"), netip.MustParseAddr("2001:db8::1")}, nil
	}
	addrs, hostname, err := ParseTargetSpec(context.Background(), "example.test", scanconfig.V4Only, false, resolve)
	require.NoError(t, err)
	require.Equal(t, "example.test", hostname)
	require.Equal(t, []netip.Addr{netip.MustParseAddr("198.51.100.1")}, addrs)
}

func TestParseTargetSpec_NoMatchingFamilyErrors(t *testing.T) {
	resolve := func(ctx context.Context, host string) ([]netip.Addr, error) {
		return []netip.Addr{netip.MustParseAddr("2001:db8::1")}, nil
	}
	_, _, err := ParseTargetSpec(context.Background(), "example.test", scanconfig.V4Only, false, resolve)
	require.Error(t, err)
}

func TestKeyedPermutation_IsDeterministicForSameKey(t *testing.T) {
	p1 := KeyedPermutation(20, 42)
	p2 := KeyedPermutation(20, 42)
	require.Equal(t, p1, p2)
}

func TestKeyedPermutation_DiffersAcrossKeys(t *testing.T) {
	p1 := KeyedPermutation(50, 1)
	p2 := KeyedPermutation(50, 2)
	require.NotEqual(t, p1, p2)
}

func TestCDNFilter_SkipAllDropsMembers(t *testing.T) {
	set := []netip.Prefix{netip.MustParsePrefix("203.0.113.0/24")}
	f := NewCDNFilter(scanconfig.CDNFilterSkipAll, set)
	require.False(t, f.Allow(netip.MustParseAddr("203.0.113.5")))
	require.True(t, f.Allow(netip.MustParseAddr("198.51.100.5")))
}

func TestCDNFilter_WhitelistKeepsOnlyMembers(t *testing.T) {
	set := []netip.Prefix{netip.MustParsePrefix("203.0.113.0/24")}
	f := NewCDNFilter(scanconfig.CDNFilterWhitelist, set)
	require.True(t, f.Allow(netip.MustParseAddr("203.0.113.5")))
	require.False(t, f.Allow(netip.MustParseAddr("198.51.100.5")))
}

func TestCDNFilter_OffAllowsEverything(t *testing.T) {
	f := NewCDNFilter(scanconfig.CDNFilterOff, nil)
	require.True(t, f.Allow(netip.MustParseAddr("203.0.113.5")))
}

func TestScheduler_StreamEmitsOneHostgroupPerTarget(t *testing.T) {
	targets := []scancore.Target{
		{Addr: netip.MustParseAddr("10.0.0.1")},
		{Addr: netip.MustParseAddr("10.0.0.2")},
	}
	ports := scancore.NewPortSpec()
	ports.Add(80, scancore.ProtoTCP)
	ports.Add(443, scancore.ProtoTCP)

	sched := New(targets, ports, NewCDNFilter(scanconfig.CDNFilterOff, nil), 7, 0)
	require.Equal(t, 4, sched.TotalWorkItems())

	var groups []Hostgroup
	for hg := range sched.Stream(context.Background()) {
		groups = append(groups, hg)
	}
	require.Len(t, groups, 2)
	for _, hg := range groups {
		require.Len(t, hg.Items, 2)
	}
}

func TestScheduler_StreamAppliesCDNFilter(t *testing.T) {
	targets := []scancore.Target{
		{Addr: netip.MustParseAddr("203.0.113.1")},
		{Addr: netip.MustParseAddr("10.0.0.2")},
	}
	ports := scancore.NewPortSpec()
	ports.Add(80, scancore.ProtoTCP)

	cdn := NewCDNFilter(scanconfig.CDNFilterSkipAll, []netip.Prefix{netip.MustParsePrefix("203.0.113.0/24")})
	sched := New(targets, ports, cdn, 1, 0)

	var groups []Hostgroup
	for hg := range sched.Stream(context.Background()) {
		groups = append(groups, hg)
	}
	require.Len(t, groups, 1)
	require.Equal(t, "10.0.0.2", groups[0].Target.Addr.String())
}

func TestScheduler_StreamStopsOnCancel(t *testing.T) {
	var targets []scancore.Target
	for i := 0; i < 1000; i++ {
		targets = append(targets, scancore.Target{Addr: netip.AddrFrom4([4]byte{10, 0, byte(i >> 8), byte(i)})})
	}
	ports := scancore.NewPortSpec()
	ports.Add(80, scancore.ProtoTCP)

	sched := New(targets, ports, NewCDNFilter(scanconfig.CDNFilterOff, nil), 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	stream := sched.Stream(ctx)
	<-stream
	cancel()

	count := 0
	for range stream {
		count++
	}
	require.Less(t, count, 1000)
}
