package serviceid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectProbes_NullAlwaysFirst(t *testing.T) {
	probes := SelectProbes(80, 7)
	require.Equal(t, "null", probes[0].Name)
}

func TestSelectProbes_FiltersByIntensity(t *testing.T) {
	probes := SelectProbes(25, 0)
	for _, p := range probes {
		require.LessOrEqual(t, p.Intensity, 0)
	}
}

func TestSelectProbes_OrdersByRarity(t *testing.T) {
	probes := SelectProbes(21, 9)
	var lastRarity = -1
	for _, p := range probes {
		if p.Name == "null" {
			continue
		}
		require.GreaterOrEqual(t, p.Rarity, lastRarity)
		lastRarity = p.Rarity
	}
}

func TestIdentify_SSHBanner(t *testing.T) {
	info, ok := Identify([]byte("SSH-2.0-OpenSSH_9.6\r\n"))
	require.True(t, ok)
	require.Equal(t, "ssh", info.ServiceName)
	require.Equal(t, "2.0", info.Version)
	require.Equal(t, "OpenSSH_9.6", info.Product)
}

func TestIdentify_NoMatch(t *testing.T) {
	_, ok := Identify([]byte("garbage nonsense"))
	require.False(t, ok)
}

func TestIsHTTPSFamily(t *testing.T) {
	require.True(t, IsHTTPSFamily(443))
	require.False(t, IsHTTPSFamily(80))
}
