package pluginhost

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManifest_HasReportsDeclaredCapabilities(t *testing.T) {
	m := Manifest{Capabilities: []Capability{CapabilityNetwork, CapabilityDatabase}}

	require.True(t, m.Has(CapabilityNetwork))
	require.True(t, m.Has(CapabilityDatabase))
	require.False(t, m.Has(CapabilityFilesystem))
	require.False(t, m.Has(CapabilitySystem))
}

func TestManifest_BudgetsFallBackToDefaults(t *testing.T) {
	m := Manifest{}
	require.Equal(t, DefaultCPUBudget, m.cpuBudget())
	require.Equal(t, DefaultWallBudget, m.wallBudget())
}

func TestManifest_ExplicitBudgetsOverrideDefaults(t *testing.T) {
	m := Manifest{CPUBudget: 10 * time.Millisecond, WallBudget: 25 * time.Millisecond}
	require.Equal(t, 10*time.Millisecond, m.cpuBudget())
	require.Equal(t, 25*time.Millisecond, m.wallBudget())
}
