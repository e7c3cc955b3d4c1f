package scanconfig

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reconwire/scancore/internal/scancore"
)

func validConfig() *ScanConfig {
	ports := scancore.NewPortSpec()
	ports.Add(80, scancore.ProtoTCP)
	return &ScanConfig{
		ScanType:             scancore.ScanSynStealth,
		Targets:              []scancore.Target{scancore.NewTarget(netip.MustParseAddr("127.0.0.1"))},
		Ports:                ports,
		MmsgBatchSize:        1024,
		MaxConcurrentTargets: 10,
		MinConcurrentTargets: 1,
	}
}

func TestValidate_Empty(t *testing.T) {
	errs := validConfig().Validate()
	require.False(t, errs.HasErrors(), "expected no errors, got %v", errs)
}

func TestValidate_NoTargets(t *testing.T) {
	cfg := validConfig()
	cfg.Targets = nil
	errs := cfg.Validate()
	require.True(t, errs.HasErrors())
}

func TestValidate_BadBatchSize(t *testing.T) {
	cfg := validConfig()
	cfg.MmsgBatchSize = 0
	errs := cfg.Validate()
	require.True(t, errs.HasErrors())

	cfg.MmsgBatchSize = 2000
	errs = cfg.Validate()
	require.True(t, errs.HasErrors())
}

func TestValidate_FragmentationMTU(t *testing.T) {
	cfg := validConfig()
	cfg.Fragmentation = Fragmentation{Enabled: true, MTUBytes: 1501}
	errs := cfg.Validate()
	require.True(t, errs.HasErrors())

	cfg.Fragmentation.MTUBytes = 1496
	errs = cfg.Validate()
	require.False(t, errs.HasErrors())
}

func TestValidate_IPv6OnlyConflictsWithIPv4Literal(t *testing.T) {
	cfg := validConfig()
	cfg.IPVPreference = V6Only
	errs := cfg.Validate()
	require.True(t, errs.HasErrors())
}

func TestValidate_MinExceedsMax(t *testing.T) {
	cfg := validConfig()
	cfg.MaxConcurrentTargets = 5
	cfg.MinConcurrentTargets = 10
	errs := cfg.Validate()
	require.True(t, errs.HasErrors())
}

func TestValidate_IdleRequiresZombie(t *testing.T) {
	cfg := validConfig()
	cfg.ScanType = scancore.ScanIdle
	errs := cfg.Validate()
	require.True(t, errs.HasErrors())

	cfg.Idle.AutoDiscover = true
	errs = cfg.Validate()
	require.False(t, errs.HasErrors())
}
