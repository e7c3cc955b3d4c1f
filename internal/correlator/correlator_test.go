package correlator

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reconwire/scancore/internal/scanerrors"
	"github.com/reconwire/scancore/internal/scancore"
)

func testProbe(t *testing.T, token uint32) scancore.Probe {
	t.Helper()
	var secret scancore.Secret
	secret[0] = 1
	src := netip.MustParseAddr("10.0.0.1")
	dst := netip.MustParseAddr("10.0.0.2")
	fp := secret.NewFingerprint(src, 40000, dst, 80, scancore.ProtoTCP)
	fp.Token = token
	return scancore.Probe{
		Fingerprint: fp,
		ScanType:    scancore.ScanSynStealth,
		Target:      scancore.Target{Addr: dst},
		Port:        80,
		SentAt:      time.Now(),
	}
}

func synAckResolver(p scancore.Probe, sig ResponseSignal) scancore.PortState {
	if sig.TCPFlagsRST {
		return scancore.StateClosed
	}
	if sig.TCPFlagsSYN && sig.TCPFlagsACK {
		return scancore.StateOpen
	}
	return scancore.StateUnknown
}

func TestRegisterAndResolve(t *testing.T) {
	c := New(synAckResolver)
	p := testProbe(t, 1)
	require.NoError(t, c.Register(p, time.Second))
	require.Equal(t, 1, c.Pending())

	result, ok := c.Resolve(p.Fingerprint, ResponseSignal{TCPFlagsSYN: true, TCPFlagsACK: true}, time.Now())
	require.True(t, ok)
	require.Equal(t, scancore.StateOpen, result.State)
	require.Equal(t, 0, c.Pending())
}

func TestResolve_StrayPacketIncrementsCounter(t *testing.T) {
	c := New(synAckResolver)
	_, ok := c.Resolve(scancore.Fingerprint{Token: 99}, ResponseSignal{}, time.Now())
	require.False(t, ok)
	require.Equal(t, uint64(1), c.StrayPackets())
}

func TestRegister_CollisionIsFatal(t *testing.T) {
	c := New(synAckResolver)
	p := testProbe(t, 2)
	require.NoError(t, c.Register(p, time.Second))

	err := c.Register(p, time.Second)
	require.Error(t, err)
	require.Equal(t, scanerrors.KindFingerprintCollision, scanerrors.GetKind(err))

	var se *scanerrors.Error
	require.True(t, scanerrors.As(err, &se))
	require.True(t, se.Fatal())
	require.Equal(t, uint64(1), c.Collisions())
}

func TestSweep_TimesOutStaleEntries(t *testing.T) {
	c := New(synAckResolver)
	p := testProbe(t, 3)
	p.SentAt = time.Now().Add(-time.Hour)
	require.NoError(t, c.Register(p, time.Second))

	results := c.Sweep(time.Now(), func(scancore.Probe) scancore.PortState {
		return scancore.StateFiltered
	})
	require.Len(t, results, 1)
	require.Equal(t, scancore.StateFiltered, results[0].State)
	require.Equal(t, 0, c.Pending())
}

func TestSweep_LeavesFreshEntriesPending(t *testing.T) {
	c := New(synAckResolver)
	p := testProbe(t, 4)
	require.NoError(t, c.Register(p, time.Hour))

	results := c.Sweep(time.Now(), func(scancore.Probe) scancore.PortState {
		return scancore.StateFiltered
	})
	require.Empty(t, results)
	require.Equal(t, 1, c.Pending())
}

func TestFlush_ReturnsCancelledResults(t *testing.T) {
	c := New(synAckResolver)
	require.NoError(t, c.Register(testProbe(t, 5), time.Hour))
	require.NoError(t, c.Register(testProbe(t, 6), time.Hour))

	results := c.Flush(time.Now())
	require.Len(t, results, 2)
	for _, r := range results {
		require.True(t, r.Cancelled)
	}
	require.Equal(t, 0, c.Pending())
}
