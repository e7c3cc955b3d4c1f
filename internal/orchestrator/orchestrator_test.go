// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package orchestrator

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/reconwire/scancore/internal/packet"
	"github.com/reconwire/scancore/internal/rawio"
	"github.com/reconwire/scancore/internal/scancore"
	"github.com/reconwire/scancore/internal/scanconfig"
)

// fakeConn is a rawio.Conn that never observes any real traffic: Receive
// always times out and SendBatch always reports full success without
// writing anywhere. That's enough to drive the TCP Connect path, which
// never touches either method for its probes, and to let Run's other
// loops idle harmlessly for scan types that do.
type fakeConn struct{}

func (fakeConn) SendBatch(ctx context.Context, frames [][]byte) rawio.SendOutcome {
	return rawio.SendOutcome{OK: len(frames), ErrorIndex: -1}
}

func (fakeConn) Receive(timeout time.Duration) (*packet.ParsedPacket, bool, error) {
	time.Sleep(timeout)
	return nil, false, nil
}

func (fakeConn) SetPortFilter(ports []uint16, proto scancore.Protocol) error { return nil }

func (fakeConn) Close() error { return nil }

func validScanConfig(scanType scancore.ScanType, addr netip.Addr) *scanconfig.ScanConfig {
	ports := scancore.NewPortSpec()
	ports.Add(1, scancore.ProtoTCP)
	return &scanconfig.ScanConfig{
		ScanType:             scanType,
		Targets:              []scancore.Target{scancore.NewTarget(addr)},
		Ports:                ports,
		TimingTemplate:       scanconfig.T4Aggressive,
		MmsgBatchSize:        1024,
		MaxConcurrentTargets: 4,
		MinConcurrentTargets: 1,
	}
}

func TestNew_RequiresScanConfig(t *testing.T) {
	_, err := New(Config{Conn: fakeConn{}})
	require.Error(t, err)
}

func TestNew_RequiresConn(t *testing.T) {
	cfg := validScanConfig(scancore.ScanSynStealth, netip.MustParseAddr("127.0.0.1"))
	_, err := New(Config{Scan: cfg})
	require.Error(t, err)
}

func TestNew_RequiresSrcAddrExceptTCPConnect(t *testing.T) {
	cfg := validScanConfig(scancore.ScanSynStealth, netip.MustParseAddr("127.0.0.1"))
	_, err := New(Config{Scan: cfg, Conn: fakeConn{}})
	require.Error(t, err, "raw scan types need an explicit source address")

	connectCfg := validScanConfig(scancore.ScanTCPConnect, netip.MustParseAddr("127.0.0.1"))
	scan, err := New(Config{Scan: connectCfg, Conn: fakeConn{}})
	require.NoError(t, err, "TCP Connect lets the kernel pick a source address")
	require.NotNil(t, scan)
}

func TestNew_RejectsInvalidScanConfig(t *testing.T) {
	cfg := validScanConfig(scancore.ScanSynStealth, netip.MustParseAddr("127.0.0.1"))
	cfg.Targets = nil
	_, err := New(Config{Scan: cfg, Conn: fakeConn{}, SrcAddr: netip.MustParseAddr("10.0.0.1")})
	require.Error(t, err)
}

// TestRun_TCPConnectOpenAndClosed drives a full Run over a real loopback
// listener: one port is open (the listener's own port), one is closed (a
// separate ephemeral port released right before the scan runs). Nothing
// in this path touches rawio.Conn or the correlator, so fakeConn only
// needs to satisfy the interface.
func TestRun_TCPConnectOpenAndClosed(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	openPort := ln.Addr().(*net.TCPAddr).Port

	closedLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := closedLn.Addr().(*net.TCPAddr).Port
	require.NoError(t, closedLn.Close())

	addr := netip.MustParseAddr("127.0.0.1")
	ports := scancore.NewPortSpec()
	ports.Add(uint16(openPort), scancore.ProtoTCP)
	ports.Add(uint16(closedPort), scancore.ProtoTCP)

	cfg := &scanconfig.ScanConfig{
		ScanType:             scancore.ScanTCPConnect,
		Targets:              []scancore.Target{scancore.NewTarget(addr)},
		Ports:                ports,
		TimingTemplate:       scanconfig.T5Insane,
		MmsgBatchSize:        1024,
		MaxConcurrentTargets: 2,
		MinConcurrentTargets: 1,
		ServiceDetection:     scanconfig.ServiceDetectionConfig{Enabled: true, Intensity: 7},
	}

	scan, err := New(Config{Scan: cfg, Conn: fakeConn{}})
	require.NoError(t, err)

	results := make(map[uint16]scancore.PortState)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range scan.Results() {
			results[r.Port] = r.State
		}
	}()

	// Service detection is on, so the open port's probe battery
	// (finalizeResult) blocks for up to probeReadTimeout against our
	// listener, which never writes anything, so give Run enough headroom
	// past that.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, scan.Run(ctx))
	<-done

	require.Equal(t, scancore.StateOpen, results[uint16(openPort)])
	require.Equal(t, scancore.StateClosed, results[uint16(closedPort)])

	summary := scan.Summary()
	require.Equal(t, 1, summary.PortsByState[scancore.StateOpen])
	require.Equal(t, 1, summary.PortsByState[scancore.StateClosed])
	require.NoError(t, scan.Close())
}

// TestNew_RegistersMetrics confirms a Scan wires its event bus and
// concurrency gate into a supplied Prometheus registry, rather than
// silently dropping MetricsRegisterer on the floor.
func TestNew_RegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := validScanConfig(scancore.ScanTCPConnect, netip.MustParseAddr("127.0.0.1"))

	scan, err := New(Config{Scan: cfg, Conn: fakeConn{}, MetricsRegisterer: reg})
	require.NoError(t, err)
	require.NotNil(t, scan)

	count, err := testutil.GatherAndCount(reg, "scancore_ratecontrol_active_targets")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestNextSourcePort_HonorsOverride(t *testing.T) {
	override := uint16(12345)
	s := &Scan{cfg: &scanconfig.ScanConfig{SourcePortOverride: &override}}
	require.Equal(t, override, s.nextSourcePort())
	require.Equal(t, override, s.nextSourcePort())
}

func TestNextSourcePort_StaysInEphemeralRange(t *testing.T) {
	s := &Scan{cfg: &scanconfig.ScanConfig{}}
	for i := 0; i < 100; i++ {
		p := s.nextSourcePort()
		require.GreaterOrEqual(t, p, uint16(40000))
		require.Less(t, int(p), 60000)
	}
}
