package scanmachine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reconwire/scancore/internal/correlator"
	"github.com/reconwire/scancore/internal/scanconfig"
	"github.com/reconwire/scancore/internal/scancore"
)

func TestSynMachine_Interpretation(t *testing.T) {
	m := For(scancore.ScanSynStealth)
	require.Equal(t, scancore.StateOpen, m.Interpret(correlator.ResponseSignal{TCPFlagsSYN: true, TCPFlagsACK: true}))
	require.Equal(t, scancore.StateClosed, m.Interpret(correlator.ResponseSignal{TCPFlagsRST: true}))
	require.Equal(t, scancore.StateFiltered, m.Interpret(correlator.ResponseSignal{}))
	require.Equal(t, scancore.StateFiltered, m.TimeoutState())
}

func TestUDPMachine_Interpretation(t *testing.T) {
	m := For(scancore.ScanUDP)
	require.Equal(t, scancore.StateOpen, m.Interpret(correlator.ResponseSignal{IsUDP: true}))
	require.Equal(t, scancore.StateClosed, m.Interpret(correlator.ResponseSignal{IsICMP: true, ICMPType: 3, ICMPCode: 3}))
	require.Equal(t, scancore.StateOpenFiltered, m.Interpret(correlator.ResponseSignal{}))
	require.Equal(t, scancore.StateOpenFiltered, m.TimeoutState())
}

func TestUDPMachine_ProtocolAwarePayloads(t *testing.T) {
	m := For(scancore.ScanUDP)
	require.NotEmpty(t, m.Payload(53))
	require.NotEmpty(t, m.Payload(5353))
	require.NotEmpty(t, m.Payload(161))
	require.NotEmpty(t, m.Payload(123))
	require.NotEmpty(t, m.Payload(547))
	require.NotEmpty(t, m.Payload(137))
	require.Nil(t, m.Payload(12345))
}

func TestNTPPayload_IsRFC5905ClientRequest(t *testing.T) {
	payload := ntpMode3Payload()
	require.Len(t, payload, 48)
	require.Equal(t, byte(0x1B), payload[0])
}

func TestFlagMachines_Interpretation(t *testing.T) {
	for _, st := range []scancore.ScanType{scancore.ScanFin, scancore.ScanNull, scancore.ScanXmas} {
		m := For(st)
		require.Equal(t, st, m.ScanType())
		require.Equal(t, scancore.StateClosed, m.Interpret(correlator.ResponseSignal{TCPFlagsRST: true}))
		require.Equal(t, scancore.StateOpenFiltered, m.Interpret(correlator.ResponseSignal{}))
	}
}

func TestAckMachine_Interpretation(t *testing.T) {
	m := For(scancore.ScanAck)
	require.Equal(t, scancore.StateUnfiltered, m.Interpret(correlator.ResponseSignal{TCPFlagsRST: true}))
	require.Equal(t, scancore.StateFiltered, m.Interpret(correlator.ResponseSignal{}))
}

func TestDiscoveryMachine_Interpretation(t *testing.T) {
	m := For(scancore.ScanDiscovery)
	require.Equal(t, scancore.StateOpen, m.Interpret(correlator.ResponseSignal{IsICMP: true, ICMPType: 0}))
	require.Equal(t, scancore.StateOpen, m.Interpret(correlator.ResponseSignal{TCPFlagsRST: true}))
	require.Equal(t, scancore.StateClosed, m.Interpret(correlator.ResponseSignal{}))
}

func TestWaitWindow_ScalesWithTimingProfile(t *testing.T) {
	profile := scanconfig.Profiles[scanconfig.T3Normal]
	m := For(scancore.ScanSynStealth)
	require.Greater(t, m.WaitWindow(profile), time.Duration(0))
}

func TestCorrelatorResolveFuncAdapter(t *testing.T) {
	m := For(scancore.ScanSynStealth)
	fn := ResolveFunc(m)
	state := fn(scancore.Probe{}, correlator.ResponseSignal{TCPFlagsRST: true})
	require.Equal(t, scancore.StateClosed, state)
}
