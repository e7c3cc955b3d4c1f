package rawio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reconwire/scancore/internal/packet"
	"github.com/reconwire/scancore/internal/scancore"
)

func TestBuildProtocolFilter_AssemblesForTCPAndUDP(t *testing.T) {
	tcpProg, err := BuildProtocolFilter(scancore.ProtoTCP)
	require.NoError(t, err)
	require.NotEmpty(t, tcpProg)

	udpProg, err := BuildProtocolFilter(scancore.ProtoUDP)
	require.NoError(t, err)
	require.NotEmpty(t, udpProg)
}

func TestBuildProtocolFilter_RejectsUnsupportedProtocol(t *testing.T) {
	_, err := BuildProtocolFilter(scancore.ProtoICMP)
	require.Error(t, err)
}

func TestPortSet_EmptyMatchesEverything(t *testing.T) {
	set := NewPortSet(scancore.ProtoTCP, nil)
	require.True(t, set.MatchesTCP(12345, 80))
}

func TestPortSet_MatchesEitherDirection(t *testing.T) {
	set := NewPortSet(scancore.ProtoTCP, []uint16{443})
	require.True(t, set.MatchesTCP(443, 55000))
	require.True(t, set.MatchesTCP(55000, 443))
	require.False(t, set.MatchesTCP(8080, 9090))
}

func TestPortSet_WrongProtocolNeverMatches(t *testing.T) {
	set := NewPortSet(scancore.ProtoTCP, []uint16{53})
	require.False(t, set.MatchesUDP(53, 1234))
}

type fakeConn struct {
	packets []*packet.ParsedPacket
	idx     int
}

func (f *fakeConn) SendBatch(ctx context.Context, frames [][]byte) SendOutcome {
	return SendOutcome{OK: len(frames), ErrorIndex: -1}
}

func (f *fakeConn) Receive(timeout time.Duration) (*packet.ParsedPacket, bool, error) {
	if f.idx >= len(f.packets) {
		return nil, false, nil
	}
	pp := f.packets[f.idx]
	f.idx++
	return pp, true, nil
}

func (f *fakeConn) SetPortFilter(ports []uint16, proto scancore.Protocol) error { return nil }
func (f *fakeConn) Close() error                                               { return nil }

func TestPortFilteringConn_SkipsNonMatchingPackets(t *testing.T) {
	fake := &fakeConn{packets: []*packet.ParsedPacket{
		{TCP: &packet.ParsedTCP{SrcPort: 9999, DstPort: 8888}},
		{TCP: &packet.ParsedTCP{SrcPort: 40000, DstPort: 443}},
	}}
	conn := NewPortFilteringConn(fake, NewPortSet(scancore.ProtoTCP, []uint16{443}))

	pp, ok, err := conn.Receive(time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint16(443), pp.TCP.DstPort)
}

func TestPortFilteringConn_TimesOutWithNoMatch(t *testing.T) {
	fake := &fakeConn{packets: []*packet.ParsedPacket{
		{TCP: &packet.ParsedTCP{SrcPort: 1, DstPort: 2}},
	}}
	conn := NewPortFilteringConn(fake, NewPortSet(scancore.ProtoTCP, []uint16{443}))

	pp, ok, err := conn.Receive(5 * time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, pp)
}

func TestPortFilteringConn_AlwaysPassesICMP(t *testing.T) {
	fake := &fakeConn{packets: []*packet.ParsedPacket{
		{ICMPv4: &packet.ParsedICMPv4{Type: 3, Code: 3}},
	}}
	conn := NewPortFilteringConn(fake, NewPortSet(scancore.ProtoTCP, []uint16{443}))

	_, ok, err := conn.Receive(time.Second)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSendOutcome_PartialReportsResumePoint(t *testing.T) {
	outcome := SendOutcome{OK: 3, ErrorIndex: 3, Err: errors.New("boom")}
	require.True(t, outcome.Partial())

	full := SendOutcome{OK: 10, ErrorIndex: -1}
	require.False(t, full.Partial())
}
