package scanner

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reconwire/scancore/internal/scancore"
)

func TestMdnsServiceToName_StripsLeadingUnderscoresAndSuffix(t *testing.T) {
	require.Equal(t, "ssh", mdnsServiceToName("_ssh._tcp.local"))
	require.Equal(t, "googlecast", mdnsServiceToName("_googlecast._tcp"))
}

func TestPassiveFingerprint_EnrichServiceOnlyFillsEmptyFields(t *testing.T) {
	fp := newPassiveFingerprint(netip.MustParseAddr("192.0.2.1"))
	fp.addMDNS("", "_ssh._tcp.local")
	fp.DHCPv4Vendor = "MSFT 5.0"

	svc := &scancore.ServiceInfo{}
	fp.EnrichService(svc)
	require.Equal(t, "ssh", svc.ServiceName)
	require.Equal(t, "MSFT 5.0", svc.OSHint)

	svc2 := &scancore.ServiceInfo{ServiceName: "http", OSHint: "Linux"}
	fp.EnrichService(svc2)
	require.Equal(t, "http", svc2.ServiceName)
	require.Equal(t, "Linux", svc2.OSHint)
}

func TestPassiveFingerprint_AddMDNSDeduplicates(t *testing.T) {
	fp := newPassiveFingerprint(netip.MustParseAddr("192.0.2.1"))
	fp.addMDNS("host.local", "")
	fp.addMDNS("host.local", "")
	require.Len(t, fp.MDNSNames, 1)
}

func TestStore_EnrichNoOpForUnknownAddr(t *testing.T) {
	store := NewStore()
	svc := &scancore.ServiceInfo{}
	store.Enrich(netip.MustParseAddr("192.0.2.9"), svc)
	require.Equal(t, scancore.ServiceInfo{}, *svc)
}
