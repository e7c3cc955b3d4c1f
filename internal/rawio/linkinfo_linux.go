//go:build linux

package rawio

import (
	"fmt"

	"github.com/safchain/ethtool"
	"github.com/vishvananda/netlink"
)

// LinkMTU returns the configured MTU for iface, queried over netlink
// rather than net.Interface.MTU, so fragmentation threshold decisions
// (spec §4.1) see the same answer iproute2 would report rather than
// whatever Go's net package happened to cache at interface enumeration.
func LinkMTU(ifaceName string) (int, error) {
	link, err := netlink.LinkByName(ifaceName)
	if err != nil {
		return 0, fmt.Errorf("rawio: resolving link %s: %w", ifaceName, err)
	}
	return link.Attrs().MTU, nil
}

// ChecksumOffloadEnabled reports whether iface offloads outbound checksum
// computation to hardware. When true, BadChecksumMode's deliberately
// corrupted checksum (spec §4.1's bad-checksum diagnostic/evasion mode)
// may get silently recomputed correctly by the NIC before the frame
// leaves the host, which the caller should surface to the operator.
func ChecksumOffloadEnabled(ifaceName string) (bool, error) {
	eth, err := ethtool.NewEthtool()
	if err != nil {
		return false, fmt.Errorf("rawio: opening ethtool handle: %w", err)
	}
	defer eth.Close()

	features, err := eth.Features(ifaceName)
	if err != nil {
		return false, fmt.Errorf("rawio: querying %s features: %w", ifaceName, err)
	}
	return features["tx-checksumming"], nil
}
