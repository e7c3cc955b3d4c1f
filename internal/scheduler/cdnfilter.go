package scheduler

import (
	"net/netip"

	"github.com/reconwire/scancore/internal/scanconfig"
)

// CDNFilter applies the CDN CIDR policy of spec §4.3 in the execution
// path, not merely as a pre-flight check: every work item still passes
// through Allow at scheduling time.
type CDNFilter struct {
	mode scanconfig.CDNFilterMode
	set  []netip.Prefix
}

// NewCDNFilter builds a CDNFilter from the resolved ScanConfig fields.
func NewCDNFilter(mode scanconfig.CDNFilterMode, set []netip.Prefix) CDNFilter {
	return CDNFilter{mode: mode, set: set}
}

func (f CDNFilter) inSet(addr netip.Addr) bool {
	for _, prefix := range f.set {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Allow reports whether addr should be scanned under this filter's mode:
// skip_all drops anything in the CDN set, whitelist keeps only addresses
// in the set, blacklist drops only addresses in the set (the inverse of
// whitelist, and the same rule skip_all applies).
func (f CDNFilter) Allow(addr netip.Addr) bool {
	switch f.mode {
	case scanconfig.CDNFilterSkipAll:
		return !f.inSet(addr)
	case scanconfig.CDNFilterWhitelist:
		return f.inSet(addr)
	case scanconfig.CDNFilterBlacklist:
		return !f.inSet(addr)
	case scanconfig.CDNFilterOff:
		fallthrough
	default:
		return true
	}
}
