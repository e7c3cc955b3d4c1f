package serviceid

import (
	"sort"

	"github.com/reconwire/scancore/internal/scancore"
)

// SelectProbes returns the ordered probe sequence for a port: the NULL
// probe first, then protocol-specific probes sorted by rarity, filtered to
// intensity <= the configured version-intensity (spec §4.8 steps 1-2).
func SelectProbes(port uint16, intensity int) []Probe {
	selected := []Probe{NullProbe}

	var candidates []Probe
	for _, p := range DefaultProbes {
		if p.Intensity > intensity {
			continue
		}
		if len(p.Ports) == 0 {
			candidates = append(candidates, p)
			continue
		}
		for _, pp := range p.Ports {
			if pp == port {
				candidates = append(candidates, p)
				break
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Rarity < candidates[j].Rarity
	})
	return append(selected, candidates...)
}

// Identify matches a banner against the compiled match-set, returning the
// first match (spec §4.8 step 4: "First match wins; confidence is
// match-category-defined").
func Identify(banner []byte) (ServiceInfo, bool) {
	text := string(banner)
	for _, m := range DefaultMatches {
		idx := m.Pattern.FindStringSubmatchIndex(text)
		if idx == nil {
			continue
		}
		info := ServiceInfo{ServiceName: m.Service, Confidence: m.Confidence, Banner: text}
		names := m.Pattern.SubexpNames()
		matches := m.Pattern.FindStringSubmatch(text)
		for i, name := range names {
			if name == "" || i >= len(matches) {
				continue
			}
			switch name {
			case "version":
				info.Version = matches[i]
			case "product":
				info.Product = matches[i]
			case "os_hint":
				info.OSHint = matches[i]
			case "cpe":
				info.CPE = matches[i]
			}
		}
		return info, true
	}
	return ServiceInfo{}, false
}

// ServiceInfo mirrors scancore.ServiceInfo's fields. Identify fills it from
// a banner match and ToScanCore promotes it to the committed type; Identify
// leaves the TLS fields nil.
type ServiceInfo struct {
	ServiceName    string
	Product        string
	Version        string
	CPE            string
	OSHint         string
	Banner         string
	TLSCertificate *scancore.CertificateChain
	TLSFingerprint *scancore.TLSFingerprint
	Confidence     int
}

// ToScanCore converts the working ServiceInfo into the committed
// scancore.ServiceInfo once identification is complete. TLS results are
// attached by the caller to the returned value, not to this one.
func (s ServiceInfo) ToScanCore() scancore.ServiceInfo {
	return scancore.ServiceInfo{
		ServiceName:    s.ServiceName,
		Product:        s.Product,
		Version:        s.Version,
		CPE:            s.CPE,
		OSHint:         s.OSHint,
		Banner:         s.Banner,
		TLSCertificate: s.TLSCertificate,
		TLSFingerprint: s.TLSFingerprint,
		Confidence:     s.Confidence,
	}
}
