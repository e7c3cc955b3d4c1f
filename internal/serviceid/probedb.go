// Package serviceid implements the service-identification state machine of
// spec §4.8: probe selection ordered by rarity and intensity, and banner
// matching with extraction groups into a ServiceInfo.
package serviceid

import (
	"regexp"
)

// Probe is one entry in the probe database: a payload to send (nil means
// just connect and read, the "NULL" probe) and the ports it's normally
// useful against.
type Probe struct {
	Name      string
	Payload   []byte
	Rarity    int // higher = rarer, tried later
	Intensity int // 0..9, skipped when configured intensity is lower
	Ports     []uint16
}

// Match is a compiled pattern whose named extraction groups Identify reads
// for product, version, OS hint (os_hint) and CPE (spec §4.8 "fixed
// patterns with extraction groups"). No device-type group is extracted.
type Match struct {
	Service    string
	Pattern    *regexp.Regexp
	Confidence int // 0..100, match-category-defined
}

// NullProbe is always tried first, per spec §4.8 step 2 ("always start
// with a NULL (grab-banner) probe").
var NullProbe = Probe{Name: "null", Payload: nil, Rarity: 0, Intensity: 0}

// DefaultProbes is a small built-in probe database covering the common
// plaintext-banner and line-oriented protocols. Real deployments load a
// larger probe/match database (akin to nmap-service-probes); this
// implementation exercises the full protocol specified in §4.8 with a
// representative subset.
var DefaultProbes = []Probe{
	{Name: "http-get", Payload: []byte("GET / HTTP/1.0\r\n\r\n"), Rarity: 1, Intensity: 1, Ports: []uint16{80, 8080, 8000}},
	{Name: "smtp-ehlo", Payload: []byte("EHLO scancore\r\n"), Rarity: 2, Intensity: 2, Ports: []uint16{25, 587}},
	{Name: "ftp-noop", Payload: []byte("NOOP\r\n"), Rarity: 3, Intensity: 3, Ports: []uint16{21}},
	{Name: "pop3-noop", Payload: []byte("NOOP\r\n"), Rarity: 4, Intensity: 4, Ports: []uint16{110}},
	{Name: "redis-ping", Payload: []byte("PING\r\n"), Rarity: 5, Intensity: 5, Ports: []uint16{6379}},
	{Name: "memcached-version", Payload: []byte("version\r\n"), Rarity: 6, Intensity: 6, Ports: []uint16{11211}},
}

// DefaultMatches pairs each protocol's banner shape with a named
// extraction pattern. First match wins (spec §4.8 step 4).
var DefaultMatches = []Match{
	{Service: "ssh", Pattern: regexp.MustCompile(`^SSH-(?P<version>[\d.]+)-(?P<product>\S+)`), Confidence: 95},
	{Service: "http", Pattern: regexp.MustCompile(`^HTTP/(?P<version>[\d.]+) \d{3}`), Confidence: 90},
	{Service: "smtp", Pattern: regexp.MustCompile(`^220[ -](?P<product>\S+)`), Confidence: 85},
	{Service: "ftp", Pattern: regexp.MustCompile(`^220[ -](?P<product>.+FTP.*)`), Confidence: 85},
	{Service: "pop3", Pattern: regexp.MustCompile(`^\+OK (?P<product>.+)`), Confidence: 80},
	{Service: "redis", Pattern: regexp.MustCompile(`^[+\-]PONG|^-ERR`), Confidence: 80},
	{Service: "memcached", Pattern: regexp.MustCompile(`^VERSION (?P<version>\S+)`), Confidence: 80},
}

// IsHTTPSFamily reports whether a port conventionally carries TLS, used to
// trigger the §4.9 handshake from the service-ID state machine's step 5.
func IsHTTPSFamily(port uint16) bool {
	switch port {
	case 443, 8443, 993, 995, 465, 636, 989, 990, 992, 5061:
		return true
	default:
		return false
	}
}
