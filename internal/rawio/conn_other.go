//go:build !linux

package rawio

// Open is unimplemented outside Linux; spec §6 expects macOS to use
// generic raw sockets and Windows a packet-capture library, neither of
// which this package wires yet.
func Open(cfg Config) (Conn, error) {
	return nil, ErrUnsupportedPlatform
}
