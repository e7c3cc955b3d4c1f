//go:build !linux

package rawio

// LinkMTU is unimplemented outside Linux; see conn_other.go.
func LinkMTU(ifaceName string) (int, error) {
	return 0, ErrUnsupportedPlatform
}

// ChecksumOffloadEnabled is unimplemented outside Linux; see conn_other.go.
func ChecksumOffloadEnabled(ifaceName string) (bool, error) {
	return false, ErrUnsupportedPlatform
}
