package tlsinfo

import (
	"strings"

	"github.com/reconwire/scancore/internal/scancore"
)

// tlsVersionMax1_1 is the highest "selected version" value considered weak
// (TLS 1.1 == 0x0302), per spec §4.9 "TLS ≤1.1".
const tlsVersionMax1_1 = 0x0302

// weakCipherSubstrings flags cipher suite names containing any of these as
// insecure (spec §4.9: "RC4/DES/3DES/NULL/anonymous ciphers").
var weakCipherSubstrings = []string{"RC4", "DES", "3DES", "NULL", "ANON", "EXPORT"}

// RateSecurity returns purely-informational warnings about a certificate
// and negotiated handshake, never enforced (spec §4.9 "Security-rating
// helpers (purely reported, never enforced)").
func RateSecurity(cert scancore.CertificateInfo, fp *scancore.TLSFingerprint) []string {
	var warnings []string

	switch {
	case strings.Contains(cert.PublicKeyAlgorithm, "RSA") && cert.PublicKeyBits > 0 && cert.PublicKeyBits < 2048:
		warnings = append(warnings, "RSA key smaller than 2048 bits")
	case strings.Contains(cert.PublicKeyAlgorithm, "ECDSA") && cert.PublicKeyBits > 0 && cert.PublicKeyBits <= 224:
		warnings = append(warnings, "ECDSA key at or below P-224")
	}

	sigAlgo := strings.ToUpper(cert.SignatureAlgorithm)
	if strings.Contains(sigAlgo, "SHA1") || strings.Contains(sigAlgo, "MD5") {
		warnings = append(warnings, "weak signature hash ("+cert.SignatureAlgorithm+")")
	}

	if fp == nil {
		return warnings
	}

	if fp.Version != 0 && fp.Version <= tlsVersionMax1_1 {
		warnings = append(warnings, "negotiated TLS version 1.1 or lower")
	}

	cipherName := cipherSuiteName(fp.CipherSuite)
	for _, weak := range weakCipherSubstrings {
		if strings.Contains(strings.ToUpper(cipherName), weak) {
			warnings = append(warnings, "weak cipher suite: "+cipherName)
			break
		}
	}

	return warnings
}

// cipherSuiteName is a minimal lookup covering the cipher suite ids
// RateSecurity needs to classify as weak; unknown ids are rendered as a
// hex id so substring matching (and this function's caller) degrades
// gracefully rather than panicking on an unrecognized suite.
func cipherSuiteName(id uint16) string {
	switch id {
	case 0x0005:
		return "TLS_RSA_WITH_RC4_128_SHA"
	case 0x000A:
		return "TLS_RSA_WITH_3DES_EDE_CBC_SHA"
	case 0x0000:
		return "TLS_NULL_WITH_NULL_NULL"
	default:
		return "0x" + hexUint16(id)
	}
}

func hexUint16(v uint16) string {
	const hexDigits = "0123456789abcdef"
	b := [4]byte{
		hexDigits[(v>>12)&0xF],
		hexDigits[(v>>8)&0xF],
		hexDigits[(v>>4)&0xF],
		hexDigits[v&0xF],
	}
	return string(b[:])
}
