// Package tlsinfo extracts certificate and handshake fingerprint
// information from a TLS connection without validating trust (spec §4.9).
package tlsinfo

import (
	"crypto/ecdsa"
	"crypto/x509"
	"crypto/x509/pkix"

	"github.com/reconwire/scancore/internal/scancore"
)

// ParseCertificate converts a parsed x509.Certificate into the structural
// CertificateInfo shape of spec §3, categorizing SANs into
// {dns, ip, email, uri, other} as the spec requires.
func ParseCertificate(cert *x509.Certificate) scancore.CertificateInfo {
	info := scancore.CertificateInfo{
		SubjectDN:          cert.Subject.String(),
		IssuerDN:           cert.Issuer.String(),
		SerialNumber:       cert.SerialNumber.String(),
		NotBefore:          cert.NotBefore,
		NotAfter:           cert.NotAfter,
		PublicKeyAlgorithm: cert.PublicKeyAlgorithm.String(),
		SignatureAlgorithm: cert.SignatureAlgorithm.String(),
		IsCA:               cert.IsCA,
		PathLenConstraint:  cert.MaxPathLen,
		SelfSigned:         sameDN(cert.Issuer, cert.Subject),
		PublicKeyBits:      publicKeyBits(cert),
	}

	for _, ext := range cert.Extensions {
		info.ExtensionOIDs = append(info.ExtensionOIDs, ext.Id.String())
	}

	for _, name := range cert.DNSNames {
		info.SANs = append(info.SANs, scancore.SubjectAltName{Kind: scancore.SANDNS, Value: name})
	}
	for _, ip := range cert.IPAddresses {
		info.SANs = append(info.SANs, scancore.SubjectAltName{Kind: scancore.SANIP, Value: ip.String()})
	}
	for _, email := range cert.EmailAddresses {
		info.SANs = append(info.SANs, scancore.SubjectAltName{Kind: scancore.SANEmail, Value: email})
	}
	for _, uri := range cert.URIs {
		info.SANs = append(info.SANs, scancore.SubjectAltName{Kind: scancore.SANURI, Value: uri.String()})
	}

	return info
}

func sameDN(a, b pkix.Name) bool {
	return a.String() == b.String()
}

// publicKeyBits estimates the public key size in bits, used by the
// security-rating helpers (spec §4.9): RSA exposes Size() directly, ECDSA
// is derived from its curve's field bit size.
func publicKeyBits(cert *x509.Certificate) int {
	switch pub := cert.PublicKey.(type) {
	case interface{ Size() int }:
		return pub.Size() * 8
	case *ecdsa.PublicKey:
		return pub.Curve.Params().BitSize
	default:
		return 0
	}
}

// BuildChain links a leaf-to-root certificate slice into a
// CertificateChain per spec §4.9: "verify only that each certificate's
// Issuer DN equals the next certificate's Subject DN, detect self-signed
// ... check BasicConstraints.CA=TRUE on intermediates and pathlen. Do NOT
// verify signatures or trust roots."
func BuildChain(certs []*x509.Certificate) scancore.CertificateChain {
	if len(certs) == 0 {
		return scancore.CertificateChain{}
	}

	chain := scancore.CertificateChain{
		Leaf:   ParseCertificate(certs[0]),
		Linked: true,
	}
	for i := 1; i < len(certs); i++ {
		chain.Intermediates = append(chain.Intermediates, ParseCertificate(certs[i]))
		if !sameDN(certs[i-1].Issuer, certs[i].Subject) {
			chain.Linked = false
		}
	}
	return chain
}
