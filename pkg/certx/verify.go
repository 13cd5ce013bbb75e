// Package certx validates client certificates against a configured trust
// anchor. Unlike a parse-only check, rejection distinguishes malformed input,
// validity-period failures, unknown issuers, and bad issuer signatures.
package certx

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"
)

var (
	ErrMalformed            = errors.New("certx: malformed certificate")
	ErrExpiredOrNotYetValid = errors.New("certx: certificate expired or not yet valid")
	ErrUntrustedIssuer      = errors.New("certx: certificate issuer is not trusted")
	ErrSignatureInvalid     = errors.New("certx: certificate signature invalid")
)

// Verifier chain-verifies PEM certificates against a fixed set of trust
// anchors. The zero value is not usable; construct with NewVerifier.
type Verifier struct {
	roots   *x509.CertPool
	anchors []*x509.Certificate

	// ParseOnly skips chain verification and accepts any well-formed,
	// in-validity certificate. Dev/test escape hatch only; never the default.
	ParseOnly bool

	// Now is the clock used for validity checks. Defaults to time.Now.
	Now func() time.Time
}

// NewVerifier builds a Verifier from one or more PEM-encoded CA certificates.
func NewVerifier(caPEM []byte) (*Verifier, error) {
	v := &Verifier{
		roots: x509.NewCertPool(),
		Now:   time.Now,
	}

	rest := caPEM
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		anchor, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse trust anchor: %w", err)
		}
		v.roots.AddCert(anchor)
		v.anchors = append(v.anchors, anchor)
	}

	if len(v.anchors) == 0 {
		return nil, errors.New("certx: no trust anchors found in PEM input")
	}
	return v, nil
}

// ParseOnlyVerifier returns a Verifier with no trust anchors that accepts
// any well-formed, in-validity certificate. For development environments
// without a provisioned CA only.
func ParseOnlyVerifier() *Verifier {
	return &Verifier{ParseOnly: true, Now: time.Now}
}

// LoadVerifier reads the trust anchor bundle from a file.
func LoadVerifier(caPath string) (*Verifier, error) {
	caPEM, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read trust anchor file: %w", err)
	}
	return NewVerifier(caPEM)
}

// Verify parses certPEM and chain-verifies the leaf against the trust
// anchors. It returns nil for an accepted certificate, or one of the
// package's sentinel errors describing why it was rejected.
func (v *Verifier) Verify(certPEM []byte) error {
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return ErrMalformed
	}
	leaf, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return ErrMalformed
	}

	now := v.Now()

	// Check the validity window up front so an expired certificate is
	// reported as such rather than as a generic chain failure.
	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		return ErrExpiredOrNotYetValid
	}

	if v.ParseOnly {
		return nil
	}

	_, err = leaf.Verify(x509.VerifyOptions{
		Roots:       v.roots,
		CurrentTime: now,
		KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err == nil {
		return nil
	}

	var invalidErr x509.CertificateInvalidError
	if errors.As(err, &invalidErr) && invalidErr.Reason == x509.Expired {
		return ErrExpiredOrNotYetValid
	}

	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		// If a configured anchor actually issued this certificate but the
		// chain still failed, the issuer signature itself is bad.
		for _, anchor := range v.anchors {
			if !bytes.Equal(leaf.RawIssuer, anchor.RawSubject) {
				continue
			}
			if sigErr := anchor.CheckSignature(
				leaf.SignatureAlgorithm, leaf.RawTBSCertificate, leaf.Signature,
			); sigErr != nil {
				return ErrSignatureInvalid
			}
		}
		return ErrUntrustedIssuer
	}

	return ErrUntrustedIssuer
}
