package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/halcyonlabs/vaultgate/pkg/certx"
)

// ErrCertificateRejected wraps the specific certx rejection reason. Clients
// see only this uniform error; the underlying reason is for logs.
var ErrCertificateRejected = errors.New("certificate rejected")

// CertGate authorizes data-plane requests by their presented client
// certificate. It is a thin policy layer over certx.Verifier so handlers
// never touch x509 directly.
type CertGate struct {
	Verifier *certx.Verifier
}

// Check validates a PEM-encoded certificate against the trust anchor. The
// returned error wraps both ErrCertificateRejected and the certx reason, so
// callers can match either.
func (g *CertGate) Check(certPEM string) error {
	if strings.TrimSpace(certPEM) == "" {
		return fmt.Errorf("%w: %w", ErrCertificateRejected, certx.ErrMalformed)
	}
	if err := g.Verifier.Verify([]byte(certPEM)); err != nil {
		return fmt.Errorf("%w: %w", ErrCertificateRejected, err)
	}
	return nil
}
