package subenum

import (
	"context"
	"net"
	"time"

	ztls "github.com/zmap/zcrypto/tls"

	"github.com/averlane/osprey/internal/errors"
	"github.com/averlane/osprey/internal/logging"
)

// CertSANSource harvests subdomains from the subject alternative names of
// the certificate served on the apex domain's HTTPS port. It is a
// supplementary source: an unreachable or plaintext-only apex simply
// yields nothing.
type CertSANSource struct {
	timeout time.Duration
	// grab fetches the SAN list for a host. Injectable for tests.
	grab func(ctx context.Context, host string) ([]string, error)
	log  *logging.Logger
}

// NewCertSANSource builds a certificate SAN source.
func NewCertSANSource(timeout time.Duration) *CertSANSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &CertSANSource{
		timeout: timeout,
		log:     logging.Default().WithComponent("certsan"),
	}
	s.grab = s.grabSANs
	return s
}

// Name implements Source.
func (s *CertSANSource) Name() string { return "certsan" }

// Harvest connects to domain:443, reads the leaf certificate, and returns
// the SAN entries under the domain.
func (s *CertSANSource) Harvest(ctx context.Context, domain string) ([]string, error) {
	sans, err := s.grab(ctx, domain)
	if err != nil {
		return nil, errors.WrapProbeErrorWithTarget(errors.CodeUpstreamUnavailable,
			"certificate fetch failed", domain, err)
	}

	names := extractNames(domain, func(yield func(string)) {
		for _, san := range sans {
			yield(san)
		}
	})

	s.log.InfoHarvest("certificate SAN harvest complete", s.Name(),
		"domain", domain,
		"sans", len(sans),
		"names", len(names))

	return names, nil
}

// grabSANs performs the TLS handshake without verification; the
// certificate is inspected, not trusted.
func (s *CertSANSource) grabSANs(ctx context.Context, host string) ([]string, error) {
	dialer := &net.Dialer{Timeout: s.timeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	conn, err := ztls.DialWithDialer(dialer, "tcp", net.JoinHostPort(host, "443"), &ztls.Config{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil, nil
	}
	return certs[0].DNSNames, nil
}
