package subenum

import (
	"context"
	"fmt"
	"strings"

	"github.com/averlane/osprey/internal/errors"
	"github.com/averlane/osprey/internal/httpx"
	"github.com/averlane/osprey/internal/logging"
)

// DefaultCRTShBaseURL is the certificate transparency search endpoint.
const DefaultCRTShBaseURL = "https://crt.sh"

// crtEntry is one row of the crt.sh JSON output. name_value may hold
// several names separated by newlines.
type crtEntry struct {
	NameValue string `json:"name_value"`
}

// CRTShSource harvests subdomains from certificate transparency logs via
// crt.sh.
type CRTShSource struct {
	client  *httpx.Client
	baseURL string
	log     *logging.Logger
}

// NewCRTShSource builds a crt.sh source. An empty baseURL uses the public
// endpoint.
func NewCRTShSource(client *httpx.Client, baseURL string) *CRTShSource {
	if baseURL == "" {
		baseURL = DefaultCRTShBaseURL
	}
	return &CRTShSource{
		client:  client,
		baseURL: baseURL,
		log:     logging.Default().WithComponent("crtsh"),
	}
}

// Name implements Source.
func (s *CRTShSource) Name() string { return "crtsh" }

// Harvest queries crt.sh for certificates matching %.domain and extracts
// hostnames. Names are lowercased, wildcards are dropped, and only names
// under the queried domain are kept. Endpoint failures are reported as
// UPSTREAM_UNAVAILABLE so the caller can degrade to other sources.
func (s *CRTShSource) Harvest(ctx context.Context, domain string) ([]string, error) {
	url := fmt.Sprintf("%s/?q=%%25.%s&output=json", s.baseURL, domain)

	var entries []crtEntry
	if err := s.client.GetJSON(ctx, url, &entries); err != nil {
		return nil, errors.WrapProbeErrorWithTarget(errors.CodeUpstreamUnavailable,
			"certificate transparency lookup failed", domain, err)
	}

	names := extractNames(domain, func(yield func(string)) {
		for _, entry := range entries {
			for _, line := range strings.Split(entry.NameValue, "\n") {
				yield(line)
			}
		}
	})

	s.log.InfoHarvest("certificate transparency harvest complete", s.Name(),
		"domain", domain,
		"entries", len(entries),
		"names", len(names))

	return names, nil
}

// extractNames filters raw hostname candidates down to unique, lowercase
// names strictly under domain. Wildcard entries are excluded.
func extractNames(domain string, each func(yield func(string))) []string {
	domain = strings.ToLower(domain)
	suffix := "." + domain

	seen := make(map[string]struct{})
	var names []string
	each(func(raw string) {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || strings.Contains(name, "*") {
			return
		}
		if !strings.HasSuffix(name, suffix) {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	})
	return names
}
