package store

import (
	"fmt"

	"github.com/averlane/osprey/internal/portscan"
	"github.com/averlane/osprey/internal/revdns"
	"github.com/averlane/osprey/internal/subenum"
)

// FromPortScan converts open ports into findings.
func FromPortScan(result *portscan.Result) []Finding {
	findings := make([]Finding, 0, len(result.Open))
	for _, open := range result.Open {
		findings = append(findings, Finding{
			Value:  fmt.Sprintf("%d/tcp", open.Port),
			Detail: open.Service,
		})
	}
	return findings
}

// FromReverseDNS converts resolved addresses into findings.
func FromReverseDNS(result *revdns.Result) []Finding {
	findings := make([]Finding, 0, len(result.Records))
	for _, record := range result.Records {
		detail := ""
		if len(record.Hostnames) > 0 {
			detail = record.Hostnames[0]
		}
		findings = append(findings, Finding{
			Value:  record.Addr.String(),
			Detail: detail,
		})
	}
	return findings
}

// FromSubdomains converts discovered subdomains into findings. Names
// that were checked and found dead are omitted.
func FromSubdomains(result *subenum.Result) []Finding {
	findings := make([]Finding, 0, len(result.Findings))
	for _, finding := range result.Findings {
		if finding.Checked && !finding.Alive {
			continue
		}
		findings = append(findings, Finding{
			Value:  finding.Name,
			Detail: finding.URL,
		})
	}
	return findings
}
