// Package report renders scan results for the terminal. Tables go to the
// configured writer, normally stdout, so logs on stderr never interleave
// with report output.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/averlane/osprey/internal/portscan"
	"github.com/averlane/osprey/internal/revdns"
	"github.com/averlane/osprey/internal/subenum"
)

var (
	heading  = color.New(color.FgCyan, color.Bold)
	positive = color.New(color.FgGreen)
	negative = color.New(color.FgRed)
	muted    = color.New(color.Faint)
)

// Printer renders results in table or JSON form.
type Printer struct {
	out io.Writer
}

// NewPrinter builds a printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// JSON writes any result as indented JSON.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PortScan renders a port scan result.
func (p *Printer) PortScan(result *portscan.Result) {
	_, _ = heading.Fprintf(p.out, "Port scan: %s (%s)\n", result.Target, result.Addr)

	if len(result.Open) == 0 {
		_, _ = muted.Fprintf(p.out, "no open ports among %d scanned\n", result.Scanned)
		return
	}

	table := tablewriter.NewWriter(p.out)
	table.Header("Port", "State", "Service")
	for _, open := range result.Open {
		_ = table.Append([]string{
			fmt.Sprintf("%d/tcp", open.Port),
			positive.Sprint("open"),
			open.Service,
		})
	}
	_ = table.Render()

	fmt.Fprintf(p.out, "%d open of %d scanned in %s\n",
		len(result.Open), result.Scanned, roundDuration(result.Duration))
}

// ReverseDNS renders a reverse DNS sweep result.
func (p *Printer) ReverseDNS(result *revdns.Result) {
	_, _ = heading.Fprintf(p.out, "Reverse DNS: %s\n", result.Target)

	if len(result.Records) == 0 {
		_, _ = muted.Fprintf(p.out, "no PTR records among %d addresses\n", result.Expanded)
		return
	}

	table := tablewriter.NewWriter(p.out)
	table.Header("Address", "Hostnames")
	for _, record := range result.Records {
		_ = table.Append([]string{
			record.Addr.String(),
			strings.Join(record.Hostnames, ", "),
		})
	}
	_ = table.Render()

	fmt.Fprintf(p.out, "%d resolved, %d without record, %d errors (%d addresses in %s)\n",
		len(result.Records), result.NoRecord, result.Errors,
		result.Expanded, roundDuration(result.Duration))
}

// Subdomains renders a subdomain enumeration result.
func (p *Printer) Subdomains(result *subenum.Result) {
	_, _ = heading.Fprintf(p.out, "Subdomains: %s\n", result.Domain)

	for _, source := range result.Degraded {
		_, _ = negative.Fprintf(p.out, "source %s was unavailable; results may be incomplete\n", source)
	}

	if len(result.Findings) == 0 {
		_, _ = muted.Fprintln(p.out, "no subdomains found")
		return
	}

	table := tablewriter.NewWriter(p.out)
	table.Header("Subdomain", "Sources", "Status", "URL")
	for _, finding := range result.Findings {
		table.Append([]string{
			finding.Name,
			strings.Join(finding.Sources, ","),
			findingStatus(finding),
			finding.URL,
		})
	}
	_ = table.Render()

	if result.Findings[0].Checked {
		fmt.Fprintf(p.out, "%d found, %d alive in %s\n",
			len(result.Findings), result.Alive, roundDuration(result.Duration))
	} else {
		fmt.Fprintf(p.out, "%d found (liveness check skipped) in %s\n",
			len(result.Findings), roundDuration(result.Duration))
	}
}

func findingStatus(finding subenum.Finding) string {
	switch {
	case !finding.Checked:
		return muted.Sprint("unverified")
	case finding.Alive:
		return positive.Sprint("alive")
	default:
		return negative.Sprint("unreachable")
	}
}

// roundDuration trims durations to a readable precision.
func roundDuration(d time.Duration) time.Duration {
	if d >= time.Second {
		return d.Round(10 * time.Millisecond)
	}
	return d.Round(time.Millisecond)
}
