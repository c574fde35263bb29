// Package revdns performs reverse DNS sweeps. Each address in the
// expanded target is asked for its PTR record; addresses without one are
// negative results, not failures.
package revdns

import (
	"context"
	"net/netip"
	"strings"
	"time"

	"github.com/averlane/osprey/internal/config"
	"github.com/averlane/osprey/internal/dnsx"
	"github.com/averlane/osprey/internal/errors"
	"github.com/averlane/osprey/internal/logging"
	"github.com/averlane/osprey/internal/probe"
	"github.com/averlane/osprey/internal/target"
)

// Options controls a single sweep invocation.
type Options struct {
	// Force bypasses the unit-count guardrail.
	Force bool

	// Threads overrides the configured concurrency limit when positive.
	Threads int

	// OnProgress, when set, receives per-address completion updates.
	OnProgress func(done, total int)
}

// Record is one address with at least one PTR hostname.
type Record struct {
	Addr      netip.Addr `json:"addr"`
	Hostnames []string   `json:"hostnames"`
}

// Result is the outcome of sweeping one target expression.
type Result struct {
	Target   string        `json:"target"`
	Kind     target.Kind   `json:"kind"`
	Expanded int           `json:"expanded"`
	Records  []Record      `json:"records"`
	NoRecord int           `json:"no_record"`
	Errors   int           `json:"errors"`
	Duration time.Duration `json:"duration"`

	Outcomes []probe.Outcome[netip.Addr] `json:"-"`
}

// Runner executes reverse DNS sweeps.
type Runner struct {
	settings config.Settings
	resolver dnsx.Resolver
	log      *logging.Logger
}

// NewRunner builds a runner from the given settings.
func NewRunner(settings config.Settings, resolver dnsx.Resolver) *Runner {
	return &Runner{
		settings: settings,
		resolver: resolver,
		log:      logging.Default().WithComponent("revdns"),
	}
}

// Run expands the target expression (single IP, CIDR, or dash range) and
// looks up the PTR record of every address. Expansion and guardrail
// failures abort before any query is sent.
func (r *Runner) Run(ctx context.Context, rawTarget string, opts Options) (*Result, error) {
	spec, addrs, err := target.ExpandIPs(rawTarget)
	if err != nil {
		return nil, err
	}
	if err := target.Guardrail(len(addrs), r.settings.GuardrailMaxUnits, opts.Force); err != nil {
		return nil, err
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = r.settings.MaxThreads
	}

	r.log.InfoProbe("starting reverse DNS sweep", rawTarget,
		"kind", string(spec.Kind),
		"addrs", len(addrs),
		"threads", threads)

	start := time.Now()
	outcomes := probe.Run(ctx, addrs, r.lookupPTR, probe.Config{
		ConcurrencyLimit: threads,
		PerProbeTimeout:  r.settings.ConnectTimeout,
		Kind:             "ptr",
		OnProgress:       opts.OnProgress,
	})

	summary := probe.Summarize(outcomes)
	result := &Result{
		Target:   rawTarget,
		Kind:     spec.Kind,
		Expanded: len(addrs),
		Records:  make([]Record, 0, summary.Succeeded),
		Duration: time.Since(start),
		Outcomes: outcomes,
	}
	for _, out := range summary.Successes {
		result.Records = append(result.Records, Record{
			Addr:      out.Unit,
			Hostnames: strings.Split(out.Detail, " "),
		})
	}
	for _, out := range summary.Failures {
		if errors.IsNegativeResult(out.Err) {
			result.NoRecord++
		} else {
			result.Errors++
		}
	}

	r.log.InfoProbe("reverse DNS sweep complete", rawTarget,
		"resolved", len(result.Records),
		"no_record", result.NoRecord,
		"errors", result.Errors,
		"duration", result.Duration)

	return result, nil
}

func (r *Runner) lookupPTR(ctx context.Context, addr netip.Addr) probe.Outcome[netip.Addr] {
	names, err := r.resolver.LookupPTR(ctx, addr)
	if err != nil {
		return probe.Outcome[netip.Addr]{Unit: addr, Err: err}
	}
	return probe.Outcome[netip.Addr]{
		Unit:    addr,
		Success: true,
		Detail:  strings.Join(names, " "),
	}
}
