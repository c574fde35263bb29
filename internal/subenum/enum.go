// Package subenum enumerates subdomains of a domain. Names are harvested
// from certificate transparency logs, a DNS-verified wordlist, and the
// apex certificate's SAN entries, then optionally checked for a live web
// endpoint.
package subenum

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/averlane/osprey/internal/config"
	"github.com/averlane/osprey/internal/dnsx"
	"github.com/averlane/osprey/internal/errors"
	"github.com/averlane/osprey/internal/httpx"
	"github.com/averlane/osprey/internal/logging"
	"github.com/averlane/osprey/internal/probe"
)

// Source harvests candidate subdomain names for a domain.
type Source interface {
	Name() string
	Harvest(ctx context.Context, domain string) ([]string, error)
}

// Options controls a single enumeration.
type Options struct {
	// CRT enables the certificate transparency source. When neither CRT
	// nor Brute is set, both run.
	CRT bool

	// Brute enables the DNS-verified wordlist source.
	Brute bool

	// SkipAliveCheck reports harvested names without probing them for a
	// live web endpoint.
	SkipAliveCheck bool

	// Wordlist overrides the built-in wordlist for the brute source.
	Wordlist []string

	// Threads overrides the configured concurrency limit when positive.
	Threads int

	// OnProgress, when set, receives per-name liveness check updates.
	OnProgress func(done, total int)
}

// Finding is one discovered subdomain.
type Finding struct {
	Name    string   `json:"name"`
	Sources []string `json:"sources"`
	// Checked reports whether a liveness probe ran for this name.
	Checked bool `json:"checked"`
	// Alive is meaningful only when Checked is true.
	Alive bool `json:"alive"`
	// URL is the endpoint that answered, when one did.
	URL string `json:"url,omitempty"`
}

// Result is the outcome of enumerating one domain.
type Result struct {
	Domain     string        `json:"domain"`
	Candidates int           `json:"candidates"`
	Findings   []Finding     `json:"findings"`
	Alive      int           `json:"alive"`
	Degraded   []string      `json:"degraded,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Enumerator runs the harvest and liveness pipeline.
type Enumerator struct {
	settings config.Settings
	resolver dnsx.Resolver
	http     *httpx.Client
	log      *logging.Logger

	// crtBaseURL overrides the crt.sh endpoint. Tests point this at a
	// local server.
	crtBaseURL string
	// certSAN supplements the required sources; nil disables it.
	certSAN Source
	// checkURL probes one URL for reachability. Injectable for tests.
	checkURL func(ctx context.Context, url string) (bool, error)
}

// NewEnumerator builds an enumerator from the given settings.
func NewEnumerator(settings config.Settings, resolver dnsx.Resolver, client *httpx.Client) *Enumerator {
	return &Enumerator{
		settings: settings,
		resolver: resolver,
		http:     client,
		log:      logging.Default().WithComponent("subenum"),
		certSAN:  NewCertSANSource(settings.ConnectTimeout),
		checkURL: client.CheckURL,
	}
}

// Enumerate harvests subdomains of domain from the selected sources and,
// unless skipped, checks each one for a live web endpoint. Enumeration
// fails only when every required source is unavailable; a single failing
// source degrades the result instead.
func (e *Enumerator) Enumerate(ctx context.Context, domain string, opts Options) (*Result, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" || strings.ContainsAny(domain, " /") {
		return nil, errors.NewParseError(domain, "invalid domain")
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = e.settings.MaxThreads
	}
	if !opts.CRT && !opts.Brute {
		opts.CRT = true
		opts.Brute = true
	}

	var required []Source
	if opts.CRT {
		required = append(required, NewCRTShSource(e.http, e.crtBaseURL))
	}
	if opts.Brute {
		required = append(required, NewBruteSource(e.resolver, opts.Wordlist, threads, e.settings.ConnectTimeout))
	}

	start := time.Now()
	log := e.log.WithTarget(domain)
	log.Info("starting subdomain enumeration",
		"sources", len(required),
		"threads", threads)

	// byName records which sources produced each candidate.
	byName := make(map[string][]string)
	var degraded []string
	succeeded := 0

	for _, source := range required {
		names, err := source.Harvest(ctx, domain)
		if err != nil {
			log.WarnHarvest("source unavailable", source.Name(), err)
			degraded = append(degraded, source.Name())
			continue
		}
		succeeded++
		for _, name := range names {
			byName[name] = append(byName[name], source.Name())
		}
	}
	if succeeded == 0 {
		return nil, errors.NewProbeErrorWithTarget(errors.CodeUpstreamUnavailable,
			"all subdomain sources failed", domain)
	}

	// SAN harvest is best-effort on top of the required sources.
	if e.certSAN != nil {
		if names, err := e.certSAN.Harvest(ctx, domain); err == nil {
			for _, name := range names {
				byName[name] = append(byName[name], e.certSAN.Name())
			}
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	result := &Result{
		Domain:     domain,
		Candidates: len(names),
		Findings:   make([]Finding, 0, len(names)),
		Degraded:   degraded,
	}

	if opts.SkipAliveCheck {
		for _, name := range names {
			result.Findings = append(result.Findings, Finding{
				Name:    name,
				Sources: byName[name],
			})
		}
		result.Duration = time.Since(start)
		return result, nil
	}

	outcomes := probe.Run(ctx, names, e.probeAlive, probe.Config{
		ConcurrencyLimit: threads,
		PerProbeTimeout:  e.settings.HTTPTimeout,
		Kind:             "subdomain",
		OnProgress:       opts.OnProgress,
	})

	for _, out := range outcomes {
		finding := Finding{
			Name:    out.Unit,
			Sources: byName[out.Unit],
			Checked: true,
			Alive:   out.Success,
			URL:     out.Detail,
		}
		if finding.Alive {
			result.Alive++
		}
		result.Findings = append(result.Findings, finding)
	}

	result.Duration = time.Since(start)
	log.Info("subdomain enumeration complete",
		"candidates", result.Candidates,
		"alive", result.Alive,
		"duration", result.Duration)

	return result, nil
}

// probeAlive checks HTTPS first and falls back to plain HTTP. Any
// response on either scheme counts as alive; the status code does not
// matter.
func (e *Enumerator) probeAlive(ctx context.Context, name string) probe.Outcome[string] {
	httpsURL := "https://" + name
	if ok, _ := e.checkURL(ctx, httpsURL); ok {
		return probe.Outcome[string]{Unit: name, Success: true, Detail: httpsURL}
	}

	httpURL := "http://" + name
	if ok, err := e.checkURL(ctx, httpURL); ok {
		return probe.Outcome[string]{Unit: name, Success: true, Detail: httpURL}
	} else if err != nil {
		return probe.Outcome[string]{Unit: name, Err: err}
	}
	return probe.Outcome[string]{Unit: name}
}
