// Package portscan implements TCP connect scanning. A port is open when a
// full TCP connection can be established; the connection is closed
// immediately without reading or writing.
package portscan

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"
	"time"

	"github.com/averlane/osprey/internal/config"
	"github.com/averlane/osprey/internal/dnsx"
	"github.com/averlane/osprey/internal/errors"
	"github.com/averlane/osprey/internal/logging"
	"github.com/averlane/osprey/internal/probe"
	"github.com/averlane/osprey/internal/target"
)

// DefaultPorts is scanned when no port specification is given.
const DefaultPorts = "1-1024"

// dialFunc establishes a TCP connection. Injectable for tests.
type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Options controls a single scan invocation.
type Options struct {
	// Ports is the port specification ("80", "1-1024", "22,80,443").
	// Empty means DefaultPorts.
	Ports string

	// Threads overrides the configured concurrency limit when positive.
	Threads int

	// OnProgress, when set, receives per-port completion updates.
	OnProgress func(done, total int)
}

// OpenPort is one confirmed open port.
type OpenPort struct {
	Port    uint16 `json:"port"`
	Service string `json:"service"`
}

// Result is the outcome of scanning one target.
type Result struct {
	Target   string             `json:"target"`
	Addr     netip.Addr         `json:"addr"`
	Scanned  int                `json:"scanned"`
	Open     []OpenPort         `json:"open"`
	Duration time.Duration      `json:"duration"`
	Outcomes []probe.Outcome[uint16] `json:"-"`
}

// Scanner runs TCP connect scans.
type Scanner struct {
	settings config.Settings
	resolver dnsx.Resolver
	dial     dialFunc
	log      *logging.Logger
}

// NewScanner builds a scanner from the given settings.
func NewScanner(settings config.Settings, resolver dnsx.Resolver) *Scanner {
	dialer := &net.Dialer{}
	return &Scanner{
		settings: settings,
		resolver: resolver,
		dial:     dialer.DialContext,
		log:      logging.Default().WithComponent("portscan"),
	}
}

// Scan expands the port specification, resolves the target, and probes
// every port. Parse failures abort before any connection is attempted;
// per-port failures never abort the batch. The batch-size guardrail does
// not apply here: port specifications carry their own expansion caps, so
// any spec that parses is small enough to scan.
func (s *Scanner) Scan(ctx context.Context, host string, opts Options) (*Result, error) {
	spec := opts.Ports
	if spec == "" {
		spec = DefaultPorts
	}
	ports, err := target.ExpandPorts(spec)
	if err != nil {
		return nil, err
	}

	addr, err := dnsx.ResolveTarget(ctx, s.resolver, host)
	if err != nil {
		s.log.ErrorProbe("target resolution failed", host, err)
		return nil, err
	}

	threads := opts.Threads
	if threads <= 0 {
		threads = s.settings.MaxThreads
	}

	s.log.InfoProbe("starting port scan", host,
		"addr", addr.String(),
		"ports", len(ports),
		"threads", threads)

	start := time.Now()
	outcomes := probe.Run(ctx, ports, s.probePort(addr), probe.Config{
		ConcurrencyLimit: threads,
		PerProbeTimeout:  s.settings.ConnectTimeout,
		Kind:             "tcp_connect",
		OnProgress:       opts.OnProgress,
	})

	summary := probe.Summarize(outcomes)
	result := &Result{
		Target:   host,
		Addr:     addr,
		Scanned:  len(ports),
		Open:     make([]OpenPort, 0, summary.Succeeded),
		Duration: time.Since(start),
		Outcomes: outcomes,
	}
	for _, out := range summary.Successes {
		result.Open = append(result.Open, OpenPort{Port: out.Unit, Service: out.Detail})
	}

	s.log.InfoProbe("port scan complete", host,
		"open", len(result.Open),
		"scanned", result.Scanned,
		"duration", result.Duration)

	return result, nil
}

// probePort returns the probe function for one resolved address. An open
// port is a successful outcome; a refused connection is a plain negative
// outcome; anything else is classified as timeout or network failure.
func (s *Scanner) probePort(addr netip.Addr) probe.Func[uint16] {
	return func(ctx context.Context, port uint16) probe.Outcome[uint16] {
		address := net.JoinHostPort(addr.String(), fmt.Sprintf("%d", port))

		conn, err := s.dial(ctx, "tcp", address)
		if err != nil {
			return probe.Outcome[uint16]{Unit: port, Err: classifyDialError(err, address)}
		}
		_ = conn.Close()

		return probe.Outcome[uint16]{
			Unit:    port,
			Success: true,
			Detail:  ServiceName(port),
		}
	}
}

func classifyDialError(err error, address string) error {
	if stderrors.Is(err, syscall.ECONNREFUSED) {
		// Closed port, not a fault.
		return nil
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.WrapProbeErrorWithTarget(errors.CodeTimeout, "connect timed out", address, err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.WrapProbeErrorWithTarget(errors.CodeTimeout, "connect timed out", address, err)
	}
	return errors.WrapProbeErrorWithTarget(errors.CodeNetwork, "connect failed", address, err)
}
