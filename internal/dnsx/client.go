// Package dnsx provides the DNS client used by the reverse DNS and
// subdomain probes. It distinguishes a normal negative answer (no such
// record) from transport failures so callers can report the two
// differently.
package dnsx

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/averlane/osprey/internal/errors"
)

const (
	resolvConfPath = "/etc/resolv.conf"
	defaultServer  = "8.8.8.8:53"
	defaultTimeout = 5 * time.Second
)

// Resolver is the lookup surface consumed by probes. Tests inject fakes.
type Resolver interface {
	// LookupPTR returns the PTR hostnames for an address. A missing PTR
	// record yields an error with code NO_RECORD; transport failures
	// yield NETWORK.
	LookupPTR(ctx context.Context, addr netip.Addr) ([]string, error)

	// LookupHost returns the A/AAAA addresses for a name, with the same
	// error classification as LookupPTR.
	LookupHost(ctx context.Context, name string) ([]netip.Addr, error)
}

// exchangeFunc performs one DNS exchange. Swapped out in tests.
type exchangeFunc func(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error)

// Client is a Resolver backed by the system's configured nameservers.
type Client struct {
	servers  []string
	exchange exchangeFunc
}

// NewClient creates a DNS client using the nameservers from
// /etc/resolv.conf, falling back to a public resolver when none are
// configured.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	servers := []string{defaultServer}
	if conf, err := dns.ClientConfigFromFile(resolvConfPath); err == nil && len(conf.Servers) > 0 {
		servers = servers[:0]
		for _, s := range conf.Servers {
			servers = append(servers, net.JoinHostPort(s, conf.Port))
		}
	}

	dnsClient := &dns.Client{Timeout: timeout}
	return &Client{
		servers: servers,
		exchange: func(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error) {
			reply, _, err := dnsClient.ExchangeContext(ctx, msg, server)
			return reply, err
		},
	}
}

// LookupPTR implements Resolver.
func (c *Client) LookupPTR(ctx context.Context, addr netip.Addr) ([]string, error) {
	reverse, err := dns.ReverseAddr(addr.String())
	if err != nil {
		return nil, errors.WrapProbeErrorWithTarget(errors.CodeNetwork,
			"failed to build reverse name", addr.String(), err)
	}

	msg := new(dns.Msg)
	msg.SetQuestion(reverse, dns.TypePTR)

	reply, err := c.query(ctx, msg)
	if err != nil {
		return nil, errors.WrapProbeErrorWithTarget(errors.CodeNetwork,
			"PTR query failed", addr.String(), err)
	}

	if reply.Rcode == dns.RcodeNameError {
		return nil, errors.ErrNoRecord(addr.String())
	}
	if reply.Rcode != dns.RcodeSuccess {
		return nil, errors.NewProbeErrorWithTarget(errors.CodeNetwork,
			fmt.Sprintf("PTR query returned %s", dns.RcodeToString[reply.Rcode]), addr.String())
	}

	var hostnames []string
	for _, rr := range reply.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			hostnames = append(hostnames, strings.TrimSuffix(ptr.Ptr, "."))
		}
	}
	if len(hostnames) == 0 {
		return nil, errors.ErrNoRecord(addr.String())
	}
	return hostnames, nil
}

// LookupHost implements Resolver. It tries A records first and falls back
// to AAAA when the name has no IPv4 address.
func (c *Client) LookupHost(ctx context.Context, name string) ([]netip.Addr, error) {
	addrs, err := c.lookupType(ctx, name, dns.TypeA)
	if err == nil && len(addrs) > 0 {
		return addrs, nil
	}
	if err != nil && !errors.IsNegativeResult(err) {
		return nil, err
	}
	return c.lookupType(ctx, name, dns.TypeAAAA)
}

func (c *Client) lookupType(ctx context.Context, name string, qtype uint16) ([]netip.Addr, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)

	reply, err := c.query(ctx, msg)
	if err != nil {
		return nil, errors.WrapProbeErrorWithTarget(errors.CodeNetwork, "DNS query failed", name, err)
	}

	if reply.Rcode == dns.RcodeNameError {
		return nil, errors.ErrNoRecord(name)
	}
	if reply.Rcode != dns.RcodeSuccess {
		return nil, errors.NewProbeErrorWithTarget(errors.CodeNetwork,
			fmt.Sprintf("DNS query returned %s", dns.RcodeToString[reply.Rcode]), name)
	}

	var addrs []netip.Addr
	for _, rr := range reply.Answer {
		switch record := rr.(type) {
		case *dns.A:
			if addr, ok := netip.AddrFromSlice(record.A); ok {
				addrs = append(addrs, addr.Unmap())
			}
		case *dns.AAAA:
			if addr, ok := netip.AddrFromSlice(record.AAAA); ok {
				addrs = append(addrs, addr)
			}
		}
	}
	if len(addrs) == 0 {
		return nil, errors.ErrNoRecord(name)
	}
	return addrs, nil
}

// query tries each configured nameserver in order until one answers.
func (c *Client) query(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	var lastErr error
	for _, server := range c.servers {
		reply, err := c.exchange(ctx, msg, server)
		if err == nil {
			return reply, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// ResolveTarget resolves a scan target that may be a hostname or an IP
// literal, returning the first resolved address.
func ResolveTarget(ctx context.Context, resolver Resolver, host string) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap(), nil
	}
	addrs, err := resolver.LookupHost(ctx, host)
	if err != nil {
		return netip.Addr{}, err
	}
	return addrs[0], nil
}
