package subenum

import (
	"context"
	"time"

	"github.com/averlane/osprey/internal/dnsx"
	"github.com/averlane/osprey/internal/logging"
	"github.com/averlane/osprey/internal/probe"
	"github.com/averlane/osprey/internal/target"
)

// BruteSource generates candidate names from a wordlist and keeps the
// ones that resolve in DNS. A candidate that does not resolve is simply
// absent from the harvest.
type BruteSource struct {
	resolver dnsx.Resolver
	wordlist []string
	threads  int
	timeout  time.Duration
	log      *logging.Logger
}

// NewBruteSource builds a wordlist source. A nil wordlist uses the
// built-in one.
func NewBruteSource(resolver dnsx.Resolver, wordlist []string, threads int, timeout time.Duration) *BruteSource {
	if wordlist == nil {
		wordlist = target.DefaultWordlist
	}
	return &BruteSource{
		resolver: resolver,
		wordlist: wordlist,
		threads:  threads,
		timeout:  timeout,
		log:      logging.Default().WithComponent("brute"),
	}
}

// Name implements Source.
func (b *BruteSource) Name() string { return "brute" }

// Harvest resolves every wordlist candidate and returns the ones with an
// address record. Per-candidate lookup failures are negative results, so
// Harvest itself never fails.
func (b *BruteSource) Harvest(ctx context.Context, domain string) ([]string, error) {
	candidates := target.ExpandWordlist(domain, b.wordlist)

	outcomes := probe.Run(ctx, candidates, b.resolveOne, probe.Config{
		ConcurrencyLimit: b.threads,
		PerProbeTimeout:  b.timeout,
		Kind:             "subdomain_dns",
	})

	var names []string
	for _, out := range outcomes {
		if out.Success {
			names = append(names, out.Unit)
		}
	}

	b.log.InfoHarvest("wordlist harvest complete", b.Name(),
		"domain", domain,
		"candidates", len(candidates),
		"resolved", len(names))

	return names, nil
}

func (b *BruteSource) resolveOne(ctx context.Context, name string) probe.Outcome[string] {
	addrs, err := b.resolver.LookupHost(ctx, name)
	if err != nil || len(addrs) == 0 {
		return probe.Outcome[string]{Unit: name, Err: err}
	}
	return probe.Outcome[string]{
		Unit:    name,
		Success: true,
		Detail:  addrs[0].String(),
	}
}
