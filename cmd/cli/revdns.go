package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/averlane/osprey/internal/report"
	"github.com/averlane/osprey/internal/revdns"
	"github.com/averlane/osprey/internal/store"
)

var (
	revdnsForce   bool
	revdnsThreads int
	revdnsSave    bool
)

var revdnsCmd = &cobra.Command{
	Use:     "reverse-dns <target>",
	Aliases: []string{"revdns", "ptr"},
	Short:   "Reverse DNS sweep over an address range",
	Long: `Look up the PTR record of every address in the target expression.
Targets may be a single IP, CIDR notation ("192.0.2.0/24"), or an
inclusive dash range ("192.0.2.1-192.0.2.50", IPv4 only).

Expansions above the configured ceiling abort unless --force is given;
blocks larger than a /16 equivalent are always rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: runReverseDNS,
}

func init() {
	revdnsCmd.Flags().BoolVar(&revdnsForce, "force", false, "bypass the unit-count guardrail")
	revdnsCmd.Flags().IntVarP(&revdnsThreads, "threads", "t", 0, "concurrent lookups (default from config)")
	revdnsCmd.Flags().BoolVar(&revdnsSave, "save", false, "persist the run to the configured database")
	rootCmd.AddCommand(revdnsCmd)
}

func runReverseDNS(cmd *cobra.Command, args []string) error {
	target := args[0]
	started := time.Now()

	runner := revdns.NewRunner(cfg.Settings, newResolver())
	result, err := runner.Run(cmd.Context(), target, revdns.Options{
		Force:      revdnsForce,
		Threads:    revdnsThreads,
		OnProgress: progressPrinter("reverse-dns"),
	})
	if err != nil {
		return err
	}

	printer := report.NewPrinter(os.Stdout)
	if jsonOut {
		if err := printer.JSON(result); err != nil {
			return err
		}
	} else {
		printer.ReverseDNS(result)
	}

	if revdnsSave {
		persistRun(cmd.Context(), "reverse_dns", target, result.Expanded, started, store.FromReverseDNS(result))
	}
	return nil
}
