package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/averlane/osprey/internal/report"
	"github.com/averlane/osprey/internal/store"
	"github.com/averlane/osprey/internal/subenum"
)

var (
	subdomainCRT       bool
	subdomainBrute     bool
	subdomainSkipAlive bool
	subdomainThreads   int
	subdomainSave      bool
)

var subdomainCmd = &cobra.Command{
	Use:     "subdomains <domain>",
	Aliases: []string{"subdomain", "subenum"},
	Short:   "Enumerate subdomains of a domain",
	Long: `Harvest subdomains from certificate transparency logs and a
DNS-verified wordlist, then check each one for a live web endpoint over
HTTPS with an HTTP fallback.

With no source flag both sources run. If certificate transparency is
unavailable the wordlist still runs and the result is marked degraded.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubdomains,
}

func init() {
	subdomainCmd.Flags().BoolVar(&subdomainCRT, "crt", false, "use only certificate transparency logs")
	subdomainCmd.Flags().BoolVar(&subdomainBrute, "brute", false, "use only the DNS wordlist")
	subdomainCmd.Flags().BoolVar(&subdomainSkipAlive, "skip-alive-check", false, "report names without probing for a web endpoint")
	subdomainCmd.Flags().IntVarP(&subdomainThreads, "threads", "t", 0, "concurrent probes (default from config)")
	subdomainCmd.Flags().BoolVar(&subdomainSave, "save", false, "persist the run to the configured database")
	rootCmd.AddCommand(subdomainCmd)
}

func runSubdomains(cmd *cobra.Command, args []string) error {
	domain := args[0]
	started := time.Now()

	client, err := newHTTPClient()
	if err != nil {
		return err
	}

	enumerator := subenum.NewEnumerator(cfg.Settings, newResolver(), client)
	result, err := enumerator.Enumerate(cmd.Context(), domain, subenum.Options{
		CRT:            subdomainCRT,
		Brute:          subdomainBrute,
		SkipAliveCheck: subdomainSkipAlive,
		Threads:        subdomainThreads,
		OnProgress:     progressPrinter("subdomains"),
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
		printer.Subdomains(result)
	}

	if subdomainSave {
		persistRun(cmd.Context(), "subdomain", result.Domain, result.Candidates, started, store.FromSubdomains(result))
	}
	return nil
}
