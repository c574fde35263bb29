package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/averlane/osprey/internal/portscan"
	"github.com/averlane/osprey/internal/report"
	"github.com/averlane/osprey/internal/store"
)

var (
	portscanPorts   string
	portscanThreads int
	portscanSave    bool
)

var portscanCmd = &cobra.Command{
	Use:   "portscan <target>",
	Short: "TCP connect scan against a host",
	Long: `Scan the given host or IP address for open TCP ports using full
connect probes. Port specifications accept single ports, ranges, and
comma-separated combinations ("80", "1-1024", "22,80,8000-8100").`,
	Args: cobra.ExactArgs(1),
	RunE: runPortScan,
}

func init() {
	portscanCmd.Flags().StringVarP(&portscanPorts, "ports", "p", portscan.DefaultPorts, "ports to scan")
	portscanCmd.Flags().IntVarP(&portscanThreads, "threads", "t", 0, "concurrent probes (default from config)")
	portscanCmd.Flags().BoolVar(&portscanSave, "save", false, "persist the run to the configured database")
	rootCmd.AddCommand(portscanCmd)
}

func runPortScan(cmd *cobra.Command, args []string) error {
	target := args[0]
	started := time.Now()

	scanner := portscan.NewScanner(cfg.Settings, newResolver())
	result, err := scanner.Scan(cmd.Context(), target, portscan.Options{
		Ports:      portscanPorts,
		Threads:    portscanThreads,
		OnProgress: progressPrinter("portscan"),
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
		printer.PortScan(result)
	}

	if portscanSave {
		persistRun(cmd.Context(), "portscan", target, result.Scanned, started, store.FromPortScan(result))
	}
	return nil
}
