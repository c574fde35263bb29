package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/averlane/osprey/internal/api"
	"github.com/averlane/osprey/internal/portscan"
	"github.com/averlane/osprey/internal/revdns"
	"github.com/averlane/osprey/internal/store"
	"github.com/averlane/osprey/internal/subenum"
)

var apiPort int

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve the scan engines over HTTP",
	Long: `Start an HTTP server exposing port scanning, reverse DNS, and
subdomain enumeration as JSON endpoints under /api/v1, plus /healthz and
Prometheus /metrics. The server binds to loopback by default.`,
	Args: cobra.NoArgs,
	RunE: runAPI,
}

func init() {
	apiCmd.Flags().IntVar(&apiPort, "port", 0, "listen port (default from config)")
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	apiConfig := cfg.API
	if apiPort > 0 {
		apiConfig.Port = apiPort
	}

	resolver := newResolver()
	client, err := newHTTPClient()
	if err != nil {
		return err
	}

	engines := api.Engines{
		PortScan: portscan.NewScanner(cfg.Settings, resolver),
		Reverse:  revdns.NewRunner(cfg.Settings, resolver),
		Subenum:  subenum.NewEnumerator(cfg.Settings, resolver, client),
	}

	var history *store.Store
	if cfg.Database.Enabled {
		history, err = openStore(cmd.Context())
		if err != nil {
			return fmt.Errorf("database configured but unreachable: %w", err)
		}
		defer func() { _ = history.Close() }()
	}

	server := api.New(apiConfig, engines, history)
	fmt.Fprintf(os.Stderr, "Listening on http://%s\n", server.Address())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Start(ctx)
}
