// Package cli implements the osprey command-line interface. It wires the
// Cobra command tree to the scan engines and keeps report output on
// stdout and logs on stderr.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/averlane/osprey/internal/config"
	"github.com/averlane/osprey/internal/dnsx"
	"github.com/averlane/osprey/internal/errors"
	"github.com/averlane/osprey/internal/httpx"
	"github.com/averlane/osprey/internal/logging"
)

var (
	cfgFile string
	verbose bool
	jsonOut bool

	// cfg is loaded once before any subcommand runs.
	cfg *config.Config
)

// Build information - set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "osprey",
	Short: "Network reconnaissance toolkit",
	Long: `Osprey is a network reconnaissance toolkit for authorized security
assessments. It performs TCP connect port scans, reverse DNS sweeps over
address ranges, and subdomain enumeration backed by certificate
transparency logs and DNS-verified wordlists.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree. Pre-flight errors such as a malformed
// target or an exceeded guardrail exit non-zero with a single message.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.IsCode(err, errors.CodeGuardrailExceeded) {
			fmt.Fprintln(os.Stderr, "Hint: pass --force to override the unit ceiling.")
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "emit results as JSON")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig loads the configuration file and environment overrides,
// then initializes logging from it.
func initConfig() {
	viper.AutomaticEnv()
	viper.SetEnvPrefix("OSPREY")

	path := cfgFile
	if path == "" {
		if p, err := config.DefaultPath(); err == nil {
			path = p
		}
	}

	loaded, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded

	if threads := viper.GetInt("max_threads"); threads > 0 {
		cfg.Settings.MaxThreads = threads
	}

	initLogging()
}

func initLogging() {
	logConfig := cfg.Logging
	if verbose {
		logConfig.Level = logging.LevelDebug
	}

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)
}

// newResolver builds the shared DNS client from the loaded settings.
func newResolver() *dnsx.Client {
	return dnsx.NewClient(cfg.Settings.ConnectTimeout)
}

// newHTTPClient builds the shared HTTP client from the loaded settings.
func newHTTPClient() (*httpx.Client, error) {
	return httpx.New(cfg.Settings)
}

func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}
