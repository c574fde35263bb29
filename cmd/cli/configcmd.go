package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/averlane/osprey/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the osprey configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			p, err := config.DefaultPath()
			if err != nil {
				return err
			}
			path = p
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		fmt.Println("wrote", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := *cfg
		// Keys are secrets; show only which services have one.
		shown.APIKeys = map[string]string{}
		for service := range cfg.APIKeys {
			shown.APIKeys[service] = "(set)"
		}
		return yaml.NewEncoder(os.Stdout).Encode(&shown)
	},
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key <service> <key>",
	Short: "Store an API key for an external service",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			p, err := config.DefaultPath()
			if err != nil {
				return err
			}
			path = p
		}
		cfg.SetAPIKey(args[0], args[1])
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Printf("stored key for %s\n", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetKeyCmd)
	rootCmd.AddCommand(configCmd)
}
