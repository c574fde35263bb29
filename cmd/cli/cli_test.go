package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCommand(t *testing.T, name string) *cobra.Command {
	t.Helper()
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name {
			return cmd
		}
	}
	t.Fatalf("command %q not registered", name)
	return nil
}

func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	return cmd.Flags().Lookup(name)
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"portscan", "reverse-dns", "subdomains", "history", "api", "config"} {
		findCommand(t, name)
	}
}

func TestRootFlags(t *testing.T) {
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("json"))
}

func TestPortscanFlags(t *testing.T) {
	cmd := findCommand(t, "portscan")
	for _, flag := range []string{"ports", "threads", "save"} {
		assert.NotNil(t, lookupFlag(cmd, flag), "flag %q", flag)
	}
	// The guardrail override belongs to IP-batch commands only; a port
	// spec is already capped by the expander.
	assert.Nil(t, lookupFlag(cmd, "force"))

	// Exactly one target argument.
	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"192.0.2.1"}))
	assert.Error(t, cmd.Args(cmd, []string{"a", "b"}))
}

func TestReverseDNSAliases(t *testing.T) {
	cmd := findCommand(t, "reverse-dns")
	assert.ElementsMatch(t, []string{"revdns", "ptr"}, cmd.Aliases)
	assert.NotNil(t, lookupFlag(cmd, "force"))
}

func TestSubdomainsFlags(t *testing.T) {
	cmd := findCommand(t, "subdomains")
	for _, flag := range []string{"crt", "brute", "skip-alive-check", "threads", "save"} {
		assert.NotNil(t, lookupFlag(cmd, flag), "flag %q", flag)
	}
}

func TestHistorySubcommands(t *testing.T) {
	cmd := findCommand(t, "history")
	require.NotNil(t, lookupFlag(cmd, "limit"))

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "show")
}

func TestVersionString(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2026-08-29")
	assert.Contains(t, rootCmd.Version, "1.2.3")
	assert.Contains(t, rootCmd.Version, "abc123")
}
