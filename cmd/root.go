package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	version    string
}

func rootCmd(version string) *cobra.Command {
	opts := &rootOptions{version: version}

	cmd := &cobra.Command{
		Use:   "hodlisma",
		Short: "Personal finance and crypto dashboard with an auditable change history",
		Long: `hodlisma serves the portfolio and budgeting API, the chat assistant and
the MCP endpoint. Every mutation is recorded in the audit log and can be
rolled back.

Quick start:
  hodlisma migrate                     # Apply database migrations
  hodlisma serve                       # Start the HTTP server
  hodlisma audit list --module crypto  # Show recent crypto changes
  hodlisma rollback <audit-id>         # Undo one recorded change`,
		SilenceUsage: true,
		Version:      version,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to the YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(serveCommand(opts))
	cmd.AddCommand(migrateCommand(opts))
	cmd.AddCommand(auditCommand(opts))
	cmd.AddCommand(rollbackCommand(opts))

	return cmd
}

// Execute runs the root command. It is called by main.main().
func Execute(version string) {
	if err := rootCmd(version).Execute(); err != nil {
		os.Exit(1)
	}
}
