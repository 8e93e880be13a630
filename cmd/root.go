// Package cmd provides the command-line interface for the triage tool.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/triage/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Triage fetches triage tickets and stages their logs locally",
	Long: `Triage is a CLI tool that pulls triage tickets from JIRA, downloads their
attachments into a local cache, unpacks every archive it finds and records
the cluster details named in each ticket description.

The cache lives in TRIAGE_DATA_DIR. Tickets already cached are never
downloaded twice.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, err := cmd.Flags().GetString("verbosity")
		if err != nil {
			return err
		}
		if verbosity != "" {
			logging.SetupLogger(os.Stderr, logging.ParseLevel(verbosity))
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// An interrupt cancels the running command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Add persistent flags that will be available to all commands
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().StringP("verbosity", "v", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(handlersCmd)
}
