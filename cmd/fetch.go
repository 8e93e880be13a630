package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/triage/cmd/cmdutil"
	"github.com/danielolaszy/triage/internal/logging"
	"github.com/danielolaszy/triage/internal/output"
	"github.com/danielolaszy/triage/internal/pipeline"
)

// fetchCmd fetches individual triage tickets by key.
var fetchCmd = &cobra.Command{
	Use:   "fetch KEY [KEY...]",
	Short: "Fetch triage tickets by key",
	Long: `Fetch one or more triage tickets by key, download and extract their
attachments and store their metadata in the cache.

Keys are case-insensitive. Tickets that do not exist or are not triage
tickets are skipped with a warning.

Example:
  triage fetch AITRIAGE-1234 AITRIAGE-1300 -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cmdutil.OutputFormat(cmd)
		if err != nil {
			return err
		}

		cfg, err := cmdutil.LoadConfig(cmd)
		if err != nil {
			return err
		}
		p, err := pipeline.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize pipeline: %w", err)
		}
		defer p.Close()

		logging.Info("fetching tickets", "keys", args)
		tickets, err := p.FetchKeys(cmd.Context(), args)
		p.LogSummary()
		if err != nil {
			return err
		}
		return output.Tickets(cmd.OutOrStdout(), format, tickets)
	},
}

func init() {
	cmdutil.AddOutputFlag(fetchCmd)
}
