package cache

import (
	"github.com/spf13/cobra"

	"github.com/danielolaszy/triage/cmd/cmdutil"
	"github.com/danielolaszy/triage/internal/cache"
	"github.com/danielolaszy/triage/internal/ledger"
	"github.com/danielolaszy/triage/internal/logging"
	"github.com/danielolaszy/triage/internal/output"
	"github.com/danielolaszy/triage/pkg/models"
)

// ListCmd lists the complete entries of the cache.
var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached tickets",
	Long: `List every ticket with a complete cache entry together with its
metadata. With --ledger the most recent download attempts are listed
instead, including failed ones.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cmdutil.OutputFormat(cmd)
		if err != nil {
			return err
		}
		showLedger, err := cmd.Flags().GetBool("ledger")
		if err != nil {
			return err
		}
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}

		cfg, err := cmdutil.LoadConfig(cmd)
		if err != nil {
			return err
		}

		if showLedger {
			l, err := ledger.Open(cfg.LedgerPath())
			if err != nil {
				return err
			}
			defer l.Close()

			entries, err := l.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeDownloads(cmd, format, entries)
		}

		dirCache, err := cache.NewDirectoryCache(cfg.Triage.DataDir)
		if err != nil {
			return err
		}
		keys, err := dirCache.CachedIssueIDs()
		if err != nil {
			return err
		}

		tickets := make([]*models.Ticket, 0, len(keys))
		for _, key := range keys {
			t, err := dirCache.LoadMetadata(key)
			if err != nil {
				logging.Warn("unable to read ticket metadata", "ticket", key, "error", err)
				t = &models.Ticket{Key: key}
			}
			tickets = append(tickets, t)
		}
		return output.Tickets(cmd.OutOrStdout(), format, tickets)
	},
}

func init() {
	ListCmd.Flags().Bool("ledger", false, "List download attempts from the ledger")
	ListCmd.Flags().Int("limit", 50, "Maximum number of ledger entries")
	cmdutil.AddOutputFlag(ListCmd)
}
