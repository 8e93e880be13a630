package cache

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/triage/cmd/cmdutil"
	"github.com/danielolaszy/triage/internal/cache"
	"github.com/danielolaszy/triage/internal/ledger"
	"github.com/danielolaszy/triage/internal/output"
	"github.com/danielolaszy/triage/internal/ticket"
	"github.com/danielolaszy/triage/pkg/models"
)

// ShowCmd prints one cached ticket and its download history.
var ShowCmd = &cobra.Command{
	Use:   "show KEY",
	Short: "Show a cached ticket",
	Long: `Show the metadata of a cached ticket, where its logs are kept and
the download attempts recorded for it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cmdutil.OutputFormat(cmd)
		if err != nil {
			return err
		}
		cfg, err := cmdutil.LoadConfig(cmd)
		if err != nil {
			return err
		}

		key := ticket.NormalizeKey(args[0])
		dirCache, err := cache.NewDirectoryCache(cfg.Triage.DataDir)
		if err != nil {
			return err
		}
		t, err := dirCache.LoadMetadata(key)
		if errors.Is(err, cache.ErrNotCached) {
			return fmt.Errorf("ticket %s is not cached", key)
		}
		if err != nil {
			return err
		}

		l, err := ledger.Open(cfg.LedgerPath())
		if err != nil {
			return err
		}
		defer l.Close()
		entries, err := l.ForTicket(cmd.Context(), key)
		if err != nil {
			return err
		}

		if format != output.FormatText {
			return output.Encode(cmd.OutOrStdout(), format, struct {
				Ticket    *models.Ticket `json:"ticket" yaml:"ticket"`
				Path      string         `json:"path" yaml:"path"`
				Downloads []download     `json:"downloads" yaml:"downloads"`
			}{t, dirCache.Path(key), toDownloads(entries)})
		}

		if err := output.Tickets(cmd.OutOrStdout(), format, []*models.Ticket{t}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nPath: %s\n\n", dirCache.Path(key))
		return writeDownloads(cmd, format, entries)
	},
}

func init() {
	cmdutil.AddOutputFlag(ShowCmd)
}
