package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/triage/cmd/cmdutil"
	"github.com/danielolaszy/triage/internal/cache"
	"github.com/danielolaszy/triage/internal/logging"
	"github.com/danielolaszy/triage/internal/output"
	"github.com/danielolaszy/triage/internal/signature"
	"github.com/danielolaszy/triage/internal/ticket"
)

// RunCmd runs signature handlers over cached tickets.
var RunCmd = &cobra.Command{
	Use:   "run [KEY...]",
	Short: "Run signature handlers over cached tickets",
	Long: `Run signature handlers over the extracted logs of cached tickets.
Without keys every cached ticket is processed. Without --handler every
registered handler runs.

Example:
  triage handlers run AITRIAGE-1234 --handler must-gather -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cmdutil.OutputFormat(cmd)
		if err != nil {
			return err
		}
		names, err := cmd.Flags().GetStringArray("handler")
		if err != nil {
			return err
		}
		cfg, err := cmdutil.LoadConfig(cmd)
		if err != nil {
			return err
		}

		dirCache, err := cache.NewDirectoryCache(cfg.Triage.DataDir)
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(args))
		for _, arg := range args {
			keys = append(keys, ticket.NormalizeKey(arg))
		}
		if len(keys) == 0 {
			if keys, err = dirCache.CachedIssueIDs(); err != nil {
				return err
			}
		}

		registry := signature.DefaultRegistry()
		var (
			results []signature.Result
			errs    []error
		)
		for _, key := range keys {
			t, err := dirCache.LoadMetadata(key)
			if err != nil {
				logging.Warn("skipping ticket", "ticket", key, "error", err)
				errs = append(errs, err)
				continue
			}
			res, err := registry.Run(cmd.Context(), t, dirCache.Path(key), names...)
			results = append(results, res...)
			if err != nil {
				errs = append(errs, err)
			}
		}

		if err := writeResults(cmd, format, results); err != nil {
			return err
		}
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("some handlers failed: %w", err)
		}
		return nil
	},
}

func init() {
	RunCmd.Flags().StringArray("handler", nil, "Handler to run (repeatable); defaults to all")
	cmdutil.AddOutputFlag(RunCmd)
}

func writeResults(cmd *cobra.Command, format output.Format, results []signature.Result) error {
	if format != output.FormatText {
		if results == nil {
			results = []signature.Result{}
		}
		return output.Encode(cmd.OutOrStdout(), format, results)
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		matched := "no"
		if r.Matched {
			matched = "yes"
		}
		rows = append(rows, []string{r.Ticket, r.Handler, matched, r.Detail, strings.Join(r.Paths, ",")})
	}
	return output.Table(cmd.OutOrStdout(), []string{"TICKET", "HANDLER", "MATCHED", "DETAIL", "PATHS"}, rows)
}
