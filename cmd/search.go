package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/triage/cmd/cmdutil"
	"github.com/danielolaszy/triage/internal/output"
	"github.com/danielolaszy/triage/internal/pipeline"
	"github.com/danielolaszy/triage/internal/ticket"
)

// searchCmd fetches every triage ticket matching a query.
var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search for triage tickets and stage their logs",
	Long: `Search for triage tickets in the configured project and component,
then download and extract the attachments of every match.

Filters are combined with AND. Without filters every triage ticket is
fetched, so combine --days with --limit when exploring.

Example:
  triage search --days 7 --version 4.14.2
  triage search --text "etcd leader" --jql "status = Open" -o yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := cmdutil.OutputFormat(cmd)
		if err != nil {
			return err
		}
		pageSize, err := cmd.Flags().GetInt("page-size")
		if err != nil {
			return err
		}
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}
		if pageSize < 1 {
			return fmt.Errorf("page size must be at least 1")
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

		query, err := buildQuery(cmd, p.Query())
		if err != nil {
			return err
		}

		tickets, err := p.Search(cmd.Context(), query, pageSize, limit)
		p.LogSummary()
		if err != nil {
			return err
		}
		return output.Tickets(cmd.OutOrStdout(), format, tickets)
	},
}

func init() {
	addQueryFlags(searchCmd)
	searchCmd.Flags().Int("page-size", pipeline.DefaultPageSize, "Issues requested per page")
	searchCmd.Flags().Int("limit", 0, "Stop after this many issues (0 means no limit)")
	cmdutil.AddOutputFlag(searchCmd)
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("days", "d", 0, "Only tickets created in the last N days")
	cmd.Flags().StringP("text", "t", "", "Free-text search")
	cmd.Flags().String("version", "", "OpenShift version named in the ticket")
	cmd.Flags().StringArray("jql", nil, "Additional raw JQL clause (repeatable)")
}

// buildQuery applies the filter flags of cmd to base.
func buildQuery(cmd *cobra.Command, base ticket.Query) (ticket.Query, error) {
	query := base

	days, err := cmd.Flags().GetInt("days")
	if err != nil {
		return query, err
	}
	if days < 0 {
		return query, fmt.Errorf("days must not be negative")
	}
	if days > 0 {
		query = query.DaysQuery(days)
	}

	text, err := cmd.Flags().GetString("text")
	if err != nil {
		return query, err
	}
	if text != "" {
		query = query.TextLikeQuery(text)
	}

	version, err := cmd.Flags().GetString("version")
	if err != nil {
		return query, err
	}
	if version != "" {
		query = query.OpenShiftVersion(version)
	}

	clauses, err := cmd.Flags().GetStringArray("jql")
	if err != nil {
		return query, err
	}
	for _, clause := range clauses {
		query = query.JQLClause(clause)
	}
	return query, nil
}
