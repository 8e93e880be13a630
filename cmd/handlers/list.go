// Package handlers provides the signature handler commands.
package handlers

import (
	"github.com/spf13/cobra"

	"github.com/danielolaszy/triage/internal/output"
	"github.com/danielolaszy/triage/internal/signature"
)

// ListCmd lists the registered signature handlers.
var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List signature handlers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := signature.DefaultRegistry()

		var rows [][]string
		for _, name := range registry.Names() {
			h, _ := registry.Get(name)
			rows = append(rows, []string{name, h.Title()})
		}
		return output.Table(cmd.OutOrStdout(), []string{"NAME", "TITLE"}, rows)
	},
}
