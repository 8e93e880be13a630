package cmd

import (
	"github.com/spf13/cobra"

	"github.com/danielolaszy/triage/cmd/handlers"
)

// handlersCmd groups the signature handler commands.
var handlersCmd = &cobra.Command{
	Use:   "handlers",
	Short: "Run signature handlers over cached tickets",
	Long: `Signature handlers look for known failure signatures in the extracted
logs of cached tickets.`,
}

func init() {
	handlersCmd.AddCommand(handlers.ListCmd)
	handlersCmd.AddCommand(handlers.RunCmd)
}
