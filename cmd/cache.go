package cmd

import (
	"github.com/spf13/cobra"

	"github.com/danielolaszy/triage/cmd/cache"
)

// cacheCmd groups the commands that inspect the local ticket cache.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the local ticket cache",
	Long: `Commands for inspecting the tickets staged in TRIAGE_DATA_DIR and the
history of their downloads. These commands work offline.`,
}

func init() {
	cacheCmd.AddCommand(cache.ListCmd)
	cacheCmd.AddCommand(cache.ShowCmd)
}
