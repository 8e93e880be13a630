// Package cmdutil holds the flag and configuration helpers shared by the
// triage commands and their subcommand packages.
package cmdutil

import (
	"github.com/spf13/cobra"

	"github.com/danielolaszy/triage/internal/config"
	"github.com/danielolaszy/triage/internal/output"
)

// LoadConfig reads the configuration named by the persistent --config flag.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.LoadConfig(path)
}

// AddOutputFlag registers the -o/--output flag on cmd.
func AddOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", string(output.FormatText), "Output format (text, json, yaml)")
}

// OutputFormat returns the validated value of the --output flag.
func OutputFormat(cmd *cobra.Command) (output.Format, error) {
	name, err := cmd.Flags().GetString("output")
	if err != nil {
		return "", err
	}
	return output.ParseFormat(name)
}
