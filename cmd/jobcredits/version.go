package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vitwit/jobcredits"
)

// Actual version can be specified in build command.
var version = jobcredits.Version

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s\n", app, version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
