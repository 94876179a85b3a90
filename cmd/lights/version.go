package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set by the build script.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "lights %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
			return nil
		},
	}
}
