package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/straja-ai/emotion/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "emotion %s (commit %s, built %s, %s %s)\n",
				v.Version, v.GitCommit, v.BuildDate, v.GoVersion, v.Platform)
			return nil
		},
	}
}
