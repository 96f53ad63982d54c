package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m3rciful/scenebot/core/buildinfo"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "scenebot", buildinfo.Get())
		},
	}
}
