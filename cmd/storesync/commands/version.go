package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/merchkit/storesync/internal/build"
)

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		Run: func(cmd *cobra.Command, _ []string) {
			if build.Commit != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "storesync version %s (%s)\n", build.Version, build.Commit)
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "storesync version %s\n", build.Version)
		},
	}
}
