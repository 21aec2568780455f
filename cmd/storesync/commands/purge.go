package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete a tenant's cached data and local snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, err := tenantFlag(cmd)
			if err != nil {
				return err
			}
			if err := c.engine.Switch(cmd.Context(), tenant); err != nil {
				return err
			}
			if err := c.engine.DeleteAll(cmd.Context()); err != nil {
				return err
			}
			cmd.Printf("purged local data for tenant %s\n", tenant)
			return nil
		},
	}
}
