package commands

import (
	"github.com/spf13/cobra"
	"github.com/merchkit/storesync/internal/core/domain"
)

func (c *CLI) newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Sync a tenant's data until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, err := tenantFlag(cmd)
			if err != nil {
				return err
			}

			cancel := c.engine.Subscribe(func(entry domain.CacheEntry) {
				cmd.Printf("%s %s %s\n", entry.TenantID, entry.Kind, entry.Origin)
			})
			defer cancel()

			if err := c.engine.Switch(cmd.Context(), tenant); err != nil {
				return err
			}

			<-cmd.Context().Done()
			return nil
		},
	}
}
