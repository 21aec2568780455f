package commands

import (
	"github.com/spf13/cobra"
	"github.com/merchkit/storesync/internal/core/domain"
)

func (c *CLI) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <kind>",
		Short: "Print the current value of one kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, err := tenantFlag(cmd)
			if err != nil {
				return err
			}
			if err := c.engine.Switch(cmd.Context(), tenant); err != nil {
				return err
			}

			h, err := c.engine.Handle(domain.Kind(args[0]))
			if err != nil {
				return err
			}
			cmd.Println(string(h.Value))
			return nil
		},
	}
}
