package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/merchkit/storesync/internal/core/domain"
)

func (c *CLI) newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <kind> [file]",
		Short: "Write a new value for one kind, reading from a file or stdin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, err := tenantFlag(cmd)
			if err != nil {
				return err
			}

			var value []byte
			if len(args) == 2 {
				value, err = os.ReadFile(args[1])
			} else {
				value, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}

			if err := c.engine.Switch(cmd.Context(), tenant); err != nil {
				return err
			}
			if err := c.engine.Update(cmd.Context(), domain.Kind(args[0]), value); err != nil {
				return err
			}
			// One-shot invocation: push the save out now instead of
			// waiting for the debounce window.
			c.engine.Flush()
			return nil
		},
	}
}
