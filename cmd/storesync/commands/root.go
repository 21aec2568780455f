// Package commands implements the CLI commands for storesync.
package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"github.com/merchkit/storesync/internal/build"
	"github.com/merchkit/storesync/internal/engine"
)

// CLI represents the command line interface for storesync.
type CLI struct {
	engine  *engine.Engine
	rootCmd *cobra.Command
}

// New creates a new CLI instance backed by the given engine.
func New(eng *engine.Engine) *CLI {
	rootCmd := &cobra.Command{
		Use:           "storesync",
		Short:         "Tenant data sync engine for storefront clients",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().StringP("tenant", "t", "", "Tenant id to operate on")

	c := &CLI{
		engine:  eng,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newGetCmd())
	rootCmd.AddCommand(c.newSetCmd())
	rootCmd.AddCommand(c.newPurgeCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput redirects command output. Used for testing.
func (c *CLI) SetOutput(w io.Writer) {
	c.rootCmd.SetOut(w)
	c.rootCmd.SetErr(w)
}

// SetIn redirects command input. Used for testing.
func (c *CLI) SetIn(r io.Reader) {
	c.rootCmd.SetIn(r)
}

// tenantFlag reads the required --tenant flag.
func tenantFlag(cmd *cobra.Command) (string, error) {
	tenant, err := cmd.Flags().GetString("tenant")
	if err != nil {
		return "", err
	}
	return tenant, nil
}
