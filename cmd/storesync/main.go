// Package main is the entry point for the storesync daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"github.com/merchkit/storesync/cmd/storesync/commands"
	"github.com/merchkit/storesync/internal/engine"
	_ "github.com/merchkit/storesync/internal/wiring"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// 0. Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. Initialize the engine and its adapters
	eng, _, err := graft.ExecuteFor[*engine.Engine](ctx)
	if err != nil {
		// Logger is not available if initialization failed
		_, _ = fmt.Fprintf(os.Stderr, "%+v\n", err)
		return 1
	}
	defer func() { _ = eng.Close() }()

	// 2. Interface - CLI
	cli := commands.New(eng)
	cli.SetArgs(args)

	// 3. Execution
	if err := cli.Execute(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%+v\n", err)
		return 1
	}
	return 0
}
