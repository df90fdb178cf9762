// Package main provides the entry point for the richlist CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/xrplstats/richlist/cmd/richlist/commands"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt := &commands.Runtime{Out: os.Stdout}
	err := commands.NewRootCommand(rt).ExecuteContext(ctx)
	if rt.Logger != nil {
		_ = rt.Logger.Sync()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
