// Package main is the entry point for agent-recall.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/JavaPanda30/hackathon-super-memory-mcp-server/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := cli.NewRootCmd(version).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
