// ABOUTME: MCP server command implementation for pagemem.
// ABOUTME: Starts the MCP server in stdio mode for AI agent integration.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcppkg "github.com/2389-research/pagemem/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server (stdio mode)",
	Long: `Start the Model Context Protocol server for AI agent integration.

The MCP server communicates via stdio, allowing AI agents to store
page summaries and look up related pages through a standardized protocol.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server, err := mcppkg.NewServer(globalStore, mcppkg.WithLogger(globalLogger))
	if err != nil {
		return err
	}

	return server.Serve(ctx)
}
