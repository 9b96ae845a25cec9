// ABOUTME: HTTP server command implementation for pagemem.
// ABOUTME: Serves the page store API until interrupted, then flushes the store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/2389-research/pagemem/internal/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API used by the browser extension.

Endpoints:
  GET  /api/health     Health check
  POST /api/store      Store a page summary
  POST /api/similar    Find similar pages
  GET  /api/stats      Store statistics
  GET  /api/webpages   List stored pages
  POST /api/clear      Remove every page`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8000)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	addr := globalConfig.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	// Load the model before accepting requests so the first one isn't slow.
	globalLogger.Info("embedding model status", "loaded", globalStore.ModelLoaded(ctx))

	return httpapi.New(globalStore, globalLogger).ListenAndServe(ctx, addr)
}
