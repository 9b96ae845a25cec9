// ABOUTME: Root Cobra command and global flags for pagemem CLI.
// ABOUTME: Sets up lifecycle hooks for config loading, store opening, and shutdown flush.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/2389-research/pagemem/internal/config"
	"github.com/2389-research/pagemem/internal/embeddings"
	"github.com/2389-research/pagemem/internal/index"
	"github.com/2389-research/pagemem/internal/logging"
	"github.com/2389-research/pagemem/internal/storage"
)

var globalConfig *config.Config
var globalLogger *slog.Logger
var globalProvider *embeddings.Provider
var globalStore *index.Store

var verbose bool

// activeRemote is the pagemem server the page subcommands use, empty for the local store.
var activeRemote string

var rootCmd = &cobra.Command{
	Use:   "pagemem",
	Short: "Semantic memory for web page summaries",
	Long: `
██████╗  █████╗  ██████╗ ███████╗███╗   ███╗███████╗███╗   ███╗
██╔══██╗██╔══██╗██╔════╝ ██╔════╝████╗ ████║██╔════╝████╗ ████║
██████╔╝███████║██║  ███╗█████╗  ██╔████╔██║█████╗  ██╔████╔██║
██╔═══╝ ██╔══██║██║   ██║██╔══╝  ██║╚██╔╝██║██╔══╝  ██║╚██╔╝██║
██║     ██║  ██║╚██████╔╝███████╗██║ ╚═╝ ██║███████╗██║ ╚═╝ ██║
╚═╝     ╚═╝  ╚═╝ ╚═════╝ ╚══════╝╚═╝     ╚═╝╚══════╝╚═╝     ╚═╝

Remember the pages you read and find related ones later.
Local-first: summaries and embeddings live in a single file on disk.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "setup" {
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		globalConfig = cfg

		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		globalLogger = logging.New(level, cfg.Log.Format, cmd.ErrOrStderr())

		activeRemote = remoteTarget(cmd)
		if activeRemote != "" {
			globalLogger.Debug("using remote page store", "url", activeRemote)
			return nil
		}

		storePath, err := cfg.GetStorePath()
		if err != nil {
			return fmt.Errorf("failed to resolve store path: %w", err)
		}
		codec, err := storage.Open(cfg.Store.Backend, storePath, storage.WithLogger(globalLogger))
		if err != nil {
			return fmt.Errorf("failed to open page store: %w", err)
		}

		globalProvider = embeddings.NewProvider(
			embeddings.LoaderFor(embeddingSettings(cfg)),
			embeddings.WithMaxInputChars(cfg.Embedding.MaxInputChars),
			embeddings.WithDimension(cfg.Embedding.Dimension),
			embeddings.WithLogger(globalLogger),
		)

		globalStore = index.New(globalProvider, codec, globalLogger)
		if err := globalStore.Open(cmd.Context()); err != nil {
			// The store starts empty; the unreadable file is replaced on the next write.
			globalLogger.Warn("continuing with empty page store", "path", storePath, "error", err)
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeGlobals(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// remoteTarget returns the server URL for page subcommands from --remote or
// PAGEMEM_REMOTE_URL. Other commands always use the local store.
func remoteTarget(cmd *cobra.Command) string {
	if !isPageCommand(cmd) {
		return ""
	}
	if remoteURL != "" {
		return remoteURL
	}
	return os.Getenv("PAGEMEM_REMOTE_URL")
}

func isPageCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c == pageCmd {
			return true
		}
	}
	return false
}

// closeGlobals flushes the store and releases the embedding backend.
func closeGlobals(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var errs []error
	if globalStore != nil {
		errs = append(errs, globalStore.Close(context.WithoutCancel(ctx)))
		globalStore = nil
	}
	if globalProvider != nil {
		errs = append(errs, globalProvider.Close())
		globalProvider = nil
	}
	return errors.Join(errs...)
}

// embeddingSettings maps the embedding config section onto backend settings.
func embeddingSettings(cfg *config.Config) embeddings.Settings {
	return embeddings.Settings{
		Provider:  cfg.Embedding.Provider,
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		Dimension: cfg.Embedding.Dimension,
	}
}
