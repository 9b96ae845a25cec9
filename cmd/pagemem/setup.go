// ABOUTME: Cobra command for interactive embedding backend setup.
// ABOUTME: Launches a bubbletea TUI wizard to choose and validate the embedding model.
package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/2389-research/pagemem/internal/config"
	"github.com/2389-research/pagemem/internal/tui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Choose the embedding model",
	Long:  "Interactive wizard to configure and test the embedding backend.",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	// Environment overrides are not written back to the file.
	cfg, err := config.LoadFile()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyDefaults()

	model := tui.NewSetupModel(embeddingSettings(cfg))

	p := tea.NewProgram(model)
	result, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	final := result.(tui.SetupModel)
	if !final.ShouldSave() {
		fmt.Println("Setup cancelled.")
		return nil
	}

	s := final.Result()
	cfg.Embedding.Provider = s.Provider
	cfg.Embedding.BaseURL = s.BaseURL
	cfg.Embedding.Model = s.Model
	cfg.Embedding.APIKey = s.APIKey

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	configPath, err := config.GetConfigPath()
	if err != nil {
		fmt.Println("Config saved successfully.")
	} else {
		fmt.Printf("Config saved to %s\n", configPath)
	}
	return nil
}
