package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/planboard/planboard/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "planboard",
	Short: "Synchronize a board of work-item documents with the filesystem",
	Long: `Planboard keeps a live board of hierarchical work items (projects, epics,
features, stories, bugs) in sync with the markdown documents that define
them.

Documents carry YAML frontmatter (id, title, type, status, priority) and
live under workspace roots. Planboard derives the hierarchy from directory
structure and explicit parent fields, rolls container statuses up from
their children, and reacts to filesystem changes with debounced refreshes.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "Workspace directory")
}

// loadConfig resolves the workspace flag and reads its configuration.
func loadConfig(cmd *cobra.Command) (string, *config.Config, error) {
	ws, _ := cmd.Flags().GetString("workspace")
	ws, err := filepath.Abs(ws)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}
	cfg, err := config.Load(ws)
	if err != nil {
		return "", nil, err
	}
	return ws, cfg, nil
}
