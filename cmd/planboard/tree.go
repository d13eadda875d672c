package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/planboard/planboard/internal/controller"
	"github.com/planboard/planboard/internal/logging"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the board tree",
	Long: `Load the workspace once, derive container statuses, and print the item
hierarchy with status and completion progress.

Example output:
  epic-1: Auth [in_progress] 1/3 (33%)
    feature-2: Login [completed] 2/2 (100%)
      story-4: Password form [completed]
      story-5: Session cookie [completed]
    story-3: Logout [not_started]`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var logger = logging.New("planboard")
		if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
			logger = nil
		}

		ctrl, err := controller.New(controller.Config{
			Roots:     cfg.Roots,
			Debounce:  -1,
			CacheSize: cfg.CacheSize,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		defer ctrl.Close()

		var print func(views []controller.View, depth int)
		print = func(views []controller.View, depth int) {
			for _, v := range views {
				line := fmt.Sprintf("%s%s [%s]", strings.Repeat("  ", depth), v.Label, v.Status)
				if v.Progress != "" {
					line += " " + v.Progress
				}
				fmt.Println(line)
				if v.HasChildren {
					print(ctrl.Children(v.ID), depth+1)
				}
			}
		}
		print(ctrl.RootNodes(), 0)
		return nil
	},
}

func init() {
	treeCmd.Flags().BoolP("quiet", "q", false, "Suppress diagnostics")
	rootCmd.AddCommand(treeCmd)
}
