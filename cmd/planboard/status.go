package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planboard/planboard/internal/controller"
	"github.com/planboard/planboard/internal/item"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize the board",
	Long: `Load the workspace once and print item counts by lifecycle status,
after deriving container statuses from their children.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctrl, err := controller.New(controller.Config{
			Roots:     cfg.Roots,
			Debounce:  -1,
			CacheSize: cfg.CacheSize,
		})
		if err != nil {
			return err
		}
		defer ctrl.Close()

		st := ctrl.Stats()
		fmt.Printf("Items:      %d\n", st.Items)
		fmt.Printf("Containers: %d\n", st.Containers)
		fmt.Println()
		for _, status := range item.Statuses() {
			if n := st.ByStatus[status]; n > 0 {
				fmt.Printf("  %-12s %d\n", status, n)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
