package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/planboard/planboard/internal/controller"
	"github.com/planboard/planboard/internal/feed"
	"github.com/planboard/planboard/internal/logging"
	"github.com/planboard/planboard/internal/suppress"
	"github.com/planboard/planboard/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the workspace and keep the board in sync",
	Long: `Run the synchronization daemon: watch the workspace roots for document
changes, classify each change, and refresh the board with debouncing.

Batch operations (git/jj checkouts, rebases) are detected through VCS
marker files and collapsed into a single refresh once the working copy
settles. Container statuses are re-derived bottom-up on every full
refresh and written back to the documents.

Example usage:
  planboard watch                    # Watch the current workspace
  planboard watch --feed-port 8422   # Also serve the WebSocket feed

Press Ctrl+C to stop; a final refresh runs before exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetInt("feed-port"); port > 0 {
			cfg.FeedPort = port
		}

		var logger *log.Logger
		if cfg.LogFile != "" {
			logger = logging.NewFileTee("planboard", cfg.LogFile)
		} else {
			logger = logging.New("planboard")
		}

		ctrl, err := controller.New(controller.Config{
			Roots:      cfg.Roots,
			Debounce:   cfg.Debounce,
			BatchQuiet: cfg.BatchQuiet,
			CacheSize:  cfg.CacheSize,
			Markers:    suppress.DefaultMarkers(ws),
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("failed to start controller: %w", err)
		}
		defer ctrl.Close()

		watcher, err := watch.New()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := watcher.Start(cfg.Roots, ctrl.MarkerDirs()); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer watcher.Stop()

		go func() {
			for ev := range watcher.Events() {
				ctrl.Notify(ev)
			}
		}()
		go func() {
			for err := range watcher.Errors() {
				logger.Printf("watcher error: %v", err)
			}
		}()

		var feedServer *feed.Server
		if cfg.FeedPort > 0 {
			feedServer = feed.NewServer(ctrl, &feed.Config{
				Port:   cfg.FeedPort,
				Logger: logging.New("feed"),
			})
			if err := feedServer.Start(); err != nil {
				return fmt.Errorf("failed to start feed: %w", err)
			}
			defer func() { _ = feedServer.Stop() }()
			fmt.Printf("Feed: ws://localhost:%d/ws\n", cfg.FeedPort)
		}

		st := ctrl.Stats()
		fmt.Printf("Watching %d root(s), %d item(s) loaded\n", len(cfg.Roots), st.Items)
		fmt.Println("Press Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		<-ctx.Done()

		fmt.Println("\nShutting down...")
		return nil
	},
}

func init() {
	watchCmd.Flags().Int("feed-port", 0, "Serve the WebSocket feed on this port (0 disables)")
	rootCmd.AddCommand(watchCmd)
}
