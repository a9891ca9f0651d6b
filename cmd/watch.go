package cmd

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"melodex/scanner"

	"github.com/spf13/cobra"
)

var (
	watchUserID    int64
	watchLocalRoot string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a local directory and keep the index in sync",
	Long: `Watch a local mirror of the library root and translate filesystem events
into scans and reconciles. Delivery is at-least-once; all handling is idempotent.`,
	Run: func(cmd *cobra.Command, args []string) {
		eng, err := newEngine()
		if err != nil {
			log.Fatalf("failed to initialize: %v", err)
		}
		defer eng.close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		w := scanner.NewWatcher(eng.sync, watchUserID, watchLocalRoot, eng.cfg.LibraryRoot)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("watch failed: %v", err)
		}
	},
}

func init() {
	watchCmd.Flags().Int64Var(&watchUserID, "user", 0, "owning user id (required)")
	watchCmd.Flags().StringVar(&watchLocalRoot, "local-root", ".", "local directory mirroring the library root")
	watchCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(watchCmd)
}
