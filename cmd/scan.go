package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var (
	scanUserID    int64
	scanReconcile bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [fileId...]",
	Short: "Index files into the library",
	Long: `Run a bulk scan for one user. With file id arguments only those files are
indexed; without arguments every audio file under the library root is scanned.
With --reconcile, tracks whose files are gone are removed afterwards.`,
	Run: func(cmd *cobra.Command, args []string) {
		eng, err := newEngine()
		if err != nil {
			log.Fatalf("failed to initialize: %v", err)
		}
		defer eng.close()

		ctx := context.Background()

		fileIDs := args
		if len(fileIDs) == 0 {
			audio, err := eng.files.SearchByMime(ctx, "audio/", eng.cfg.LibraryRoot)
			if err != nil {
				log.Fatalf("failed to enumerate library: %v", err)
			}
			for _, f := range audio {
				fileIDs = append(fileIDs, f.ID)
			}
		}

		result, err := eng.sync.ScanFiles(ctx, scanUserID, fileIDs)
		if err != nil {
			log.Fatalf("scan failed: %v", err)
		}
		fmt.Printf("indexed %d of %d files in %s\n", result.Count, len(fileIDs), result.Duration)

		if scanReconcile {
			if err := eng.sync.Reconcile(ctx, scanUserID); err != nil {
				log.Fatalf("reconcile failed: %v", err)
			}
			fmt.Println("reconcile finished")
		}

		status, err := eng.sync.Status(ctx, scanUserID)
		if err != nil {
			log.Fatalf("status failed: %v", err)
		}
		fmt.Printf("scanned=%d unscanned=%d obsolete=%d dirty=%d\n",
			status.Scanned, status.Unscanned, status.Obsolete, status.Dirty)
	},
}

func init() {
	scanCmd.Flags().Int64Var(&scanUserID, "user", 0, "owning user id (required)")
	scanCmd.Flags().BoolVar(&scanReconcile, "reconcile", false, "remove tracks whose files are gone")
	scanCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(scanCmd)
}
