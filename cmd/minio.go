package cmd

import (
	"context"
	"fmt"
	"log"

	"melodex/config"
	"melodex/filestore"

	"github.com/spf13/cobra"
)

var minioMimePrefix string

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "Test the MinIO connection",
	Long:  `Connect to the MinIO file store and list the library files matching a mime prefix.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		fmt.Printf("MinIO: %s, bucket %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		files, err := filestore.NewMinioFileStore(cfg)
		if err != nil {
			log.Fatalf("failed to connect to MinIO: %v", err)
		}
		fmt.Println("connected")

		matches, err := files.SearchByMime(context.Background(), minioMimePrefix, cfg.LibraryRoot)
		if err != nil {
			log.Fatalf("listing failed: %v", err)
		}
		for _, f := range matches {
			fmt.Printf("%s\t%s\t%d\n", f.Path, f.Mime, f.Size)
		}
		fmt.Printf("%d files under %s with mime %s*\n", len(matches), cfg.LibraryRoot, minioMimePrefix)
	},
}

func init() {
	minioCmd.Flags().StringVar(&minioMimePrefix, "mime", "audio/", "mime prefix to list")
	rootCmd.AddCommand(minioCmd)
}
