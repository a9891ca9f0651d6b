package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"melodex/cache"
	"melodex/config"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Test the Redis connection",
	Long:  `Connect to Redis and run a write/read/delete round-trip against the blob tier.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		fmt.Printf("Redis: %s:%s, DB %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		client, err := cache.ConnectRedis(cfg)
		if err != nil {
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		defer client.Close()
		fmt.Println("connected")

		ctx := context.Background()
		blobs := cache.NewRedisBlobStore(client, 5*time.Minute)

		payload := []byte("melodex connectivity check")
		hash := cache.ContentHash(payload)
		if err := blobs.Put(ctx, hash, payload); err != nil {
			log.Fatalf("put failed: %v", err)
		}
		data, found, err := blobs.Get(ctx, hash)
		if err != nil || !found {
			log.Fatalf("get failed (found=%v): %v", found, err)
		}
		if string(data) != string(payload) {
			log.Fatalf("unexpected payload: %q", data)
		}
		if err := blobs.Delete(ctx, hash); err != nil {
			log.Fatalf("delete failed: %v", err)
		}
		fmt.Println("blob round-trip ok")
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
