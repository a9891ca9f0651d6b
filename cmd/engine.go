package cmd

import (
	"fmt"
	"time"

	"melodex/cache"
	"melodex/config"
	"melodex/db"
	"melodex/filestore"
	"melodex/logger"
	"melodex/model"
	"melodex/repository"
	"melodex/scanner"
)

// engine bundles the fully wired synchronizer for CLI commands.
type engine struct {
	cfg   *config.Config
	files filestore.FileStore
	sync  *scanner.Synchronizer
	close func()
}

// newEngine connects MySQL, Redis and MinIO and wires the synchronizer the
// same way the server does.
func newEngine() (*engine, error) {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, OutputPath: cfg.LogPath})

	if err := db.Connect(cfg); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := db.AutoMigrate(
		&model.Artist{}, &model.Album{}, &model.Genre{},
		&model.Track{}, &model.PlaylistEntry{}, &model.CacheEntry{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	redisClient, err := cache.ConnectRedis(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	files, err := filestore.NewMinioFileStore(cfg)
	if err != nil {
		redisClient.Close()
		db.Close()
		return nil, fmt.Errorf("minio: %w", err)
	}

	repos := repository.NewMySQLRepositories(db.GormDB)
	blobs := cache.NewRedisBlobStore(redisClient, time.Duration(cfg.BlobTTLHours)*time.Hour)
	coordinator := cache.NewCoordinator(repos.Cache, blobs, cfg.CacheMaxBytes)

	return &engine{
		cfg:   cfg,
		files: files,
		sync:  scanner.NewSynchronizer(repos, files, coordinator, cfg),
		close: func() {
			redisClient.Close()
			db.Close()
		},
	}, nil
}
