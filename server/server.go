package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"melodex/cache"
	"melodex/config"
	"melodex/db"
	"melodex/filestore"
	"melodex/logger"
	"melodex/model"
	"melodex/repository"
	"melodex/scanner"

	"github.com/gorilla/mux"
)

// Start initializes every collaborator and runs the HTTP server until a
// shutdown signal arrives.
func Start() {
	cfg := config.Load()
	logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	if err := db.Connect(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.Close()

	if err := db.AutoMigrate(
		&model.Artist{}, &model.Album{}, &model.Genre{},
		&model.Track{}, &model.PlaylistEntry{}, &model.CacheEntry{},
	); err != nil {
		logger.Fatal("failed to migrate models", logger.ErrorField(err))
	}

	redisClient, err := cache.ConnectRedis(cfg)
	if err != nil {
		logger.Fatal("failed to connect to Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	files, err := filestore.NewMinioFileStore(cfg)
	if err != nil {
		logger.Fatal("failed to connect to MinIO", logger.ErrorField(err))
	}

	repos := repository.NewMySQLRepositories(db.GormDB)
	blobs := cache.NewRedisBlobStore(redisClient, time.Duration(cfg.BlobTTLHours)*time.Hour)
	coordinator := cache.NewCoordinator(repos.Cache, blobs, cfg.CacheMaxBytes)

	sync := scanner.NewSynchronizer(repos, files, coordinator, cfg)
	snapshots := scanner.NewSnapshotProducer(repos, coordinator)
	covers := scanner.NewCoverProducer(repos, files, coordinator)

	handler := NewAPIHandler(sync, snapshots, covers, files, cfg)

	router := mux.NewRouter()
	router.HandleFunc("/healthz", handler.Health).Methods(http.MethodGet)
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/scan", handler.TriggerScan).Methods(http.MethodPost)
	api.HandleFunc("/scan/status", handler.ScanStatus).Methods(http.MethodGet)
	api.HandleFunc("/reconcile", handler.Reconcile).Methods(http.MethodPost)
	api.HandleFunc("/cache/invalidate", handler.Invalidate).Methods(http.MethodPost)
	api.HandleFunc("/snapshot", handler.Snapshot).Methods(http.MethodGet)
	api.HandleFunc("/cover/{kind}/{id}", handler.Cover).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", logger.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", logger.ErrorField(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", logger.ErrorField(err))
	}
}
