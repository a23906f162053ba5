package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/faceid/internal/api"
	"github.com/your-org/faceid/internal/api/handlers"
	"github.com/your-org/faceid/internal/api/ws"
	"github.com/your-org/faceid/internal/config"
	"github.com/your-org/faceid/internal/events"
	"github.com/your-org/faceid/internal/merge"
	"github.com/your-org/faceid/internal/observability"
	"github.com/your-org/faceid/internal/queue"
	"github.com/your-org/faceid/internal/recognizer"
	"github.com/your-org/faceid/internal/reconcile"
	"github.com/your-org/faceid/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting faceid API service",
		"port", cfg.Server.Port,
		"data_root", cfg.Storage.DataRoot,
		"mode", cfg.Recognition.Mode,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewFSStore(cfg.Storage)
	if err != nil {
		slog.Error("open identity store", "error", err)
		os.Exit(1)
	}
	// Finish group deletions interrupted by a previous crash.
	if n, err := store.SweepTombstones(); err != nil {
		slog.Warn("sweep tombstones", "error", err)
	} else if n > 0 {
		slog.Info("swept deleted groups", "count", n)
	}

	rec := recognizer.NewClient(cfg.Recognition)
	pingers := map[string]handlers.Pinger{"recognizer": rec}

	hub := ws.NewHub()
	go hub.Run(ctx)

	publishers := events.Fanout{hub}

	if cfg.NATS.Enabled() {
		producer, err := queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		if err := producer.EnsureStreams(ctx); err != nil {
			slog.Warn("ensure nats streams", "error", err)
		}
		publishers = append(publishers, producer)
		pingers["nats"] = producer
	}

	var minioStore *storage.MinIOStore
	var archive reconcile.SourceArchive
	if cfg.MinIO.Enabled() {
		minioStore, err = storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Error("connect to minio", "error", err)
			os.Exit(1)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			slog.Warn("ensure minio bucket", "error", err)
		}
		archive = minioStore
		pingers["minio"] = minioStore
	}

	var db *storage.PostgresStore
	if cfg.Database.Enabled() {
		db, err = storage.NewPostgresStore(ctx, cfg.Database)
		if err != nil {
			slog.Error("connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pingers["postgres"] = db
	}

	engine, err := reconcile.NewEngine(store, cfg.Recognition, reconcile.Options{
		Detector:   rec,
		Recognizer: rec,
		Publisher:  publishers,
		Archive:    archive,
	})
	if err != nil {
		slog.Error("create reconciliation engine", "error", err)
		os.Exit(1)
	}

	router := api.NewRouter(api.RouterConfig{
		Store:       store,
		Engines:     reconcile.NewHolder(engine),
		Coordinator: merge.NewCoordinator(store, publishers),
		Publisher:   publishers,
		Hub:         hub,
		DB:          db,
		MinIO:       minioStore,
		Pingers:     pingers,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...", "ws_clients", hub.Clients())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	cancel()

	slog.Info("API server stopped")
}
