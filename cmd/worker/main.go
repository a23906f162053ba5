package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/faceid/internal/config"
	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/observability"
	"github.com/your-org/faceid/internal/queue"
	"github.com/your-org/faceid/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	metricsAddr := flag.String("metrics-addr", ":8082", "address for /metrics and /healthz")
	workers := flag.Int("workers", runtime.NumCPU(), "audit writer goroutines")
	retentionEvery := flag.Duration("retention-interval", 10*time.Minute, "how often archived sources are trimmed")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting faceid worker", "workers", *workers)

	if !cfg.NATS.Enabled() || !cfg.Database.Enabled() {
		slog.Error("worker requires nats and database to be configured")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.NewPostgresStore(ctx, cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		slog.Error("ensure audit schema", "error", err)
		os.Exit(1)
	}

	// The stream may not exist yet if the API has never started.
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}
	producer.Close()

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeEvents(ctx, "identity-audit", func(ctx context.Context, ev models.IdentityEvent) error {
		if err := db.RecordEvent(ctx, ev); err != nil {
			return fmt.Errorf("audit event %s: %w", ev.ID, err)
		}
		observability.EventsAudited.WithLabelValues(string(ev.Type)).Inc()
		return nil
	}, *workers)
	if err != nil {
		slog.Error("start event consumer", "error", err)
		os.Exit(1)
	}

	if cfg.MinIO.Enabled() && cfg.MinIO.SourceRetention > 0 {
		minioStore, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Error("connect to minio", "error", err)
			os.Exit(1)
		}
		store, err := storage.NewFSStore(cfg.Storage)
		if err != nil {
			slog.Error("open identity store", "error", err)
			os.Exit(1)
		}
		go runRetention(ctx, store, minioStore, cfg.MinIO.SourceRetention, *retentionEvery)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}

// runRetention trims each group's archived sources to keep objects.
func runRetention(ctx context.Context, store *storage.FSStore, archive *storage.MinIOStore, keep int, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		groups, err := store.ListGroups()
		if err != nil {
			slog.Warn("list groups for retention", "error", err)
		}
		for _, g := range groups {
			n, err := archive.EnforceRetention(ctx, g, keep)
			if err != nil {
				slog.Warn("enforce source retention", "group_id", g, "error", err)
				continue
			}
			if n > 0 {
				slog.Info("trimmed archived sources", "group_id", g, "removed", n)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
