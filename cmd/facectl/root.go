package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/your-org/faceid/internal/config"
	"github.com/your-org/faceid/internal/events"
	"github.com/your-org/faceid/internal/observability"
	"github.com/your-org/faceid/internal/queue"
	"github.com/your-org/faceid/internal/storage"
)

// app is what every subcommand runs against, built once the persistent
// flags are parsed.
type app struct {
	configPath string
	envFile    string

	cfg   *config.Config
	store *storage.FSStore
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "facectl",
		Short: "Maintenance tool for a faceid identity store",
		Long: `facectl inspects and repairs the group/person tree the faceid API
serves from. It reads the same config file and FACEID_* environment
variables as the API.

Stop the API server before running commands that modify a group.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config file (defaults and environment only when empty)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "optional dotenv file loaded before the config")

	root.AddCommand(
		newListCmd(a),
		newMergeCmd(a),
		newDeleteGroupCmd(a),
		newLastImageCmd(a),
		newPruneCmd(a),
		newSweepCmd(a),
	)
	return root
}

func (a *app) setup(_ *cobra.Command, _ []string) error {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load(a.envFile)

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	observability.SetupLogger(cfg.Logging.Level, "text")

	store, err := storage.NewFSStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open identity store: %w", err)
	}
	a.cfg = cfg
	a.store = store
	return nil
}

// publisher forwards events to NATS when it is configured, so changes made
// here still reach the audit log.
func (a *app) publisher(ctx context.Context) (events.Publisher, func()) {
	if !a.cfg.NATS.Enabled() {
		return events.Discard{}, func() {}
	}
	producer, err := queue.NewProducer(a.cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, events will not be published", "error", err)
		return events.Discard{}, func() {}
	}
	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}
	return producer, producer.Close
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
