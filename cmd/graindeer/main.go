// Command graindeer runs the lock-step grain and graindeer simulation and
// prints one row per simulated month.
//
// Settings come from the environment:
//
//	GRAINDEER_CONFIG         YAML parameter file (defaults apply when unset)
//	GRAINDEER_DB             SQLite run store, e.g. data/graindeer.db (disabled when unset)
//	GRAINDEER_JOURNAL_DIR    directory for per-run zstd JSONL journals (disabled when unset)
//	GRAINDEER_OTEL_ENDPOINT  OTLP/HTTP trace endpoint (disabled when unset)
//	GRAINDEER_LOG_LEVEL      debug, info, warn or error
//	GRAINDEER_LOG_MONTHS     also log every month through slog
//
// Every simulation parameter can be overridden with GRAINDEER_<FIELD>, see
// package config.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/graindeer/internal/config"
	"github.com/talgya/graindeer/internal/engine"
	"github.com/talgya/graindeer/internal/entropy"
	"github.com/talgya/graindeer/internal/persistence"
	"github.com/talgya/graindeer/internal/telemetry"
)

type settings struct {
	ConfigPath   string     `env:"CONFIG"`
	DBPath       string     `env:"DB"`
	JournalDir   string     `env:"JOURNAL_DIR"`
	OTelEndpoint string     `env:"OTEL_ENDPOINT"`
	LogLevel     slog.Level `env:"LOG_LEVEL" envDefault:"info"`
	LogMonths    bool       `env:"LOG_MONTHS"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("graindeer failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var set settings
	if err := env.ParseWithOptions(&set, env.Options{Prefix: config.EnvPrefix}); err != nil {
		return fmt.Errorf("parse settings: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: set.LogLevel,
	}))
	slog.SetDefault(logger)

	// ── Configuration ─────────────────────────────────────────────────
	cfg := config.Default()
	if set.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(set.ConfigPath); err != nil {
			return err
		}
		slog.Info("config loaded", "path", set.ConfigPath)
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Seed == 0 {
		seed, err := entropy.NewSeed()
		if err != nil {
			return err
		}
		cfg.Seed = seed
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Tracing ───────────────────────────────────────────────────────
	shutdown, err := telemetry.Setup(ctx, "graindeer", set.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Warn("trace shutdown failed", "error", err)
		}
	}()

	// ── Recorders ─────────────────────────────────────────────────────
	recorders := []engine.Recorder{engine.NewTextRecorder(os.Stdout)}
	if set.LogMonths {
		recorders = append(recorders, engine.NewLogRecorder(logger))
	}

	var db *persistence.DB
	var runID string
	if set.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(set.DBPath), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		if db, err = persistence.Open(set.DBPath); err != nil {
			return err
		}
		defer db.Close()
		slog.Info("database opened", "path", set.DBPath)

		if runID, err = db.BeginRun(ctx, cfg); err != nil {
			return err
		}
		recorders = append(recorders, db.Recorder(runID))
	}

	if set.JournalDir != "" {
		if runID == "" {
			runID = uuid.NewString()
		}
		journal := persistence.NewJournal(set.JournalDir, runID)
		defer func() {
			if err := journal.Close(); err != nil {
				slog.Error("journal close failed", "error", err)
			}
		}()
		recorders = append(recorders, journal)
		slog.Info("journal enabled", "dir", filepath.Join(set.JournalDir, runID))
	}

	// ── Simulation ────────────────────────────────────────────────────
	sim, err := engine.New(cfg, engine.Fanout(recorders...))
	if err != nil {
		return err
	}
	runErr := sim.Run(ctx)
	final := sim.State()

	if db != nil {
		if err := db.FinishRun(context.Background(), runID, final, runErr); err != nil {
			slog.Error("finish run failed", "run_id", runID, "error", err)
		}
		if err := db.SaveMeta("last_run", runID); err != nil {
			slog.Error("save meta failed", "error", err)
		}
	}

	if errors.Is(runErr, context.Canceled) {
		slog.Info("simulation interrupted", "at", final.Clock.String())
		return nil
	}
	if runErr != nil {
		return runErr
	}

	fmt.Printf("\n%s months simulated (seed %d): %s graindeer, %sin of grain, popularity %.2f\n",
		humanize.Comma(int64(final.Clock.MonthIndex-1)), cfg.Seed,
		humanize.Comma(int64(final.Population)),
		humanize.FormatFloat("#,###.##", final.Resource),
		final.Popularity,
	)
	if db != nil {
		fmt.Printf("Run %s saved to %s\n", runID, set.DBPath)
	}
	return nil
}
