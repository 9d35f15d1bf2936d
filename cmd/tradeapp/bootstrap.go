package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"

	"trade-app/internal/advisor"
	"trade-app/internal/contextstore"
	"trade-app/internal/interfaces"
	"trade-app/internal/journal"
	"trade-app/internal/llm"
	"trade-app/internal/logger"
	"trade-app/internal/store"
	"trade-app/internal/trace"
)

// app holds the wired collaborators of one process.
type app struct {
	cfg     *store.Config
	store   interfaces.ContextStore
	journal *journal.Journal
	advisor interfaces.Advisor
}

// initializeSystem loads .env and initializes logger and tracer. One-shot
// commands log to stderr so stdout carries only their JSON output.
func initializeSystem(logOutput string) error {
	_ = godotenv.Load()

	lc := logger.LoadConfigFromEnv()
	if os.Getenv("LOG_OUTPUT") == "" {
		lc.Output = logOutput
	}
	if err := logger.InitWithConfig(lc); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(version); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// loadConfig reads the YAML config. A missing file falls back to defaults.
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn(ctx, "Config file not found, using defaults", "path", path)
		cfg = store.Defaults()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// initializeJournal builds the decision journal and compresses old files.
func initializeJournal(ctx context.Context, cfg *store.Config) *journal.Journal {
	j := journal.New(cfg.Journal.Dir, cfg.Journal.Enabled)
	if err := j.CompressOlder(ctx, cfg.Journal.RetentionDays); err != nil {
		logger.Warn(ctx, "Failed to compress old journal files", "error", err)
	}
	return j
}

// bootstrap wires config, store, inferencer, journal and advisor.
func bootstrap(ctx context.Context, logOutput string) (*app, error) {
	if err := initializeSystem(logOutput); err != nil {
		return nil, err
	}

	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return nil, err
	}

	cs, err := contextstore.New(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to open context store", err, "backend", cfg.Storage.Backend)
		return nil, err
	}

	inf, err := llm.New(ctx, cfg)
	if err != nil {
		_ = cs.Close()
		return nil, err
	}

	j := initializeJournal(ctx, cfg)

	logger.Info(ctx, "System initialized",
		"version", version,
		"storage", cfg.Storage.Backend,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"journal", cfg.Journal.Enabled,
	)

	return &app{
		cfg:     cfg,
		store:   cs,
		journal: j,
		advisor: advisor.New(cfg, cs, inf, j),
	}, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.store.Close(); err != nil {
		logger.Warn(ctx, "Failed to close context store", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = trace.Shutdown(shutdownCtx)
	logger.Sync()
}
