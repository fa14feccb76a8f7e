package main

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"reverc/internal/server/artifact"
	"reverc/internal/server/compiler"
	"reverc/internal/server/config"
	"reverc/internal/server/invoke"
	"reverc/internal/server/janitor"
	"reverc/internal/server/mover"
	"reverc/internal/server/opponent"
	"reverc/internal/server/processor"
	"reverc/internal/server/sandbox"
	"reverc/internal/server/status"
	"reverc/internal/server/storage"
)

// newLogger writes console output in dev mode and JSON otherwise
func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var w io.Writer = os.Stderr
	if cfg.Dev {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// pipeline holds the artifact side of the server
type pipeline struct {
	store   *artifact.Store
	proc    *processor.Processor
	janitor *janitor.Janitor
}

// buildPipeline wires store, toolchain, sandbox and live invoker. db may
// be nil when persistence is disabled.
func buildPipeline(cfg *config.Config, db *storage.Store, logger *zerolog.Logger) (*pipeline, error) {
	store, err := artifact.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	if err := store.EnsureLayout(); err != nil {
		return nil, fmt.Errorf("prepare artifact store: %w", err)
	}

	runner := invoke.NewRunner(logger, cfg.RunnerPath, config.RunnerSubcommand)
	comp := compiler.New(compiler.Config{
		Path:          cfg.CompilerPath,
		IncludeDir:    cfg.IncludeDir,
		MemoryLimitKB: cfg.CompileMemKB,
		Timeout:       cfg.CompileTimeout,
	}, logger)

	deps := processor.Deps{
		Store:    store,
		Tracker:  status.NewTracker(store),
		Compiler: comp,
		Tester:   sandbox.NewRunner(store, runner, cfg.SandboxTimeout, logger),
		Mover:    mover.New(store, runner),
		Logger:   logger,
	}
	// a nil *storage.Store must not become a non-nil interface
	if db != nil {
		deps.Recorder = db
	}

	proc := processor.New(deps, processor.Options{
		Workers:     cfg.Workers,
		QueueSize:   cfg.QueueSize,
		MoveTimeout: cfg.MoveTimeout,
	})

	return &pipeline{
		store:   store,
		proc:    proc,
		janitor: janitor.New(store, cfg.TTLs(), logger),
	}, nil
}

// openStorage returns nil when persistence is disabled
func openStorage(cfg *config.Config, logger *zerolog.Logger) (*storage.Store, error) {
	if cfg.DBPath == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	db, err := storage.NewStore(cfg.DBPath, cfg.Dev, logger)
	if err != nil {
		return nil, err
	}
	if err := db.InitDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return db, nil
}

func newOpponents(cfg *config.Config, logger *zerolog.Logger) *opponent.Registry {
	providers := make([]opponent.Provider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providers = append(providers, opponent.NewOpenAIProvider(p))
	}
	return opponent.NewRegistry(logger, providers...)
}

// jwtSecret falls back to a random per-process secret, so admin tokens
// only live until restart
func jwtSecret(cfg *config.Config) ([]byte, error) {
	if cfg.JWTSecret != "" {
		return []byte(cfg.JWTSecret), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate JWT secret: %w", err)
	}
	return secret, nil
}
