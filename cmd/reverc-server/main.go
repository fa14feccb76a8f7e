// Package main runs the ReverC server: upload pipeline, live move API and
// the maintenance subcommands that share its configuration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"reverc/cmd/reverc-server/cli"
	"reverc/internal/server/config"
	"reverc/internal/server/http"
	"reverc/internal/server/invoke"
	"reverc/internal/server/service"
)

const (
	gracefulShutdownTimeout = time.Second * 5
	envFile                 = ".env"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case config.RunnerSubcommand:
			// Child side of a bounded native call, never reads config.
			// A crash must not send goroutine dumps back to the parent.
			debug.SetTraceback("none")
			if err := invoke.Serve(os.Stdin, os.Stdout); err != nil {
				os.Exit(1)
			}
			os.Exit(0)
		case "db", "admin":
			exitOn(cli.Run(os.Args[1:]))
		case "archive":
			exitOn(runArchive(os.Args[2:]))
		case "sweep":
			exitOn(runSweep(os.Args[2:]))
		}
	}

	cfg, err := config.Load(os.Args[1:], envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	logger := newLogger(cfg)

	if cfg.PIDPath != "" {
		cleanup, err := managePIDFile(cfg.PIDPath, cfg.PIDLock)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to manage PID file")
		}
		defer cleanup()
		logger.Info().Str("path", cfg.PIDPath).Bool("lock", cfg.PIDLock).Msg("PID file created")
	}

	// 1. Storage (optional)
	db, err := openStorage(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	if db != nil {
		logger.Info().Str("path", cfg.DBPath).Msg("persistent storage enabled")
		defer func() {
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to close storage cleanly")
			}
		}()
	} else {
		logger.Info().Msg("persistent storage disabled")
	}

	// 2. Service
	secret, err := jwtSecret(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("JWT secret")
	}
	svc := service.New(db, service.Config{AdminHash: cfg.AdminHash, JWTSecret: secret}, &logger)

	// 3. Pipeline and janitor
	pl, err := buildPipeline(cfg, db, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize pipeline")
	}

	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	go pl.janitor.Run(janitorCtx, cfg.SweepInterval)

	// 4. HTTP
	opp := newOpponents(cfg, &logger)
	app := http.NewFiberApp(pl.proc, svc, opp, http.Options{Dev: cfg.Dev, Logger: &logger})

	go func() {
		logger.Info().
			Str("addr", cfg.Addr()).
			Str("data", pl.store.Root()).
			Int("workers", cfg.Workers).
			Int("queue", cfg.QueueSize).
			Strs("ai", opp.IDs()).
			Bool("admin", cfg.AdminHash != "").
			Bool("dev", cfg.Dev).
			Msg("ReverC API server starting")

		if err := app.Listen(cfg.Addr()); err != nil {
			logger.Error().Err(err).Msg("API server listen error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("server forced to shutdown")
	}

	janitorCancel()

	// queued uploads are dropped, running jobs get the shutdown window
	if err := pl.proc.Close(); err != nil {
		logger.Warn().Err(err).Msg("processor close error")
	}

	logger.Info().Msg("server exited")
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}
