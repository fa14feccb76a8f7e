package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reverc/internal/server/config"
)

// loadWith reads the server configuration plus subcommand flags
func loadWith(name string, args []string, register func(*flag.FlagSet)) (*config.Config, error) {
	cfg, err := config.LoadWith(name, args, envFile, register)
	if err != nil {
		return nil, err
	}
	// maintenance commands never touch the invocation log
	cfg.DBPath = ""
	return cfg, nil
}

// runArchive handles "archive compile -group G -id ID"
func runArchive(args []string) error {
	if len(args) == 0 || args[0] != "compile" {
		return fmt.Errorf("subcommand required: compile")
	}

	var group, id string
	cfg, err := loadWith("archive compile", args[1:], func(fs *flag.FlagSet) {
		fs.StringVar(&group, "group", "", "Archive group (required)")
		fs.StringVar(&id, "id", "", "Artifact id within the group (required)")
	})
	if err != nil {
		return err
	}
	if group == "" || id == "" {
		return fmt.Errorf("-group and -id required")
	}

	logger := newLogger(cfg)
	pl, err := buildPipeline(cfg, nil, &logger)
	if err != nil {
		return err
	}
	defer pl.proc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	rec, err := pl.proc.CompileArchive(ctx, group, id)
	if err != nil {
		return err
	}

	fmt.Printf("archive/%s/%s: %s (%s)\n", group, id, rec.State, time.Since(start).Round(time.Millisecond))
	if rec.FailedStage != "" {
		fmt.Printf("  failed stage: %s\n  error: %s\n", rec.FailedStage, rec.ErrorMessage)
		return fmt.Errorf("archive artifact rejected")
	}
	if rec.TestReturnValue != nil {
		fmt.Printf("  test return value: %d\n", *rec.TestReturnValue)
	}
	return nil
}

// runSweep runs one retention pass and reports what it removed
func runSweep(args []string) error {
	cfg, err := loadWith("sweep", args, nil)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	pl, err := buildPipeline(cfg, nil, &logger)
	if err != nil {
		return err
	}
	defer pl.proc.Close()

	rep := pl.janitor.Sweep(time.Now())
	fmt.Printf("Sweep of %s: %d file(s) deleted, %d error(s)\n", pl.store.Root(), rep.Deleted, rep.Errors)
	if rep.Errors > 0 {
		return fmt.Errorf("sweep finished with errors")
	}
	return nil
}
