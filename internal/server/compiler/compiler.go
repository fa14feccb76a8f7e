// Package compiler turns validated C source into a shared object by running
// the configured toolchain under a wall-clock timeout and an address space
// ceiling.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"reverc/internal/server/policy"
	"reverc/internal/server/proc"
)

const maxDiagnostic = 4 << 10

// Failure kinds
const (
	KindValidation = "validation"
	KindTimeout    = "timeout"
	KindToolchain  = "toolchain"
)

// Failure is returned for every compile that did not produce a binary
type Failure struct {
	Kind       string
	Diagnostic string
}

func (f *Failure) Error() string {
	switch f.Kind {
	case KindValidation:
		return "validation failed: " + f.Diagnostic
	case KindTimeout:
		return "timeout"
	default:
		return "compile failed: " + f.Diagnostic
	}
}

// Config selects the toolchain invocation
type Config struct {
	Path          string        // compiler executable, gcc by default
	IncludeDir    string        // passed as -I when set
	Flags         []string      // defaults to -shared -fPIC -O2
	MemoryLimitKB int           // ulimit -v for the compiler, 0 disables
	Timeout       time.Duration // wall clock budget, 30s by default
}

// DefaultFlags is the fixed shared-object build
var DefaultFlags = []string{"-shared", "-fPIC", "-O2"}

// Compiler runs one toolchain invocation per call; it keeps no state
// between compiles
type Compiler struct {
	cfg    Config
	logger zerolog.Logger
}

func New(cfg Config, logger *zerolog.Logger) *Compiler {
	if cfg.Path == "" {
		cfg.Path = "gcc"
	}
	if len(cfg.Flags) == 0 {
		cfg.Flags = DefaultFlags
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "compiler").Logger()
	}
	return &Compiler{cfg: cfg, logger: l}
}

// Compile validates sourcePath and builds it into outputPath. The binary
// appears at outputPath only if the toolchain succeeds.
func (c *Compiler) Compile(ctx context.Context, sourcePath, outputPath string) error {
	src, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	var rej *policy.Rejection
	if err := policy.Check(string(src)); err != nil {
		if errors.As(err, &rej) {
			return &Failure{Kind: KindValidation, Diagnostic: rej.Reason}
		}
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), filepath.Base(outputPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	name, args := c.command(sourcePath, tmpName)
	cmd := exec.CommandContext(ctx, name, args...)
	proc.Isolate(cmd)
	stderr := proc.NewCapped(maxDiagnostic)
	cmd.Stdout = stderr
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.logger.Warn().Str("source", sourcePath).Dur("timeout", c.cfg.Timeout).Msg("compiler timed out")
			return &Failure{Kind: KindTimeout, Diagnostic: "timeout"}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = runErr.Error()
		}
		c.logger.Debug().Str("source", sourcePath).Err(runErr).Msg("compiler rejected source")
		return &Failure{Kind: KindToolchain, Diagnostic: diag}
	}

	info, err := os.Stat(tmpName)
	if err != nil || info.Size() == 0 {
		return &Failure{Kind: KindToolchain, Diagnostic: "compiler produced no output"}
	}
	if err := os.Rename(tmpName, outputPath); err != nil {
		return fmt.Errorf("install binary: %w", err)
	}

	c.logger.Debug().Str("output", outputPath).Dur("elapsed", elapsed).Msg("compiled")
	return nil
}

// command builds the argv. With a memory ceiling the compiler runs under
// /bin/sh so ulimit applies to it and everything it spawns.
func (c *Compiler) command(src, out string) (string, []string) {
	argv := append([]string{}, c.cfg.Flags...)
	if c.cfg.IncludeDir != "" {
		argv = append(argv, "-I"+c.cfg.IncludeDir)
	}
	argv = append(argv, "-o", out, src)

	if c.cfg.MemoryLimitKB <= 0 {
		return c.cfg.Path, argv
	}
	wrapped := []string{"-c", `ulimit -v "$0" && exec "$@"`, strconv.Itoa(c.cfg.MemoryLimitKB), c.cfg.Path}
	return "/bin/sh", append(wrapped, argv...)
}
