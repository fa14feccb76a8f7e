package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"reverc/internal/server/proc"
)

const (
	maxStdout = 64 << 10
	maxStderr = 4 << 10
)

// Outcome classifies how a bounded invocation ended
type Outcome int

const (
	Completed Outcome = iota
	TimedOut
	Faulted
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case TimedOut:
		return "timed_out"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Result of one bounded invocation. Row, Col and Return are only
// meaningful when Outcome is Completed. Elapsed covers the native call
// only; for TimedOut it is the budget.
type Result struct {
	Outcome Outcome
	Row     int
	Col     int
	Return  int
	Elapsed time.Duration
	Fault   string
}

// Invoker runs one native call under a deadline
type Invoker interface {
	Invoke(ctx context.Context, req Request, timeout time.Duration) Result
}

// Runner starts a fresh child per call. A child that overruns is killed
// together with its process group and never reused.
type Runner struct {
	path   string
	args   []string
	logger zerolog.Logger
}

// NewRunner creates a runner executing path with args for every call
func NewRunner(logger *zerolog.Logger, path string, args ...string) *Runner {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "invoke").Logger()
	}
	return &Runner{path: path, args: args, logger: l}
}

// Invoke implements Invoker
func (r *Runner) Invoke(parent context.Context, req Request, timeout time.Duration) Result {
	payload, err := json.Marshal(req)
	if err != nil {
		return faulted(fmt.Sprintf("encode request: %v", err))
	}

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.path, r.args...)
	proc.Isolate(cmd)
	cmd.Env = append(os.Environ(), "GOTRACEBACK=none")
	stdout := proc.NewCapped(maxStdout)
	stderr := proc.NewCapped(maxStderr)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()

	if runErr != nil {
		switch {
		case parent.Err() != nil:
			return faulted(fmt.Sprintf("invocation cancelled: %v", parent.Err()))
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			r.logger.Debug().Str("library", req.Library).Dur("timeout", timeout).Msg("invocation timed out, child killed")
			return Result{Outcome: TimedOut, Row: -1, Col: -1, Return: -1, Elapsed: timeout}
		}
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			r.logger.Debug().Str("library", req.Library).Str("stderr", tail).Msg("runner failed")
		}
		return faulted(describeExit(runErr, stderr.String()))
	}

	var resp Response
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		return faulted(fmt.Sprintf("malformed runner response: %v", err))
	}
	if resp.Error != "" {
		return faulted(resp.Error)
	}

	return Result{
		Outcome: Completed,
		Row:     resp.Row,
		Col:     resp.Col,
		Return:  resp.Return,
		Elapsed: time.Duration(resp.ElapsedMicros) * time.Microsecond,
	}
}

func faulted(msg string) Result {
	return Result{Outcome: Faulted, Row: -1, Col: -1, Return: -1, Fault: msg}
}

func describeExit(err error, stderr string) string {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Sprintf("runner failed: %v", err)
	}
	if sig, ok := proc.Signal(exitErr.ProcessState); ok {
		return fmt.Sprintf("terminated by signal: %s", sig)
	}
	msg := fmt.Sprintf("runner exited with status %d", exitErr.ExitCode())
	if line := firstLine(stderr); line != "" {
		msg += ": " + line
	}
	return msg
}

// firstLine returns the first non-blank line of s, capped at 200 bytes
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			if len(line) > 200 {
				line = line[:200]
			}
			return line
		}
	}
	return ""
}
