// Package mover asks a compiled artifact for a move during live play.
package mover

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reverc/internal/server/artifact"
	"reverc/internal/server/board"
	"reverc/internal/server/invoke"
)

// DefaultTimeout is the live move budget
const DefaultTimeout = 3 * time.Second

var ErrNotFound = errors.New("compiled artifact not found")

// Result of one live call. On timeout or fault the move is (-1,-1) and
// Return is -1. Bounds and legality are left to the caller.
type Result struct {
	Row      int
	Col      int
	Elapsed  time.Duration
	Return   int
	TimedOut bool
	Fault    string
}

// Mover resolves artifact binaries and runs them through an invoker
type Mover struct {
	store   *artifact.Store
	invoker invoke.Invoker
}

func New(store *artifact.Store, invoker invoke.Invoker) *Mover {
	return &Mover{store: store, invoker: invoker}
}

// Invoke runs the artifact on b with turn to move. The caller is expected
// to have checked that the artifact passed screening.
func (m *Mover) Invoke(ctx context.Context, ref artifact.Ref, b *board.Board, turn board.Cell, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	path, err := m.store.Path(ref, artifact.KindBinary)
	if err != nil {
		return Result{}, err
	}
	ok, err := m.store.Exists(ref, artifact.KindBinary)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}

	res := m.invoker.Invoke(ctx, invoke.Request{
		Library: path,
		Board:   b.Rows(),
		Size:    b.Size(),
		Turn:    string(turn),
	}, timeout)

	switch res.Outcome {
	case invoke.TimedOut:
		return Result{Row: -1, Col: -1, Return: -1, Elapsed: timeout, TimedOut: true}, nil
	case invoke.Faulted:
		return Result{Row: -1, Col: -1, Return: -1, Elapsed: res.Elapsed, Fault: res.Fault}, nil
	}
	return Result{Row: res.Row, Col: res.Col, Return: res.Return, Elapsed: res.Elapsed}, nil
}
