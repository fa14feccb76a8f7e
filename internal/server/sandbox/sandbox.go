// Package sandbox screens a compiled artifact by calling it once on the
// canonical opening position and checking the move it returns.
package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"reverc/internal/server/artifact"
	"reverc/internal/server/board"
	"reverc/internal/server/invoke"
)

// DefaultTimeout is the budget for the single screening call
const DefaultTimeout = 60 * time.Second

// Rejection reasons
const (
	ReasonNotFound     = "not_found"
	ReasonTimeout      = "timeout"
	ReasonRuntimeFault = "runtime_fault"
	ReasonOutOfBounds  = "out_of_bounds"
	ReasonIllegalMove  = "illegal_move"
)

// Scenario is the fixed position every artifact is screened against
type Scenario struct {
	Board *board.Board
	Turn  board.Cell
	Legal []board.Move
}

// Canonical returns the 8x8 opening with black to move
func Canonical() Scenario {
	b, err := board.Opening(8)
	if err != nil {
		panic(err)
	}
	return Scenario{Board: b, Turn: board.Black, Legal: b.LegalMoves(board.Black)}
}

func (s Scenario) isLegal(m board.Move) bool {
	for _, l := range s.Legal {
		if l == m {
			return true
		}
	}
	return false
}

// Verdict is the outcome of screening. ReturnValue is set whenever the
// call completed, including on rejected moves.
type Verdict struct {
	Accepted    bool
	Reason      string
	Message     string
	Move        *board.Move
	ReturnValue *int
}

// Runner screens artifacts through a bounded invoker
type Runner struct {
	store    *artifact.Store
	invoker  invoke.Invoker
	timeout  time.Duration
	scenario Scenario
	logger   zerolog.Logger
}

func NewRunner(store *artifact.Store, invoker invoke.Invoker, timeout time.Duration, logger *zerolog.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "sandbox").Logger()
	}
	return &Runner{
		store:    store,
		invoker:  invoker,
		timeout:  timeout,
		scenario: Canonical(),
		logger:   l,
	}
}

// Run invokes the artifact once with no retries and classifies the result
func (r *Runner) Run(ctx context.Context, ref artifact.Ref) Verdict {
	path, err := r.store.Path(ref, artifact.KindBinary)
	if err != nil {
		return Verdict{Reason: ReasonNotFound, Message: err.Error()}
	}
	ok, err := r.store.Exists(ref, artifact.KindBinary)
	if err != nil || !ok {
		return Verdict{Reason: ReasonNotFound, Message: fmt.Sprintf("binary for %s not found", ref)}
	}

	s := r.scenario
	req := invoke.Request{
		Library: path,
		Board:   s.Board.Rows(),
		Size:    s.Board.Size(),
		Turn:    string(s.Turn),
	}
	res := r.invoker.Invoke(ctx, req, r.timeout)

	switch res.Outcome {
	case invoke.TimedOut:
		return Verdict{Reason: ReasonTimeout, Message: fmt.Sprintf("timeout: test execution exceeded %s", r.timeout)}
	case invoke.Faulted:
		r.logger.Debug().Str("ref", ref.String()).Str("fault", res.Fault).Msg("screening call faulted")
		return Verdict{Reason: ReasonRuntimeFault, Message: "runtime error during makeMove execution: " + res.Fault}
	}

	move := board.Move{Row: res.Row, Col: res.Col}
	rv := res.Return
	v := Verdict{Move: &move, ReturnValue: &rv}

	switch {
	case !move.InBounds(s.Board.Size()):
		v.Reason = ReasonOutOfBounds
		v.Message = fmt.Sprintf("move out of bounds: (%d, %d)", move.Row, move.Col)
	case !s.isLegal(move):
		v.Reason = ReasonIllegalMove
		v.Message = fmt.Sprintf("invalid move: (%d, %d), valid moves are %v", move.Row, move.Col, s.Legal)
	default:
		v.Accepted = true
	}
	return v
}
