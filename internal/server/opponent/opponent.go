// Package opponent picks moves for language-model players. Any failure of
// the model, parse or validation falls back to a random available move.
package opponent

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"reverc/internal/server/board"
	"reverc/internal/server/metrics"
)

var ErrNoMoves = errors.New("there is no choice for a move")

// Request is the position a model player must answer
type Request struct {
	Board     [][]string
	Turn      string
	Size      int
	Available []board.Move
	LastMove  *board.Move
}

// Decision is the chosen move; Fallback marks a random pick
type Decision struct {
	Row         int
	Col         int
	Explanation string
	Fallback    bool
}

// Registry maps ai ids to providers
type Registry struct {
	providers map[string]Provider
	mu        sync.Mutex
	rnd       *rand.Rand
	logger    zerolog.Logger
}

func NewRegistry(logger *zerolog.Logger, providers ...Provider) *Registry {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "opponent").Logger()
	}
	r := &Registry{
		providers: make(map[string]Provider, len(providers)),
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:    l,
	}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// IDs lists the configured providers
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	return ids
}

// Decide asks the provider for a move and validates it against the
// available moves
func (r *Registry) Decide(ctx context.Context, aiID string, req Request) (Decision, error) {
	if len(req.Available) == 0 {
		return Decision{}, ErrNoMoves
	}

	d, err := r.ask(ctx, aiID, req)
	if err == nil {
		return d, nil
	}

	r.logger.Warn().Str("ai", aiID).Err(err).Msg("model move rejected, using random move")
	metrics.OpponentFallbacks.WithLabelValues(aiID).Inc()

	r.mu.Lock()
	m := req.Available[r.rnd.Intn(len(req.Available))]
	r.mu.Unlock()

	return Decision{
		Row:         m.Row,
		Col:         m.Col,
		Explanation: fmt.Sprintf("Failed to get decision from %s, ReverC returned a random move. Error: %v", aiID, err),
		Fallback:    true,
	}, nil
}

func (r *Registry) ask(ctx context.Context, aiID string, req Request) (Decision, error) {
	p, ok := r.providers[aiID]
	if !ok {
		return Decision{}, fmt.Errorf("unknown aiId: %s", aiID)
	}

	text, err := p.Complete(ctx, SystemPrompt, BuildPrompt(req))
	if err != nil {
		return Decision{}, err
	}
	r.logger.Debug().Str("ai", aiID).Str("reply", text).Msg("model reply")

	reply, err := ParseReply(text)
	if err != nil {
		return Decision{}, err
	}
	if reply.Row == nil || reply.Col == nil {
		return Decision{}, fmt.Errorf("model reply missing row/col")
	}

	m := board.Move{Row: *reply.Row, Col: *reply.Col}
	if !m.InBounds(req.Size) {
		return Decision{}, fmt.Errorf("model move out of bounds: (%d, %d)", m.Row, m.Col)
	}
	for _, a := range req.Available {
		if a == m {
			return Decision{Row: m.Row, Col: m.Col, Explanation: reply.Speak}, nil
		}
	}
	return Decision{}, fmt.Errorf("model move not in available moves: (%d, %d)", m.Row, m.Col)
}
