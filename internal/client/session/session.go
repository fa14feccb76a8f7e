// Package session holds the debug client's mutable REPL state.
package session

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"reverc/internal/client/api"
	"reverc/internal/server/board"
)

const (
	DefaultAPIBaseURL = "http://localhost:8080"
	DefaultBoardSize  = 8
)

type Session struct {
	APIBaseURL string
	Client     *api.Client
	Verbose    bool
	Out        io.Writer

	// Target is the last artifact touched: class/id or archive/group/id
	Target string

	Board    *board.Board
	Turn     board.Cell
	LastMove *board.Move

	PollInterval time.Duration
}

func New(baseURL string) *Session {
	b, _ := board.Opening(DefaultBoardSize)
	return &Session{
		APIBaseURL:   baseURL,
		Client:       api.New(baseURL),
		Out:          os.Stdout,
		Board:        b,
		Turn:         board.Black,
		PollInterval: 500 * time.Millisecond,
	}
}

// SetAPIBaseURL points the session and its client at a new server
func (s *Session) SetAPIBaseURL(url string) {
	s.APIBaseURL = url
	s.Client.SetBaseURL(url)
}

// NewGame resets to the opening position with black to move
func (s *Session) NewGame(size int) error {
	b, err := board.Opening(size)
	if err != nil {
		return err
	}
	s.Board = b
	s.Turn = board.Black
	s.LastMove = nil
	return nil
}

// Play applies a move for the side to move and passes the turn. A side
// with no legal reply passes back.
func (s *Session) Play(m board.Move) error {
	if s.Board.Apply(m, s.Turn) == 0 {
		return fmt.Errorf("illegal move (%d,%d) for %c", m.Row, m.Col, s.Turn)
	}
	s.LastMove = &m
	next := s.Turn.Opponent()
	if len(s.Board.LegalMoves(next)) > 0 {
		s.Turn = next
	}
	return nil
}

// GameOver reports that neither side can move
func (s *Session) GameOver() bool {
	return len(s.Board.LegalMoves(board.Black)) == 0 && len(s.Board.LegalMoves(board.White)) == 0
}

// ResolveTarget returns the explicit target or falls back to the last one
func (s *Session) ResolveTarget(args []string) (string, error) {
	t := s.Target
	if len(args) > 0 {
		t = strings.Trim(args[0], "/")
	}
	if t == "" {
		return "", fmt.Errorf("no artifact selected: pass class/id or archive/group/id")
	}
	parts := strings.Split(t, "/")
	switch {
	case len(parts) == 2 && (parts[0] == "candidate" || parts[0] == "cache"):
	case len(parts) == 3 && parts[0] == "archive":
	default:
		return "", fmt.Errorf("invalid target %q", t)
	}
	s.Target = t
	return t, nil
}
