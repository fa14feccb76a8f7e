package commands

import (
	"fmt"
	"strconv"
	"strings"

	"reverc/internal/client/display"
	"reverc/internal/client/session"
	"reverc/internal/server/board"
	"reverc/internal/server/core"
)

func (r *Registry) registerGameCommands() {
	r.Register(&Command{
		Name:        "new",
		ShortName:   "n",
		Description: "Start a local game at the opening position",
		Usage:       "new [size]",
		Handler:     newGameHandler,
	})
	r.Register(&Command{
		Name:        "show",
		ShortName:   "h",
		Description: "Show board and side to move",
		Usage:       "show",
		Handler:     showBoardHandler,
	})
	r.Register(&Command{
		Name:        "move",
		ShortName:   "m",
		Description: "Ask an artifact to play for the side to move",
		Usage:       "move [class/id | archive/group/id]",
		Handler:     moveHandler,
	})
	r.Register(&Command{
		Name:        "ai",
		ShortName:   "c",
		Description: "Ask an AI opponent to play for the side to move",
		Usage:       "ai <aiId>",
		Handler:     aiMoveHandler,
	})
	r.Register(&Command{
		Name:        "place",
		ShortName:   "p",
		Description: "Play a move by hand",
		Usage:       "place <row> <col> | place <rc>, e.g. place 2 3 or place cd",
		Handler:     placeHandler,
	})
	r.Register(&Command{
		Name:        "stats",
		ShortName:   "t",
		Description: "Show the games counter, 'inc' to bump it",
		Usage:       "stats [inc]",
		Handler:     statsHandler,
	})
}

func newGameHandler(s *session.Session, args []string) error {
	size := session.DefaultBoardSize
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid size: %s", args[0])
		}
		size = n
	}
	if err := s.NewGame(size); err != nil {
		return err
	}
	fmt.Fprintf(s.Out, "%sNew %dx%d game%s\n", display.Green, size, size, display.Reset)
	return showBoardHandler(s, nil)
}

func showBoardHandler(s *session.Session, _ []string) error {
	fmt.Fprintln(s.Out)
	display.RenderBoard(s.Out, s.Board.String())
	fmt.Fprintf(s.Out, "\nBlack: %d  White: %d\n", s.Board.Count(board.Black), s.Board.Count(board.White))
	if s.GameOver() {
		fmt.Fprintf(s.Out, "%sGame over%s\n", display.Magenta, display.Reset)
		return nil
	}
	fmt.Fprintf(s.Out, "To move: %s\n", display.ColorForTurn(string(s.Turn)))
	return nil
}

func moveHandler(s *session.Session, args []string) error {
	if s.GameOver() {
		return fmt.Errorf("game is over, start a new one")
	}
	target, err := s.ResolveTarget(args)
	if err != nil {
		return err
	}

	resp, err := s.Client.Move(target, core.MoveRequest{
		Board: s.Board.Strings(),
		Turn:  string(s.Turn),
		Size:  s.Board.Size(),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(s.Out, "%s%s%s -> (%d,%d) in %dus, returned %d\n",
		display.Cyan, target, display.Reset, resp.Row, resp.Col, resp.Elapsed, resp.ReturnValue)
	switch {
	case resp.TimedOut:
		fmt.Fprintf(s.Out, "%sTimed out%s\n", display.Red, display.Reset)
		return nil
	case resp.Fault != "":
		fmt.Fprintf(s.Out, "%sFault: %s%s\n", display.Red, resp.Fault, display.Reset)
		return nil
	}
	return playAndShow(s, board.Move{Row: resp.Row, Col: resp.Col})
}

func aiMoveHandler(s *session.Session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: ai <aiId>")
	}
	if s.GameOver() {
		return fmt.Errorf("game is over, start a new one")
	}

	req := core.AIMoveRequest{
		Board: s.Board.Strings(),
		Turn:  string(s.Turn),
		Size:  s.Board.Size(),
	}
	for _, m := range s.Board.LegalMoves(s.Turn) {
		req.AvailableMoves = append(req.AvailableMoves, core.Coord{Row: m.Row, Col: m.Col})
	}
	if s.LastMove != nil {
		req.LastMove = &core.Coord{Row: s.LastMove.Row, Col: s.LastMove.Col}
	}

	resp, err := s.Client.AIMove(args[0], req)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.Out, "%s%s%s -> (%d,%d)\n", display.Cyan, args[0], display.Reset, resp.Row, resp.Col)
	if resp.Explanation != "" {
		fmt.Fprintf(s.Out, "  %s\n", resp.Explanation)
	}
	return playAndShow(s, board.Move{Row: resp.Row, Col: resp.Col})
}

func placeHandler(s *session.Session, args []string) error {
	m, err := parseCoord(args)
	if err != nil {
		return err
	}
	return playAndShow(s, m)
}

func statsHandler(s *session.Session, args []string) error {
	var (
		resp *core.StatsResponse
		err  error
	)
	if len(args) > 0 && args[0] == "inc" {
		resp, err = s.Client.IncrementStats()
	} else {
		resp, err = s.Client.Stats()
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(s.Out, "%sTotal games:%s %d\n", display.Cyan, display.Reset, resp.TotalGames)
	fmt.Fprintf(s.Out, "%sLast updated:%s %s\n", display.Cyan, display.Reset, resp.LastUpdated)
	return nil
}

func playAndShow(s *session.Session, m board.Move) error {
	if err := s.Play(m); err != nil {
		return err
	}
	return showBoardHandler(s, nil)
}

// parseCoord accepts "row col" as integers or a two-letter "rc" pair
// matching the board's row and column labels
func parseCoord(args []string) (board.Move, error) {
	switch len(args) {
	case 1:
		rc := strings.ToLower(args[0])
		if len(rc) != 2 || rc[0] < 'a' || rc[0] > 'z' || rc[1] < 'a' || rc[1] > 'z' {
			return board.Move{}, fmt.Errorf("invalid coordinate: %s", args[0])
		}
		return board.Move{Row: int(rc[0] - 'a'), Col: int(rc[1] - 'a')}, nil
	case 2:
		row, err := strconv.Atoi(args[0])
		if err != nil {
			return board.Move{}, fmt.Errorf("invalid row: %s", args[0])
		}
		col, err := strconv.Atoi(args[1])
		if err != nil {
			return board.Move{}, fmt.Errorf("invalid column: %s", args[1])
		}
		return board.Move{Row: row, Col: col}, nil
	default:
		return board.Move{}, fmt.Errorf("usage: place <row> <col> | place <rc>")
	}
}
