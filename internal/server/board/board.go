// Package board models a square Reversi position and its marshaling into
// the fixed 26x26 character grid native move functions receive.
package board

import (
	"errors"
	"fmt"
	"strings"
)

// MaxSize is the largest supported board and the fixed grid dimension
const MaxSize = 26

// Cell is one square: black, white or unoccupied
type Cell byte

const (
	Black Cell = 'B'
	White Cell = 'W'
	Empty Cell = 'U'
)

func (c Cell) Valid() bool {
	return c == Black || c == White || c == Empty
}

// Opponent returns the other color; Empty has no opponent
func (c Cell) Opponent() Cell {
	switch c {
	case Black:
		return White
	case White:
		return Black
	default:
		return Empty
	}
}

// ParseTurn accepts "B" or "W"
func ParseTurn(s string) (Cell, error) {
	if len(s) == 1 {
		c := Cell(s[0])
		if c == Black || c == White {
			return c, nil
		}
	}
	return 0, fmt.Errorf("invalid turn %q", s)
}

// Move is a zero-based (row, col) pair
type Move struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// InBounds reports whether the move lies on an n x n board
func (m Move) InBounds(n int) bool {
	return m.Row >= 0 && m.Row < n && m.Col >= 0 && m.Col < n
}

var ErrInvalidBoard = errors.New("invalid board")

// Board is an n x n position, 1 <= n <= 26
type Board struct {
	size  int
	cells [][]Cell
}

// New returns an empty n x n board
func New(n int) (*Board, error) {
	if n < 1 || n > MaxSize {
		return nil, fmt.Errorf("%w: size %d out of range 1..%d", ErrInvalidBoard, n, MaxSize)
	}
	cells := make([][]Cell, n)
	for r := range cells {
		cells[r] = make([]Cell, n)
		for c := range cells[r] {
			cells[r][c] = Empty
		}
	}
	return &Board{size: n, cells: cells}, nil
}

// Opening returns the standard four-disc start for an even board
func Opening(n int) (*Board, error) {
	if n%2 != 0 || n < 2 {
		return nil, fmt.Errorf("%w: opening needs an even size, got %d", ErrInvalidBoard, n)
	}
	b, err := New(n)
	if err != nil {
		return nil, err
	}
	h := n/2 - 1
	b.cells[h][h] = White
	b.cells[h+1][h+1] = White
	b.cells[h][h+1] = Black
	b.cells[h+1][h] = Black
	return b, nil
}

// Parse builds a board from rows of single-character cell strings and
// requires the grid to be exactly size x size
func Parse(rows [][]string, size int) (*Board, error) {
	b, err := New(size)
	if err != nil {
		return nil, err
	}
	if len(rows) != size {
		return nil, fmt.Errorf("%w: %d rows for size %d", ErrInvalidBoard, len(rows), size)
	}
	for r, row := range rows {
		if len(row) != size {
			return nil, fmt.Errorf("%w: row %d has %d cells for size %d", ErrInvalidBoard, r, len(row), size)
		}
		for c, s := range row {
			if len(s) != 1 || !Cell(s[0]).Valid() {
				return nil, fmt.Errorf("%w: cell (%d,%d) is %q", ErrInvalidBoard, r, c, s)
			}
			b.cells[r][c] = Cell(s[0])
		}
	}
	return b, nil
}

func (b *Board) Size() int {
	return b.size
}

func (b *Board) At(r, c int) Cell {
	return b.cells[r][c]
}

func (b *Board) Set(r, c int, v Cell) {
	b.cells[r][c] = v
}

// Strings returns the board in the same shape Parse accepts
func (b *Board) Strings() [][]string {
	out := make([][]string, b.size)
	for r := range b.cells {
		out[r] = make([]string, b.size)
		for c, v := range b.cells[r] {
			out[r][c] = string(v)
		}
	}
	return out
}

// Rows flattens the board into MaxSize strings of MaxSize characters,
// padding everything outside the n x n region with U
func (b *Board) Rows() []string {
	out := make([]string, MaxSize)
	pad := strings.Repeat(string(Empty), MaxSize)
	for r := 0; r < MaxSize; r++ {
		if r >= b.size {
			out[r] = pad
			continue
		}
		var sb strings.Builder
		sb.Grow(MaxSize)
		for c := 0; c < MaxSize; c++ {
			if c < b.size {
				sb.WriteByte(byte(b.cells[r][c]))
			} else {
				sb.WriteByte(byte(Empty))
			}
		}
		out[r] = sb.String()
	}
	return out
}

var directions = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}

// IsLegal reports whether placing turn at m flips at least one disc
func (b *Board) IsLegal(m Move, turn Cell) bool {
	if !m.InBounds(b.size) || b.cells[m.Row][m.Col] != Empty {
		return false
	}
	opp := turn.Opponent()
	if opp == Empty {
		return false
	}
	for _, d := range directions {
		r, c := m.Row+d[0], m.Col+d[1]
		seen := false
		for r >= 0 && r < b.size && c >= 0 && c < b.size && b.cells[r][c] == opp {
			r, c = r+d[0], c+d[1]
			seen = true
		}
		if seen && r >= 0 && r < b.size && c >= 0 && c < b.size && b.cells[r][c] == turn {
			return true
		}
	}
	return false
}

// LegalMoves lists legal moves for turn in row-major order
func (b *Board) LegalMoves(turn Cell) []Move {
	var moves []Move
	for r := 0; r < b.size; r++ {
		for c := 0; c < b.size; c++ {
			m := Move{Row: r, Col: c}
			if b.IsLegal(m, turn) {
				moves = append(moves, m)
			}
		}
	}
	return moves
}

// String renders the board with column letters and row numbers
func (b *Board) String() string {
	var sb strings.Builder
	sb.WriteString("  ")
	for c := 0; c < b.size; c++ {
		sb.WriteByte(byte('a' + c))
	}
	sb.WriteByte('\n')
	for r := 0; r < b.size; r++ {
		sb.WriteByte(byte('a' + r))
		sb.WriteByte(' ')
		for c := 0; c < b.size; c++ {
			sb.WriteByte(byte(b.cells[r][c]))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Apply places turn at m and flips every bracketed line, returning the
// number of discs flipped. An illegal move leaves the board untouched.
func (b *Board) Apply(m Move, turn Cell) int {
	if !b.IsLegal(m, turn) {
		return 0
	}
	opp := turn.Opponent()
	flipped := 0
	for _, d := range directions {
		r, c := m.Row+d[0], m.Col+d[1]
		n := 0
		for r >= 0 && r < b.size && c >= 0 && c < b.size && b.cells[r][c] == opp {
			r, c = r+d[0], c+d[1]
			n++
		}
		if n == 0 || r < 0 || r >= b.size || c < 0 || c >= b.size || b.cells[r][c] != turn {
			continue
		}
		for i := 1; i <= n; i++ {
			b.cells[m.Row+d[0]*i][m.Col+d[1]*i] = turn
		}
		flipped += n
	}
	b.cells[m.Row][m.Col] = turn
	return flipped
}

// Count returns the number of discs of color v
func (b *Board) Count(v Cell) int {
	n := 0
	for r := range b.cells {
		for _, x := range b.cells[r] {
			if x == v {
				n++
			}
		}
	}
	return n
}
