// Package abi is the only place that touches native code. It describes the
// single supported calling contract and binds it through dlopen/dlsym.
//
// Calling contract:
//
//	int makeMove(const char board[][26], int n, char turn, int *row, int *col);
//
// board is a row-major 26x26 grid of 'B', 'W' and 'U'; only the top-left
// n x n region is meaningful. turn is 'B' or 'W'. The function writes the
// chosen move into *row and *col and returns an implementation-defined int.
package abi

import (
	"errors"
	"fmt"
)

const (
	// GridDim is the fixed row stride of the board buffer
	GridDim = 26
	// Symbol is the exported entry point resolved in every artifact
	Symbol = "makeMove"
	// Prototype is the C declaration artifacts must implement
	Prototype = "int makeMove(const char board[][26], int n, char turn, int *row, int *col);"
)

var (
	ErrUnsupported   = errors.New("native invocation not supported in this build")
	ErrSymbolMissing = errors.New("entry point not exported")
)

// Grid is the exact memory layout handed to makeMove
type Grid [GridDim][GridDim]byte

// ParseGrid builds a grid from GridDim rows of GridDim characters
func ParseGrid(rows []string) (Grid, error) {
	var g Grid
	if len(rows) != GridDim {
		return g, fmt.Errorf("grid needs %d rows, got %d", GridDim, len(rows))
	}
	for r, row := range rows {
		if len(row) != GridDim {
			return g, fmt.Errorf("grid row %d has %d columns, want %d", r, len(row), GridDim)
		}
		copy(g[r][:], row)
	}
	return g, nil
}

// Flatten returns the grid as a contiguous row-major byte slice
func (g *Grid) Flatten() []byte {
	out := make([]byte, 0, GridDim*GridDim)
	for r := range g {
		out = append(out, g[r][:]...)
	}
	return out
}

// Result is what one makeMove call produced
type Result struct {
	Row    int
	Col    int
	Return int
}
