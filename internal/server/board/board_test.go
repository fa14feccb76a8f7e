package board

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpeningLegalMoves(t *testing.T) {
	b, err := Opening(8)
	require.NoError(t, err)

	assert.Equal(t, White, b.At(3, 3))
	assert.Equal(t, White, b.At(4, 4))
	assert.Equal(t, Black, b.At(3, 4))
	assert.Equal(t, Black, b.At(4, 3))

	moves := b.LegalMoves(Black)
	assert.ElementsMatch(t, []Move{{2, 3}, {3, 2}, {4, 5}, {5, 4}}, moves)

	assert.False(t, b.IsLegal(Move{3, 3}, Black), "occupied")
	assert.False(t, b.IsLegal(Move{0, 0}, Black), "no flips")
	assert.False(t, b.IsLegal(Move{-1, 0}, Black), "out of bounds")
}

func TestParse(t *testing.T) {
	b, err := Parse([][]string{{"B", "W"}, {"U", "U"}}, 2)
	require.NoError(t, err)
	assert.Equal(t, Black, b.At(0, 0))
	assert.Equal(t, [][]string{{"B", "W"}, {"U", "U"}}, b.Strings())

	_, err = Parse([][]string{{"B", "W"}}, 2)
	assert.ErrorIs(t, err, ErrInvalidBoard)

	_, err = Parse([][]string{{"B", "X"}, {"U", "U"}}, 2)
	assert.ErrorIs(t, err, ErrInvalidBoard)

	_, err = Parse([][]string{{"B", "W", "U"}, {"U", "U"}}, 2)
	assert.ErrorIs(t, err, ErrInvalidBoard)

	_, err = New(27)
	assert.ErrorIs(t, err, ErrInvalidBoard)
}

func TestRowsPadding(t *testing.T) {
	b, err := Opening(4)
	require.NoError(t, err)

	rows := b.Rows()
	require.Len(t, rows, MaxSize)
	for _, r := range rows {
		assert.Len(t, r, MaxSize)
	}
	assert.Equal(t, "UWBU"+strings.Repeat("U", MaxSize-4), rows[1])
	assert.Equal(t, "UBWU"+strings.Repeat("U", MaxSize-4), rows[2])
	assert.Equal(t, strings.Repeat("U", MaxSize), rows[25])
}

func TestParseTurn(t *testing.T) {
	c, err := ParseTurn("W")
	require.NoError(t, err)
	assert.Equal(t, White, c)

	_, err = ParseTurn("U")
	assert.Error(t, err)
	_, err = ParseTurn("BW")
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	b, err := Opening(8)
	require.NoError(t, err)

	assert.Equal(t, 0, b.Apply(Move{Row: 0, Col: 0}, Black))
	assert.Equal(t, 2, b.Count(Black))

	assert.Equal(t, 1, b.Apply(Move{Row: 2, Col: 3}, Black))
	assert.Equal(t, Black, b.At(2, 3))
	assert.Equal(t, Black, b.At(3, 3))
	assert.Equal(t, 4, b.Count(Black))
	assert.Equal(t, 1, b.Count(White))
}
