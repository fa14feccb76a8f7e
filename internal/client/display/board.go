package display

import (
	"fmt"
	"io"
	"strings"
)

// RenderBoard colors the text form of a Reversi board: letter headers in
// cyan, black discs in red, white discs in blue, empty squares as dots
func RenderBoard(w io.Writer, text string) {
	for i, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if i == 0 {
			fmt.Fprintf(w, "%s%s%s\n", Cyan, line, Reset)
			continue
		}

		// row label then cells
		fmt.Fprintf(w, "%s%s%s", Cyan, line[:2], Reset)
		for _, ch := range line[2:] {
			switch ch {
			case 'B':
				fmt.Fprintf(w, "%sB%s", Red, Reset)
			case 'W':
				fmt.Fprintf(w, "%sW%s", Blue, Reset)
			case 'U':
				fmt.Fprint(w, ".")
			default:
				fmt.Fprintf(w, "%c", ch)
			}
		}
		fmt.Fprintln(w)
	}
}

// ColorForTurn returns colored turn indicator
func ColorForTurn(turn string) string {
	if turn == "W" {
		return Blue + "White" + Reset
	}
	return Red + "Black" + Reset
}
