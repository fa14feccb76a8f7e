package opponent

import (
	"encoding/json"
	"fmt"
	"strings"

	"reverc/internal/server/board"
)

// SystemPrompt is sent ahead of every move prompt
const SystemPrompt = "You are a helpful assistant"

// BuildPrompt renders the Reversi move request for a language model
func BuildPrompt(req Request) string {
	turnName, oppName := req.Turn, ""
	switch req.Turn {
	case string(board.Black):
		turnName, oppName = "black", "white"
	case string(board.White):
		turnName, oppName = "white", "black"
	}

	sizeMsg := fmt.Sprintf("Notice that the board size here is %dx%d.", req.Size, req.Size)
	if req.Size == 8 {
		sizeMsg = "The board size is classic 8x8."
	}

	boardJSON, _ := json.Marshal(req.Board)
	movesJSON, _ := json.Marshal(req.Available)
	if req.Available == nil {
		movesJSON = []byte("[]")
	}

	var prev string
	if req.LastMove != nil {
		prev = fmt.Sprintf("Your opponent made the previous move as %s on {\"row\": %d, \"col\": %d}. ", oppName, req.LastMove.Row, req.LastMove.Col)
	}

	var sb strings.Builder
	sb.WriteString("This is a Reversi (Othello) game. You are required to make the next move and say something, and return them in a strict JSON format.\n")
	fmt.Fprintf(&sb, "%s With letters representation: (B=black, W=white, U=empty). Here is the current board:\n", sizeMsg)
	fmt.Fprintf(&sb, "%s\n", boardJSON)
	fmt.Fprintf(&sb, "The positions are represented by 'row' and 'col'. 'row' is the vertical index (0 to %d from top to bottom), and 'col' is the horizontal index (0 to %d from left to right).\n", req.Size-1, req.Size-1)
	fmt.Fprintf(&sb, "%sNow you are playing %s (%s), and you must select one move from your current available moves: %s\n", prev, turnName, req.Turn, movesJSON)
	sb.WriteString(`Also, use the "speak" field to add a short comment (up to 40 words) about the game, which can be either humorous or serious.` + "\n")
	sb.WriteString("Your final response must be in the following JSON format (do not output anything else):\n")
	sb.WriteString(`{"row": Your row number (example: 0), "col": Your col number (example: 0), "speak": "Your words here."}` + "\n")
	return sb.String()
}
