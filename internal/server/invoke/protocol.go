// Package invoke runs one native makeMove call in a disposable child process
// so that a deadline can always be enforced by killing the child.
//
// The parent writes a Request as JSON to the child's stdin; the child loads
// the library, times the call and writes a Response as JSON to stdout. The
// child is the server binary itself started with the hidden invoke
// subcommand, which calls Serve.
package invoke

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"reverc/internal/server/abi"
)

// Request is the single message sent to a child
type Request struct {
	Library string   `json:"library"`
	Board   []string `json:"board"`
	Size    int      `json:"size"`
	Turn    string   `json:"turn"`
}

// Response is the single message a child answers with
type Response struct {
	Row           int    `json:"row"`
	Col           int    `json:"col"`
	Return        int    `json:"return"`
	ElapsedMicros int64  `json:"elapsed_us"`
	Error         string `json:"error,omitempty"`
}

func (r Request) validate() error {
	if r.Library == "" {
		return fmt.Errorf("library path required")
	}
	if r.Size < 1 || r.Size > abi.GridDim {
		return fmt.Errorf("size %d out of range 1..%d", r.Size, abi.GridDim)
	}
	if r.Turn != "B" && r.Turn != "W" {
		return fmt.Errorf("invalid turn %q", r.Turn)
	}
	return nil
}

// Serve handles one request from r and writes the response to w. Failures
// to load or call are reported inside the response; the returned error is
// only set when the response itself could not be written.
func Serve(r io.Reader, w io.Writer) error {
	resp := serve(r)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

func serve(r io.Reader) Response {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return Response{Row: -1, Col: -1, Return: -1, Error: fmt.Sprintf("decode request: %v", err)}
	}
	if err := req.validate(); err != nil {
		return Response{Row: -1, Col: -1, Return: -1, Error: err.Error()}
	}
	grid, err := abi.ParseGrid(req.Board)
	if err != nil {
		return Response{Row: -1, Col: -1, Return: -1, Error: err.Error()}
	}

	lib, err := abi.Open(req.Library)
	if err != nil {
		return Response{Row: -1, Col: -1, Return: -1, Error: err.Error()}
	}
	defer lib.Close()

	abi.ResetFaultSignals()
	start := time.Now()
	res := lib.Call(&grid, req.Size, req.Turn[0])
	elapsed := time.Since(start)

	return Response{
		Row:           res.Row,
		Col:           res.Col,
		Return:        res.Return,
		ElapsedMicros: elapsed.Microseconds(),
	}
}
