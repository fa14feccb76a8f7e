package opponent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reverc/internal/server/board"
)

type fakeProvider struct {
	name   string
	reply  string
	err    error
	prompt string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func openingRequest(t *testing.T) Request {
	t.Helper()
	b, err := board.Opening(8)
	require.NoError(t, err)
	return Request{
		Board:     b.Strings(),
		Turn:      "B",
		Size:      8,
		Available: b.LegalMoves(board.Black),
	}
}

func TestBuildPrompt(t *testing.T) {
	req := openingRequest(t)
	req.LastMove = &board.Move{Row: 5, Col: 4}

	p := BuildPrompt(req)
	assert.Contains(t, p, "The board size is classic 8x8.")
	assert.Contains(t, p, "Now you are playing black (B)")
	assert.Contains(t, p, `previous move as white on {"row": 5, "col": 4}`)
	assert.Contains(t, p, `{"row":2,"col":3}`)
	assert.Contains(t, p, "0 to 7 from top to bottom")
	assert.Contains(t, p, `"speak"`)

	req.Size = 10
	assert.Contains(t, BuildPrompt(req), "Notice that the board size here is 10x10.")
}

func TestParseReply(t *testing.T) {
	r, err := ParseReply(`{"row": 2, "col": 3, "speak": "hi"}`)
	require.NoError(t, err)
	assert.Equal(t, 2, *r.Row)
	assert.Equal(t, "hi", r.Speak)

	r, err = ParseReply("Sure! Here you go:\n```json\n{\"row\": 4, \"col\": 5, \"speak\": \"ok\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, 4, *r.Row)
	assert.Equal(t, 5, *r.Col)

	_, err = ParseReply("I refuse to play")
	assert.Error(t, err)
	_, err = ParseReply("")
	assert.Error(t, err)
}

func TestDecideAcceptsValidMove(t *testing.T) {
	p := &fakeProvider{name: "m1", reply: `{"row": 3, "col": 2, "speak": "corner next"}`}
	r := NewRegistry(nil, p)

	d, err := r.Decide(context.Background(), "m1", openingRequest(t))
	require.NoError(t, err)
	assert.False(t, d.Fallback)
	assert.Equal(t, 3, d.Row)
	assert.Equal(t, 2, d.Col)
	assert.Equal(t, "corner next", d.Explanation)
	assert.NotEmpty(t, p.prompt)
}

func TestDecideFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		aiID  string
		reply string
		err   error
		want  string
	}{
		{"unknown provider", "nope", "", nil, "unknown aiId"},
		{"provider error", "m1", "", errors.New("connection refused"), "connection refused"},
		{"not json", "m1", "e4", nil, "no JSON"},
		{"missing fields", "m1", `{"speak": "hm"}`, nil, "missing row/col"},
		{"out of bounds", "m1", `{"row": 9, "col": 0}`, nil, "out of bounds"},
		{"not available", "m1", `{"row": 0, "col": 0}`, nil, "not in available moves"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(nil, &fakeProvider{name: "m1", reply: tt.reply, err: tt.err})
			req := openingRequest(t)

			d, err := r.Decide(context.Background(), tt.aiID, req)
			require.NoError(t, err)
			assert.True(t, d.Fallback)
			assert.Contains(t, req.Available, board.Move{Row: d.Row, Col: d.Col})
			assert.Contains(t, d.Explanation, "random move")
			assert.Contains(t, d.Explanation, tt.want)
		})
	}
}

func TestDecideNoMoves(t *testing.T) {
	r := NewRegistry(nil)
	req := openingRequest(t)
	req.Available = nil
	_, err := r.Decide(context.Background(), "m1", req)
	assert.ErrorIs(t, err, ErrNoMoves)
}

func TestOpenAIProviderComplete(t *testing.T) {
	var gotModel string
	var gotMessages int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Model    string            `json:"model"`
			Messages []json.RawMessage `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel = body.Model
		gotMessages = len(body.Messages)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "test-model",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"row\": 2, \"col\": 3, \"speak\": \"hello\"}"}
			}]
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{ID: "local", APIKey: "k", BaseURL: srv.URL + "/v1/", Model: "test-model", RPS: 100})
	assert.Equal(t, "local", p.Name())

	text, err := p.Complete(context.Background(), SystemPrompt, "pick a move")
	require.NoError(t, err)
	assert.Contains(t, text, `"row": 2`)
	assert.Equal(t, "test-model", gotModel)
	assert.Equal(t, 2, gotMessages)
}
