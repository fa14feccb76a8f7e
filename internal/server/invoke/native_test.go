//go:build cgo

package invoke

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reverc/internal/server/board"
)

const helperEnv = "REVERC_INVOKE_HELPER"

// The test binary doubles as the child runner when helperEnv is set
func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "1" {
		if err := Serve(os.Stdin, os.Stdout); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// echoSource reports where the single B sits through row and col, and
// packs n, turn and the number of U cells in the whole 26x26 buffer into
// the return value
const echoSource = `
int makeMove(const char board[][26], int n, char turn, int *row, int *col) {
	int r, c, empty = 0;
	for (r = 0; r < 26; r++)
		for (c = 0; c < 26; c++) {
			if (board[r][c] == 'B') { *row = r; *col = c; }
			else if (board[r][c] == 'U') empty++;
		}
	return n * 100000 + turn * 1000 + empty;
}
`

const crashSource = `
int makeMove(const char board[][26], int n, char turn, int *row, int *col) {
	volatile int *p = 0;
	*p = 3;
	return 0;
}
`

const noEntrySource = `int pickMove(void) { return 0; }
`

func buildLibrary(t *testing.T, source string) string {
	t.Helper()
	cc, err := exec.LookPath("gcc")
	if err != nil {
		t.Skip("gcc not available")
	}
	dir := t.TempDir()
	src := filepath.Join(dir, "player.c")
	out := filepath.Join(dir, "player.so")
	require.NoError(t, os.WriteFile(src, []byte(source), 0o644))

	cmd := exec.Command(cc, "-shared", "-fPIC", "-O2", "-o", out, src)
	msg, err := cmd.CombinedOutput()
	require.NoError(t, err, string(msg))
	return out
}

func helperRunner(t *testing.T) *Runner {
	t.Helper()
	t.Setenv(helperEnv, "1")
	return NewRunner(nil, os.Args[0])
}

func TestNativeCallLayout(t *testing.T) {
	lib := buildLibrary(t, echoSource)

	b, err := board.New(8)
	require.NoError(t, err)
	b.Set(5, 6, board.Black)

	req := Request{Library: lib, Board: b.Rows(), Size: 8, Turn: "W"}
	res := helperRunner(t).Invoke(context.Background(), req, 10*time.Second)
	require.Equal(t, Completed, res.Outcome, res.Fault)

	// 26 stride: board[5][6] is found at the right cell
	assert.Equal(t, 5, res.Row)
	assert.Equal(t, 6, res.Col)
	// n then turn, and every other cell of the padded buffer is U
	assert.Equal(t, 8*100000+int('W')*1000+26*26-1, res.Return)
}

func TestNativeCrashIsSignal(t *testing.T) {
	lib := buildLibrary(t, crashSource)

	b, err := board.Opening(8)
	require.NoError(t, err)

	req := Request{Library: lib, Board: b.Rows(), Size: 8, Turn: "B"}
	res := helperRunner(t).Invoke(context.Background(), req, 10*time.Second)
	assert.Equal(t, Faulted, res.Outcome)
	assert.Contains(t, res.Fault, "signal")
	assert.NotContains(t, res.Fault, "goroutine")
	assert.Equal(t, -1, res.Row)
	assert.Equal(t, -1, res.Return)
}

func TestNativeMissingEntryPoint(t *testing.T) {
	lib := buildLibrary(t, noEntrySource)

	b, err := board.Opening(8)
	require.NoError(t, err)

	req := Request{Library: lib, Board: b.Rows(), Size: 8, Turn: "B"}
	res := helperRunner(t).Invoke(context.Background(), req, 10*time.Second)
	assert.Equal(t, Faulted, res.Outcome)
	assert.Contains(t, res.Fault, "entry point not exported")
}
