package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSource = `#include "lab8part2.h"
int makeMove(const char board[][26], int n, char turn, int *row, int *col) {
	*row = 2; *col = 3;
	return 0;
}
`

// fakeCC writes a shell script that behaves like a compiler: it writes
// its argv to the -o target unless body overrides that
func fakeCC(t *testing.T, body string) string {
	t.Helper()
	if body == "" {
		body = `out=""
while [ $# -gt 0 ]; do
	if [ "$1" = "-o" ]; then out="$2"; shift; fi
	shift
done
printf 'fake shared object' > "$out"`
	}
	path := filepath.Join(t.TempDir(), "cc")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func writeSource(t *testing.T, src string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "candidate_x.c")
	require.NoError(t, os.WriteFile(in, []byte(src), 0o644))
	return in, filepath.Join(dir, "out", "candidate_x.so")
}

func TestCompileSuccess(t *testing.T) {
	c := New(Config{Path: fakeCC(t, "")}, nil)
	in, out := writeSource(t, validSource)

	require.NoError(t, c.Compile(context.Background(), in, out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "fake shared object", string(data))

	// No temp files left beside the binary
	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCompileUnderMemoryCeiling(t *testing.T) {
	c := New(Config{Path: fakeCC(t, ""), MemoryLimitKB: 1 << 20}, nil)
	in, out := writeSource(t, validSource)

	require.NoError(t, c.Compile(context.Background(), in, out))
	_, err := os.Stat(out)
	assert.NoError(t, err)
}

func TestCompileValidationSkipsToolchain(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "ran")
	c := New(Config{Path: fakeCC(t, `touch "`+marker+`"`)}, nil)
	in, out := writeSource(t, validSource+"\nvoid f(){ system(\"ls\"); }\n")

	err := c.Compile(context.Background(), in, out)
	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, KindValidation, f.Kind)
	assert.Contains(t, f.Error(), "validation failed")

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "toolchain must not run")
	_, statErr = os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCompileToolchainFailure(t *testing.T) {
	c := New(Config{Path: fakeCC(t, `echo "x.c:3: error: expected ';'" >&2; exit 1`)}, nil)
	in, out := writeSource(t, validSource)

	err := c.Compile(context.Background(), in, out)
	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, KindToolchain, f.Kind)
	assert.Contains(t, f.Diagnostic, "expected ';'")
	assert.Contains(t, f.Error(), "compile failed")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no partial binary")
}

func TestCompileTimeout(t *testing.T) {
	c := New(Config{Path: fakeCC(t, `sleep 30`), Timeout: 200 * time.Millisecond}, nil)
	in, out := writeSource(t, validSource)

	start := time.Now()
	err := c.Compile(context.Background(), in, out)
	assert.Less(t, time.Since(start), 5*time.Second)

	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, KindTimeout, f.Kind)
	assert.Equal(t, "timeout", f.Error())
}

func TestCompileEmptyOutput(t *testing.T) {
	c := New(Config{Path: fakeCC(t, `exit 0`)}, nil)
	in, out := writeSource(t, validSource)

	err := c.Compile(context.Background(), in, out)
	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, KindToolchain, f.Kind)
}

func TestCommandArgv(t *testing.T) {
	c := New(Config{Path: "gcc", IncludeDir: "/inc"}, nil)
	name, args := c.command("a.c", "a.so")
	assert.Equal(t, "gcc", name)
	assert.Equal(t, []string{"-shared", "-fPIC", "-O2", "-I/inc", "-o", "a.so", "a.c"}, args)

	c = New(Config{Path: "gcc", MemoryLimitKB: 524288}, nil)
	name, args = c.command("a.c", "a.so")
	assert.Equal(t, "/bin/sh", name)
	assert.Equal(t, []string{"-c", `ulimit -v "$0" && exec "$@"`, "524288", "gcc", "-shared", "-fPIC", "-O2", "-o", "a.so", "a.c"}, args)
}
