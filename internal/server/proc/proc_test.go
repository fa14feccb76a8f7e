package proc

import (
	"context"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapped(t *testing.T) {
	c := NewCapped(5)
	n, err := c.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.False(t, c.Truncated())

	n, err = c.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "abcde", c.String())
	assert.True(t, c.Truncated())

	_, _ = c.Write([]byte("x"))
	assert.Equal(t, "abcde", c.String())
}

func TestIsolateKillsGroup(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// The grandchild sleep holds stdout open; a group kill must reach it
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", "sleep 30 & wait")
	Isolate(cmd)
	cmd.Stdout = NewCapped(64)

	start := time.Now()
	err := cmd.Run()
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	require.NotNil(t, cmd.ProcessState)
	sig, ok := Signal(cmd.ProcessState)
	require.True(t, ok)
	assert.Equal(t, syscall.SIGKILL, sig)
}
