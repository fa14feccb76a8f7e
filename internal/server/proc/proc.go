// Package proc holds the subprocess plumbing shared by every component that
// runs untrusted or external programs: process-group isolation so a
// deadline kills grandchildren too, and bounded output capture.
package proc

import (
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// DefaultWaitDelay bounds how long Wait blocks on inherited pipes after kill
const DefaultWaitDelay = 500 * time.Millisecond

// Isolate puts cmd in its own process group and makes context cancellation
// kill the whole group. Must be called before Start.
func Isolate(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// Negative pid targets the group
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = DefaultWaitDelay
}

// Signal returns the terminating signal of a finished command, if any
func Signal(state interface{ Sys() any }) (syscall.Signal, bool) {
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return 0, false
	}
	return ws.Signal(), true
}

// Capped is an io.Writer that keeps at most Limit bytes and silently drops
// the rest
type Capped struct {
	Limit     int
	mu        sync.Mutex
	buf       []byte
	truncated bool
}

func NewCapped(limit int) *Capped {
	return &Capped{Limit: limit}
}

func (c *Capped) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	room := c.Limit - len(c.buf)
	if room <= 0 {
		if len(p) > 0 {
			c.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		c.buf = append(c.buf, p[:room]...)
		c.truncated = true
		return len(p), nil
	}
	c.buf = append(c.buf, p...)
	return len(p), nil
}

func (c *Capped) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.buf...)
}

func (c *Capped) String() string {
	return string(c.Bytes())
}

// Truncated reports whether any output was dropped
func (c *Capped) Truncated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.truncated
}
