// Package policy implements the lexical screen applied to uploaded C source
// before any compile resources are spent.
//
// The screen is a plain substring search. It is trivially bypassed by string
// splitting or macros and only exists to reject obvious misuse early; it
// gives no isolation guarantee and must not be treated as one.
package policy

import (
	"fmt"
	"strings"
)

const (
	// MaxLines is the largest accepted source, counted in newline-separated lines
	MaxLines = 5000

	// EntryPoint must appear literally somewhere in the source
	EntryPoint = "makeMove"
)

// Forbidden lists the substrings that reject a source outright, grouped by
// what they are associated with
var Forbidden = []string{
	// process control
	"fork", "exec", "system(", "popen", "kill(",
	// raw system calls
	"syscall", "<unistd.h>", "<sys/",
	// inline assembly
	"asm(", "__asm__", "asm volatile",
	// unconditional infinite loops
	"while(1)", "while (1)", "for(;;)", "for (;;)", "while(true)", "while (true)",
	// signal handling
	"signal(", "<signal.h>", "sigaction", "setjmp", "longjmp",
}

// Rejection describes why a source failed the screen
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string {
	return "validation failed: " + r.Reason
}

// Check returns nil when source passes the screen, or a *Rejection
func Check(source string) error {
	for _, token := range Forbidden {
		if strings.Contains(source, token) {
			return &Rejection{Reason: fmt.Sprintf("forbidden token %q", token)}
		}
	}

	if n := CountLines(source); n > MaxLines {
		return &Rejection{Reason: fmt.Sprintf("source has %d lines, limit is %d", n, MaxLines)}
	}

	if !strings.Contains(source, EntryPoint) {
		return &Rejection{Reason: fmt.Sprintf("entry point %s not found", EntryPoint)}
	}

	return nil
}

// CountLines counts lines the way an editor shows them; a trailing newline
// does not open a new line
func CountLines(source string) int {
	if source == "" {
		return 0
	}
	n := strings.Count(source, "\n")
	if !strings.HasSuffix(source, "\n") {
		n++
	}
	return n
}
