package core

import "fmt"

// State is the processing state of one artifact pipeline run
type State string

const (
	StateUploading State = "uploading"
	StateCompiling State = "compiling"
	StateTesting   State = "testing"
	StateSuccess   State = "success"
	StateFailed    State = "failed"
)

func (s State) String() string {
	return string(s)
}

// Valid reports whether s is one of the known states
func (s State) Valid() bool {
	switch s {
	case StateUploading, StateCompiling, StateTesting, StateSuccess, StateFailed:
		return true
	default:
		return false
	}
}

// ParseState converts a wire value into a State
func ParseState(s string) (State, error) {
	st := State(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown state %q", s)
	}
	return st, nil
}
