// Package status persists the processing state of each artifact as a JSON
// document beside its source and binary.
package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reverc/internal/server/artifact"
	"reverc/internal/server/core"
)

var (
	ErrNotFound          = errors.New("status not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidRecord     = errors.New("invalid status record")
)

// Stage names the pipeline step that produced a failure
type Stage string

const (
	StageCompiling Stage = "compiling"
	StageTesting   Stage = "testing"
)

// Record is the persisted status document
type Record struct {
	State           core.State `json:"status"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	FailedStage     Stage      `json:"failed_stage,omitempty"`
	TestReturnValue *int       `json:"test_return_value,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func Uploading() Record { return Record{State: core.StateUploading} }
func Compiling() Record { return Record{State: core.StateCompiling} }
func Testing() Record   { return Record{State: core.StateTesting} }

// Succeeded records a passed sandbox test with the raw return value
func Succeeded(returnValue int) Record {
	rv := returnValue
	return Record{State: core.StateSuccess, TestReturnValue: &rv}
}

// Failed records a terminal failure at the given stage
func Failed(stage Stage, message string) Record {
	return Record{State: core.StateFailed, FailedStage: stage, ErrorMessage: message}
}

// Validate enforces the per-state field requirements
func (r Record) Validate() error {
	if !r.State.Valid() {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidRecord, r.State)
	}
	switch r.State {
	case core.StateFailed:
		if r.FailedStage != StageCompiling && r.FailedStage != StageTesting {
			return fmt.Errorf("%w: failed status needs a stage, got %q", ErrInvalidRecord, r.FailedStage)
		}
		if r.ErrorMessage == "" {
			return fmt.Errorf("%w: failed status needs a message", ErrInvalidRecord)
		}
	case core.StateSuccess:
		if r.TestReturnValue == nil {
			return fmt.Errorf("%w: success status needs a return value", ErrInvalidRecord)
		}
	}
	return nil
}

// IsTerminal reports whether no further transition is allowed from s
func IsTerminal(s core.State) bool {
	return s == core.StateSuccess || s == core.StateFailed
}

// CanTransition reports whether moving from one state to another is allowed.
// Uploading starts a new run and is not reachable by transition.
func CanTransition(from, to core.State) bool {
	switch from {
	case core.StateUploading:
		return to == core.StateCompiling
	case core.StateCompiling:
		return to == core.StateTesting || to == core.StateFailed
	case core.StateTesting:
		return to == core.StateSuccess || to == core.StateFailed
	default:
		return false
	}
}

// Tracker reads and writes status records through the artifact store
type Tracker struct {
	store *artifact.Store
	now   func() time.Time
}

func NewTracker(store *artifact.Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// Save validates rec and atomically replaces the status document
func (t *Tracker) Save(ref artifact.Ref, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	rec.UpdatedAt = t.now().UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	return t.store.Put(ref, artifact.KindStatus, data)
}

// Load returns the current record or ErrNotFound
func (t *Tracker) Load(ref artifact.Ref) (Record, error) {
	data, err := t.store.Get(ref, artifact.KindStatus)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return Record{}, fmt.Errorf("%s: %w", ref, ErrNotFound)
		}
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode status %s: %w", ref, err)
	}
	return rec, nil
}

// Advance moves the artifact to rec.State if the state machine allows it.
// Saving Uploading always starts a fresh run. A missing status is reported
// as an invalid transition since the artifact was removed mid-run.
func (t *Tracker) Advance(ref artifact.Ref, rec Record) error {
	if rec.State == core.StateUploading {
		return t.Save(ref, rec)
	}

	cur, err := t.Load(ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %s has no status (removed?)", ErrInvalidTransition, ref)
		}
		return err
	}
	if !CanTransition(cur.State, rec.State) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, ref, cur.State, rec.State)
	}
	return t.Save(ref, rec)
}

// Delete removes the status document; missing documents are ignored
func (t *Tracker) Delete(ref artifact.Ref) error {
	return t.store.Delete(ref, artifact.KindStatus)
}
