// Package artifact owns the on-disk layout pairing source text, compiled
// binary and status record per artifact id and retention class.
//
// Layout:
//
//	<root>/<kind>/<class>s/<class>_<id>.<ext>    candidate, cache
//	<root>/<kind>/archives/<group>/<id>.<ext>    archive
//
// where kind is one of sources (.c), binaries (.so) or statuses (.json).
// Each (ref, kind) pair is owned independently; there are no transactions
// spanning kinds or artifacts.
package artifact

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"

	"reverc/internal/server/core"
)

var (
	ErrNotFound   = errors.New("artifact not found")
	ErrInvalidRef = errors.New("invalid artifact reference")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Kind selects one of the three files that make up an artifact
type Kind int

const (
	KindSource Kind = iota
	KindBinary
	KindStatus
)

// Kinds lists every artifact kind
var Kinds = []Kind{KindSource, KindBinary, KindStatus}

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindBinary:
		return "binary"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Dir is the top-level directory for the kind
func (k Kind) Dir() string {
	switch k {
	case KindSource:
		return "sources"
	case KindBinary:
		return "binaries"
	default:
		return "statuses"
	}
}

// Ext is the file extension for the kind, including the dot
func (k Kind) Ext() string {
	switch k {
	case KindSource:
		return ".c"
	case KindBinary:
		return ".so"
	default:
		return ".json"
	}
}

// Ref identifies one artifact. Group is only meaningful for archives.
type Ref struct {
	Class core.Class
	Group string
	ID    string
}

// NewRef builds a reference for a non-archive class
func NewRef(class core.Class, id string) Ref {
	return Ref{Class: class, ID: id}
}

// ArchiveRef builds a reference into the curated archive
func ArchiveRef(group, id string) Ref {
	return Ref{Class: core.ClassArchive, Group: group, ID: id}
}

// Validate checks that the reference cannot escape the store root
func (r Ref) Validate() error {
	if !r.Class.Valid() {
		return fmt.Errorf("%w: unknown class %q", ErrInvalidRef, r.Class)
	}
	if !namePattern.MatchString(r.ID) {
		return fmt.Errorf("%w: bad id %q", ErrInvalidRef, r.ID)
	}
	if r.Class == core.ClassArchive {
		if !namePattern.MatchString(r.Group) {
			return fmt.Errorf("%w: bad archive group %q", ErrInvalidRef, r.Group)
		}
	} else if r.Group != "" {
		return fmt.Errorf("%w: group only applies to archives", ErrInvalidRef)
	}
	return nil
}

func (r Ref) String() string {
	if r.Class == core.ClassArchive {
		return fmt.Sprintf("archive/%s/%s", r.Group, r.ID)
	}
	return fmt.Sprintf("%s/%s", r.Class, r.ID)
}

// fileName is the base name of the artifact file for kind
func (r Ref) fileName(kind Kind) string {
	if r.Class == core.ClassArchive {
		return r.ID + kind.Ext()
	}
	return fmt.Sprintf("%s_%s%s", r.Class, r.ID, kind.Ext())
}

// relDir is the directory of the artifact relative to the store root
func (r Ref) relDir(kind Kind) string {
	if r.Class == core.ClassArchive {
		return filepath.Join(kind.Dir(), r.Class.Plural(), r.Group)
	}
	return filepath.Join(kind.Dir(), r.Class.Plural())
}
