package core

import "fmt"

// Class is the retention class of an artifact, it decides TTL and trust
type Class string

const (
	ClassCandidate Class = "candidate"
	ClassCache     Class = "cache"
	ClassArchive   Class = "archive"
)

// Classes lists every retention class in sweep order
var Classes = []Class{ClassCandidate, ClassCache, ClassArchive}

func (c Class) String() string {
	return string(c)
}

// Plural is the directory name used for the class
func (c Class) Plural() string {
	return string(c) + "s"
}

func (c Class) Valid() bool {
	switch c {
	case ClassCandidate, ClassCache, ClassArchive:
		return true
	default:
		return false
	}
}

// ParseClass accepts both singular and plural spellings
func ParseClass(s string) (Class, error) {
	for _, c := range Classes {
		if s == string(c) || s == c.Plural() {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown retention class %q", s)
}
