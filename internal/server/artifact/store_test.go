package artifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reverc/internal/server/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.EnsureLayout())
	return s
}

func TestPathLayout(t *testing.T) {
	s := newTestStore(t)

	p, err := s.Path(NewRef(core.ClassCandidate, "abc"), KindSource)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "sources", "candidates", "candidate_abc.c"), p)

	p, err = s.Path(NewRef(core.ClassCache, "abc"), KindBinary)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "binaries", "caches", "cache_abc.so"), p)

	p, err = s.Path(ArchiveRef("2024", "champ"), KindStatus)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "statuses", "archives", "2024", "champ.json"), p)
}

func TestRefValidate(t *testing.T) {
	tests := []struct {
		name string
		ref  Ref
		ok   bool
	}{
		{"candidate", NewRef(core.ClassCandidate, "0f3c-aa_1"), true},
		{"archive", ArchiveRef("2024", "x"), true},
		{"traversal id", NewRef(core.ClassCandidate, "../etc"), false},
		{"slash id", NewRef(core.ClassCache, "a/b"), false},
		{"empty id", NewRef(core.ClassCache, ""), false},
		{"archive without group", ArchiveRef("", "x"), false},
		{"group on candidate", Ref{Class: core.ClassCandidate, Group: "g", ID: "x"}, false},
		{"unknown class", Ref{Class: "scratch", ID: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ref.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidRef)
			}
		})
	}
}

func TestPutGetDelete(t *testing.T) {
	s := newTestStore(t)
	ref := NewRef(core.ClassCandidate, "one")

	_, err := s.Get(ref, KindSource)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ref, KindSource, []byte("int makeMove;")))
	data, err := s.Get(ref, KindSource)
	require.NoError(t, err)
	assert.Equal(t, "int makeMove;", string(data))

	ok, err := s.Exists(ref, KindSource)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ref, KindBinary)
	require.NoError(t, err)
	assert.False(t, ok)

	// Replace
	require.NoError(t, s.Put(ref, KindSource, []byte("v2")))
	data, err = s.Get(ref, KindSource)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	require.NoError(t, s.Delete(ref, KindSource))
	require.NoError(t, s.Delete(ref, KindSource), "delete must be idempotent")
	_, err = s.Get(ref, KindSource)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	ref := NewRef(core.ClassCache, "tmpcheck")
	require.NoError(t, s.Put(ref, KindStatus, []byte(`{}`)))

	entries, err := os.ReadDir(s.ClassDir(core.ClassCache, KindStatus))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cache_tmpcheck.json", entries[0].Name())
}

func TestArchivePutCreatesGroupDir(t *testing.T) {
	s := newTestStore(t)
	ref := ArchiveRef("2023", "winner")
	require.NoError(t, s.Put(ref, KindSource, []byte("src")))

	ok, err := s.Exists(ref, KindSource)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListSkipsDirectories(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(NewRef(core.ClassCandidate, "b"), KindSource, []byte("b")))
	require.NoError(t, s.Put(NewRef(core.ClassCandidate, "a"), KindSource, []byte("a")))
	require.NoError(t, os.Mkdir(filepath.Join(s.ClassDir(core.ClassCandidate, KindSource), "nested"), 0o755))

	past := time.Now().Add(-2 * time.Hour)
	pa, err := s.Path(NewRef(core.ClassCandidate, "a"), KindSource)
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(pa, past, past))

	entries, err := s.List(core.ClassCandidate, KindSource)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "candidate_a.c", entries[0].Name)
	assert.Equal(t, "candidate_b.c", entries[1].Name)
	assert.WithinDuration(t, past, entries[0].ModTime, time.Second)
}

func TestListMissingDirectory(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	entries, err := s.List(core.ClassCache, KindBinary)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
