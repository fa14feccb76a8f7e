package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"reverc/internal/server/core"
)

// Entry is one file found by List
type Entry struct {
	Name    string
	Path    string
	ModTime time.Time
}

// Store maps artifact references to files under a root directory
type Store struct {
	root string
}

// NewStore creates a store rooted at dir; the directory is created if missing
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("artifact store root required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute store root
func (s *Store) Root() string {
	return s.root
}

// EnsureLayout creates every kind/class directory so listing never hits a
// missing directory on a fresh deployment
func (s *Store) EnsureLayout() error {
	for _, kind := range Kinds {
		for _, class := range core.Classes {
			if err := os.MkdirAll(s.ClassDir(class, kind), 0o755); err != nil {
				return fmt.Errorf("create %s dir for %s: %w", kind, class, err)
			}
		}
	}
	return nil
}

// ClassDir is the directory holding all files of one kind for a class.
// For archives this is the parent of the group directories.
func (s *Store) ClassDir(class core.Class, kind Kind) string {
	return filepath.Join(s.root, kind.Dir(), class.Plural())
}

// Path returns the file location for the artifact kind
func (s *Store) Path(ref Ref, kind Kind) (string, error) {
	if err := ref.Validate(); err != nil {
		return "", err
	}
	return filepath.Join(s.root, ref.relDir(kind), ref.fileName(kind)), nil
}

// Put replaces the artifact file atomically
func (s *Store) Put(ref Ref, kind Kind, data []byte) error {
	path, err := s.Path(ref, kind)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s %s: %w", kind, ref, err)
	}
	return nil
}

// Get reads the artifact file, returning ErrNotFound when absent
func (s *Store) Get(ref Ref, kind Kind) ([]byte, error) {
	path, err := s.Path(ref, kind)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s %s: %w", kind, ref, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s %s: %w", kind, ref, err)
	}
	return data, nil
}

// Exists reports whether the artifact file is present
func (s *Store) Exists(ref Ref, kind Kind) (bool, error) {
	path, err := s.Path(ref, kind)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Delete removes the artifact file. Deleting a missing file succeeds.
func (s *Store) Delete(ref Ref, kind Kind) error {
	path, err := s.Path(ref, kind)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s %s: %w", kind, ref, err)
	}
	return nil
}

// List returns the regular files of one kind for a class, sorted by name.
// Archive listing only covers files directly inside the archive dir; group
// subdirectories are skipped.
func (s *Store) List(class core.Class, kind Kind) ([]Entry, error) {
	dir := s.ClassDir(class, kind)
	dirents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	entries := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		if !d.Type().IsRegular() {
			continue
		}
		info, err := d.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}
		entries = append(entries, Entry{
			Name:    d.Name(),
			Path:    filepath.Join(dir, d.Name()),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it over path, so readers see either the old or the new content
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
