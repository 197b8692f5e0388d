package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	partialDirName     = ".partial"
	reserveMaxAttempts = 20
)

// LocalStore keeps artifacts as flat files in one output directory.
// In-progress outputs live under a hidden partial directory and only appear
// under their final name once committed.
type LocalStore struct {
	root     string
	partial  string
	newToken func() string
}

// NewLocalStore creates a store rooted at root, creating it when missing.
func NewLocalStore(root string) (*LocalStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("artifact root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	partial := filepath.Join(real, partialDirName)
	if err := os.MkdirAll(partial, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: real, partial: partial, newToken: newToken}, nil
}

// Root returns the resolved output directory.
func (s *LocalStore) Root() string {
	return s.root
}

// ReserveName picks an unused artifact name of the form {base}_{token}.{ext}.
// The returned reservation owns an empty partial file that the engine writes into.
func (s *LocalStore) ReserveName(ctx context.Context, base, ext string) (*Reservation, error) {
	if s == nil {
		return nil, fmt.Errorf("artifact store is not configured")
	}
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if !validExtension(ext) {
		return nil, fmt.Errorf("invalid artifact extension %q", ext)
	}
	base = SanitizeBase(base)

	for i := 0; i < reserveMaxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := fmt.Sprintf("%s_%s.%s", base, s.newToken(), ext)
		final := filepath.Join(s.root, name)
		if _, err := os.Lstat(final); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}

		partialPath := filepath.Join(s.partial, name)
		f, err := os.OpenFile(partialPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return nil, err
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(partialPath)
			return nil, err
		}
		return &Reservation{Name: name, PartialPath: partialPath, FinalPath: final}, nil
	}

	return nil, fmt.Errorf("unable to reserve unique artifact name")
}

// Resolve maps a requested filename to its absolute path inside the root.
// Names with separators or dot-dot sequences, and names whose resolved location
// falls outside the root, yield ErrForbidden. Missing, hidden or non-regular
// entries yield ErrNotFound.
func (s *LocalStore) Resolve(filename string) (string, error) {
	if s == nil {
		return "", ErrNotFound
	}
	if filename == "" {
		return "", ErrNotFound
	}
	if !validFilename(filename) {
		return "", ErrForbidden
	}
	if strings.HasPrefix(filename, ".") {
		return "", ErrNotFound
	}

	candidate := filepath.Join(s.root, filename)
	real, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return "", ErrNotFound
	}
	if !s.contains(real) {
		return "", ErrForbidden
	}
	info, err := os.Stat(real)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrNotFound
	}
	return real, nil
}

// Open resolves filename and opens it for reading.
func (s *LocalStore) Open(ctx context.Context, filename string) (*os.File, os.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	path, err := s.Resolve(filename)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, ErrNotFound
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, ErrNotFound
	}
	return f, info, nil
}

func (s *LocalStore) contains(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel) && !strings.ContainsRune(rel, filepath.Separator)
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

var _ Store = (*LocalStore)(nil)
