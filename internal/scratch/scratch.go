// Package scratch holds uploaded bytes on local disk for the duration of one conversion.
package scratch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"audioconv/internal/artifact"
)

var (
	// ErrEmpty reports an upload without any bytes.
	ErrEmpty = errors.New("uploaded file is empty")
	// ErrTooLarge reports an upload exceeding the configured limit.
	ErrTooLarge = errors.New("uploaded file is too large")
)

// Dir is a shared directory of per-request scratch files.
type Dir struct {
	root    string
	newName func() string
}

// File is one scratch input owned by a single in-flight conversion.
type File struct {
	Path string
	Size int64

	once sync.Once
	err  error
}

// NewDir creates the scratch directory when missing.
func NewDir(root string) (*Dir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("scratch root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, err
	}
	return &Dir{root: abs, newName: uuid.NewString}, nil
}

// Root returns the absolute scratch directory.
func (d *Dir) Root() string {
	return d.root
}

// Create copies r into a uniquely named file that keeps the extension of
// sourceName when it is safe. A limit <= 0 disables the size check.
// On any error the partially written file is removed before returning.
func (d *Dir) Create(ctx context.Context, sourceName string, r io.Reader, limit int64) (*File, error) {
	if d == nil {
		return nil, fmt.Errorf("scratch dir is not configured")
	}
	if r == nil {
		return nil, ErrEmpty
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := d.newName() + "_input" + artifact.SafeExtension(sourceName)
	path := filepath.Join(d.root, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	fail := func(err error) (*File, error) {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}

	src := io.Reader(&contextReader{ctx: ctx, r: r})
	if limit > 0 {
		src = io.LimitReader(src, limit+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail(ctxErr)
		}
		return fail(fmt.Errorf("write scratch file: %w", err))
	}
	if limit > 0 && n > limit {
		return fail(ErrTooLarge)
	}
	if n == 0 {
		return fail(ErrEmpty)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("close scratch file: %w", err)
	}

	return &File{Path: path, Size: n}, nil
}

// Release deletes the scratch file. Repeated calls return the first result.
func (f *File) Release() error {
	if f == nil {
		return nil
	}
	f.once.Do(func() {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			f.err = err
		}
	})
	return f.err
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
