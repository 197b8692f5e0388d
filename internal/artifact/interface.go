package artifact

import (
	"context"
	"errors"
	"os"
)

var (
	// ErrNotFound reports that a requested artifact does not exist.
	ErrNotFound = errors.New("artifact not found")
	// ErrForbidden reports a filename that would escape the output directory.
	ErrForbidden = errors.New("artifact access denied")
	// ErrNameTaken reports that a reserved name was claimed before commit.
	ErrNameTaken = errors.New("artifact name already exists")
)

// Store is the artifact persistence abstraction used by the conversion service.
type Store interface {
	ReserveName(ctx context.Context, base, ext string) (*Reservation, error)
	Resolve(filename string) (string, error)
	Open(ctx context.Context, filename string) (*os.File, os.FileInfo, error)
}
