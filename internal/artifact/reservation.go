package artifact

import (
	"errors"
	"fmt"
	"os"
)

// Reservation is a claimed artifact name whose bytes are still being produced.
type Reservation struct {
	Name        string
	PartialPath string
	FinalPath   string

	done bool
}

// Commit publishes the partial file under its final name without overwriting
// an existing artifact. It returns the size of the published file.
func (r *Reservation) Commit() (int64, error) {
	if r == nil || r.done {
		return 0, fmt.Errorf("reservation is already finalized")
	}

	info, err := os.Stat(r.PartialPath)
	if err != nil {
		return 0, err
	}

	if err := os.Link(r.PartialPath, r.FinalPath); err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, ErrNameTaken
		}
		// Some filesystems refuse hard links; fall back to a checked rename.
		if _, statErr := os.Lstat(r.FinalPath); statErr == nil {
			return 0, ErrNameTaken
		}
		if err := os.Rename(r.PartialPath, r.FinalPath); err != nil {
			return 0, err
		}
		r.done = true
		return info.Size(), nil
	}

	_ = os.Remove(r.PartialPath)
	r.done = true
	return info.Size(), nil
}

// Abort discards the partial output. It is safe to call after Commit.
func (r *Reservation) Abort() {
	if r == nil || r.done {
		return
	}
	r.done = true
	_ = os.Remove(r.PartialPath)
}
