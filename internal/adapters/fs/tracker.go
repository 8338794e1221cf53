package fs

import (
	"encoding/binary"
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.FileTracker = (*Tracker)(nil)

// Tracker fingerprints trees so the files written by an install step can be
// told apart from those already present.
type Tracker struct {
	walker *Walker
}

// NewTracker creates a new Tracker.
func NewTracker(walker *Walker) *Tracker {
	return &Tracker{walker: walker}
}

// Snapshot maps every file and symlink under root, relative to root, to a
// fingerprint of its content and modification time. A missing root yields an empty snapshot.
func (t *Tracker) Snapshot(root string, exclude []string) (map[string]uint64, error) {
	snap := make(map[string]uint64)
	if _, err := os.Lstat(root); errors.Is(err, iofs.ErrNotExist) {
		return snap, nil
	}

	for path, d := range t.walker.WalkFiles(root, exclude) {
		sum, err := t.fingerprint(path, d)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrFileHashFailed.Error()), "path", path)
		}
		snap[filepath.ToSlash(rel)] = sum
	}
	return snap, nil
}

func (t *Tracker) fingerprint(path string, d iofs.DirEntry) (uint64, error) {
	info, err := d.Info()
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, domain.ErrPathStatFailed.Error()), "path", path)
	}

	h := xxhash.New()
	var stamp [8]byte
	binary.LittleEndian.PutUint64(stamp[:], uint64(info.ModTime().UnixNano())) //nolint:gosec // bit pattern only
	_, _ = h.Write(stamp[:])

	if info.Mode()&iofs.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return 0, zerr.With(zerr.Wrap(err, domain.ErrFileHashFailed.Error()), "path", path)
		}
		_, _ = h.WriteString("link\x00" + target)
		return h.Sum64(), nil
	}
	if !info.Mode().IsRegular() {
		_, _ = h.WriteString(info.Mode().Type().String())
		return h.Sum64(), nil
	}

	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, domain.ErrFileHashFailed.Error()), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	if _, err := io.Copy(h, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, domain.ErrFileHashFailed.Error()), "path", path)
	}
	return h.Sum64(), nil
}
