// Package fs provides file system adapters for walking and fingerprinting trees.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"
	"slices"
)

// Walker provides file walking functionality.
type Walker struct{}

// NewWalker creates a new Walker.
func NewWalker() *Walker {
	return &Walker{}
}

// WalkFiles yields every non-directory entry under root, as paths that
// include root. Directories listed in exclude, and everything below them,
// are skipped. Symlinks are yielded, never followed.
func (w *Walker) WalkFiles(root string, exclude []string) iter.Seq2[string, fs.DirEntry] {
	skip := make([]string, len(exclude))
	for i, e := range exclude {
		skip[i] = filepath.Clean(e)
	}

	return func(yield func(string, fs.DirEntry) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() {
				if path != root && slices.Contains(skip, filepath.Clean(path)) {
					return filepath.SkipDir
				}
				return nil
			}

			if !yield(path, d) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}
