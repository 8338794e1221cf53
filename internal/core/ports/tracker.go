package ports

// FileTracker snapshots a directory tree so the files added by an install
// step can be derived.
//
//go:generate mockgen -source=tracker.go -destination=mocks/mock_tracker.go -package=mocks
type FileTracker interface {
	// Snapshot maps every regular file and symlink under root, relative to root,
	// to a content fingerprint. Paths under any of the excluded directories are skipped.
	Snapshot(root string, exclude []string) (map[string]uint64, error)
}
