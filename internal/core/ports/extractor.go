package ports

import "context"

// Extractor defines the interface for unpacking source archives.
//
//go:generate mockgen -source=extractor.go -destination=mocks/mock_extractor.go -package=mocks
type Extractor interface {
	// Extract unpacks archivePath into destDir. The format is detected from
	// the archive content, and a single top-level directory is stripped.
	Extract(ctx context.Context, archivePath, destDir string) error
}
