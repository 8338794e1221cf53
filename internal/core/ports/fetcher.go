package ports

import (
	"context"

	"go.trai.ch/kiln/internal/core/domain"
)

// SourceFetcher defines the interface for obtaining source archives.
//
//go:generate mockgen -source=fetcher.go -destination=mocks/mock_fetcher.go -package=mocks
type SourceFetcher interface {
	// Download places the archive of pkg in sourcesDir and returns its path.
	// An archive already present is returned without any transfer.
	// Transfer failures wrap domain.ErrFetchFailed and are never retried here.
	Download(ctx context.Context, pkg *domain.Package, sourcesDir string) (string, error)

	// Verify checks the archive against the declared content hash.
	// On mismatch the archive is removed and a *domain.ChecksumError is returned.
	Verify(pkg *domain.Package, archivePath string) error
}
