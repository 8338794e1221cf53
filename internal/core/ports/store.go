package ports

import "go.trai.ch/kiln/internal/core/domain"

// RecordStore defines the durable storage of installed-package records.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type RecordStore interface {
	// Load returns every record under root. A missing store yields no records.
	Load(root string) ([]domain.InstalledRecord, error)

	// Save atomically replaces the store under root with records.
	Save(root string, records []domain.InstalledRecord) error

	// ReadFiles returns the installed-file manifest of a package.
	// A missing manifest yields no files.
	ReadFiles(root, name string) ([]string, error)

	// WriteFiles atomically replaces the installed-file manifest of a package.
	WriteFiles(root, name string, files []string) error

	// DeleteFiles removes the installed-file manifest of a package.
	DeleteFiles(root, name string) error
}
