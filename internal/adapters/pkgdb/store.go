// Package pkgdb implements the on-disk installed-package database.
//
// The database lives under <root>/var/lib/pkg. The db file holds one
// "name:version" line per installed package. Each package also owns an
// info/<name>.info YAML record and an info/<name>.files manifest listing
// one installed path per line.
package pkgdb

import (
	"bufio"
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/renameio"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Store implements ports.RecordStore.
type Store struct {
	mu sync.Mutex
}

// NewStore creates a new Store.
func NewStore() *Store {
	return &Store{}
}

// Load returns every record under root, in db order.
func (s *Store) Load(root string) ([]domain.InstalledRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	layout := domain.NewLayout(root)
	data, err := os.ReadFile(layout.DBPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "path", layout.DBPath())
	}

	var records []domain.InstalledRecord
	sc := bufio.NewScanner(bytes.NewReader(data))
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		name, version, ok := strings.Cut(line, ":")
		if !ok || domain.ValidateRecordKey(name, version) != nil {
			return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrRegistryCorrupt, "malformed db entry"),
				"path", layout.DBPath()), "line", lineNo)
		}

		rec, err := readInfo(layout, name)
		if err != nil {
			return nil, err
		}
		rec.Name, rec.Version = name, version
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "path", layout.DBPath())
	}
	return records, nil
}

func readInfo(layout domain.Layout, name string) (domain.InstalledRecord, error) {
	p := infoPath(layout, name)
	data, err := os.ReadFile(p) //nolint:gosec // path is derived from the layout
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.InstalledRecord{}, nil
		}
		return domain.InstalledRecord{}, zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "path", p)
	}

	var rec domain.InstalledRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return domain.InstalledRecord{}, zerr.With(zerr.Wrap(domain.ErrRegistryCorrupt, "malformed info file"),
			"path", p)
	}
	return rec, nil
}

// Save atomically replaces the db file with records and rewrites their info
// files. Info files of packages no longer present are removed. Nothing is
// written when a record cannot be read back unchanged.
func (s *Store) Save(root string, records []domain.InstalledRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if err := domain.ValidateRecordKey(rec.Name, rec.Version); err != nil {
			return err
		}
	}

	layout := domain.NewLayout(root)
	if err := os.MkdirAll(layout.InfoDir(), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreCreateFailed.Error()), "path", layout.InfoDir())
	}

	var db bytes.Buffer
	keep := make(map[string]struct{}, len(records))
	for _, rec := range records {
		db.WriteString(rec.Name + ":" + rec.Version + "\n")
		keep[rec.Name] = struct{}{}

		data, err := yaml.Marshal(rec)
		if err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrStoreMarshalFailed.Error()), "package", rec.Name)
		}
		if err := renameio.WriteFile(infoPath(layout, rec.Name), data, domain.FilePerm); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "package", rec.Name)
		}
	}

	if err := renameio.WriteFile(layout.DBPath(), db.Bytes(), domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "path", layout.DBPath())
	}

	return pruneInfo(layout, keep)
}

func pruneInfo(layout domain.Layout, keep map[string]struct{}) error {
	entries, err := os.ReadDir(layout.InfoDir())
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "path", layout.InfoDir())
	}
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), domain.InfoFileExt)
		if !ok {
			continue
		}
		if _, live := keep[name]; live {
			continue
		}
		if err := os.Remove(filepath.Join(layout.InfoDir(), e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "package", name)
		}
	}
	return nil
}

// ReadFiles returns the installed-file manifest of name.
func (s *Store) ReadFiles(root, name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := filesPath(domain.NewLayout(root), name)
	data, err := os.ReadFile(p) //nolint:gosec // path is derived from the layout
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "path", p)
	}

	var files []string
	for line := range strings.Lines(string(data)) {
		if line = strings.TrimRight(line, "\n"); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// WriteFiles atomically replaces the manifest of name with the sorted files.
func (s *Store) WriteFiles(root, name string, files []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := domain.ValidatePackageName(name); err != nil {
		return err
	}

	layout := domain.NewLayout(root)
	if err := os.MkdirAll(layout.InfoDir(), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreCreateFailed.Error()), "path", layout.InfoDir())
	}

	sorted := slices.Sorted(slices.Values(files))
	var buf bytes.Buffer
	for _, f := range sorted {
		buf.WriteString(f + "\n")
	}
	if err := renameio.WriteFile(filesPath(layout, name), buf.Bytes(), domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "package", name)
	}
	return nil
}

// DeleteFiles removes the manifest of name. A missing manifest is not an error.
func (s *Store) DeleteFiles(root, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := filesPath(domain.NewLayout(root), name)
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "path", p)
	}
	return nil
}

func infoPath(layout domain.Layout, name string) string {
	return filepath.Join(layout.InfoDir(), name+domain.InfoFileExt)
}

func filesPath(layout domain.Layout, name string) string {
	return filepath.Join(layout.InfoDir(), name+domain.FilesFileExt)
}
