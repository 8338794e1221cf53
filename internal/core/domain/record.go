package domain

import (
	"slices"
	"strings"
)

// InstalledRecord describes a package present on the target.
type InstalledRecord struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	Dependencies []string `yaml:"dependencies"`
}

// NewInstalledRecord captures the record of pkg at install time.
func NewInstalledRecord(pkg *Package) InstalledRecord {
	return InstalledRecord{
		Name:         pkg.Name.String(),
		Version:      pkg.Version,
		Dependencies: pkg.DependencyNames(),
	}
}

// String returns the "name-version" form used by listings.
func (r InstalledRecord) String() string {
	return r.Name + "-" + r.Version
}

// PackageInfo is the detailed view of one installed package.
type PackageInfo struct {
	Record     InstalledRecord
	Files      []string
	Dependents []string
}

// InstalledSet answers whether a dependency is already satisfied on the target.
type InstalledSet interface {
	InstalledVersion(name string) (string, bool)
}

// DependentsOf returns the sorted names of records whose dependencies include name.
func DependentsOf(records []InstalledRecord, name string) []string {
	var out []string
	for _, r := range records {
		if r.Name != name && slices.Contains(r.Dependencies, name) {
			out = append(out, r.Name)
		}
	}
	slices.SortFunc(out, strings.Compare)
	return out
}

// ChangedFiles returns the sorted paths of after that are new or changed relative to before.
func ChangedFiles(before, after map[string]uint64) []string {
	var changed []string
	for path, sum := range after {
		if prev, ok := before[path]; !ok || prev != sum {
			changed = append(changed, path)
		}
	}
	slices.Sort(changed)
	return changed
}
