package domain

import (
	"slices"
	"strings"
	"unicode"

	"go.trai.ch/zerr"
)

// Recipe describes how a package is configured, compiled and installed.
type Recipe struct {
	// Configure holds the option templates passed to ./configure.
	// A nil slice selects DefaultConfigureOptions; an empty slice passes none.
	Configure []string
	// MakeArgs are appended to the compile invocation.
	MakeArgs []string
	// Critical packages abort the whole run when they fail.
	Critical bool
}

// DefaultConfigureOptions are used when a recipe does not declare its own.
var DefaultConfigureOptions = []string{"--prefix=${usr}", "--sysconfdir=${sysconfdir}"}

// ConfigureOptions returns the option templates for the configure step.
func (r Recipe) ConfigureOptions() []string {
	if r.Configure == nil {
		return slices.Clone(DefaultConfigureOptions)
	}
	return slices.Clone(r.Configure)
}

// Package is a declarative unit of buildable software.
type Package struct {
	Name              InternedString
	Version           string
	Dependencies      []InternedString
	BuildDependencies []InternedString
	Source            string
	ContentHash       string
	Recipe            Recipe
}

// ID returns the "name-version" identifier used for workspaces and reporting.
func (p *Package) ID() string {
	return p.Name.String() + "-" + p.Version
}

// AllDependencies returns runtime and build dependencies without duplicates,
// runtime dependencies first.
func (p *Package) AllDependencies() []InternedString {
	out := make([]InternedString, 0, len(p.Dependencies)+len(p.BuildDependencies))
	seen := make(map[InternedString]struct{}, cap(out))
	for _, list := range [][]InternedString{p.Dependencies, p.BuildDependencies} {
		for _, dep := range list {
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			out = append(out, dep)
		}
	}
	return out
}

// DependencyNames returns the runtime dependencies as plain strings.
func (p *Package) DependencyNames() []string {
	names := make([]string, len(p.Dependencies))
	for i, d := range p.Dependencies {
		names[i] = d.String()
	}
	return names
}

// Validate checks that the package carries everything needed to build it.
func (p *Package) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"name", p.Name.String()},
		{"version", p.Version},
		{"source", p.Source},
		{"checksum", p.ContentHash},
	}
	for _, f := range fields {
		if f.value == "" {
			return zerr.With(zerr.With(zerr.Wrap(ErrInvalidPackage, "required field is empty"),
				"package", p.Name.String()), "field", f.name)
		}
	}
	if err := ValidateRecordKey(p.Name.String(), p.Version); err != nil {
		return err
	}
	for _, dep := range p.AllDependencies() {
		if dep == p.Name {
			return zerr.With(zerr.Wrap(ErrCyclicDependency, "package depends on itself"), "package", p.Name.String())
		}
	}
	return nil
}

// ValidatePackageName checks that name is usable as a registry db key and
// as a file name under the registry info directory.
func ValidatePackageName(name string) error {
	switch {
	case name == "" || name == "." || name == "..":
		return invalidField(name, "name", "not a valid file name")
	case strings.ContainsAny(name, ":/\\"):
		return invalidField(name, "name", "must not contain ':' or a path separator")
	case strings.ContainsFunc(name, unicode.IsSpace):
		return invalidField(name, "name", "must not contain whitespace")
	}
	return nil
}

// ValidateRecordKey checks that name and version survive a round trip
// through a "name:version" registry line. The version may contain ':'
// because only the first colon separates the fields.
func ValidateRecordKey(name, version string) error {
	if err := ValidatePackageName(name); err != nil {
		return err
	}
	switch {
	case version == "":
		return invalidField(name, "version", "required field is empty")
	case strings.ContainsAny(version, "/\\"):
		return invalidField(name, "version", "must not contain a path separator")
	case strings.ContainsFunc(version, unicode.IsSpace):
		return invalidField(name, "version", "must not contain whitespace")
	}
	return nil
}

func invalidField(name, field, msg string) error {
	return zerr.With(zerr.With(zerr.Wrap(ErrInvalidPackage, msg), "package", name), "field", field)
}
