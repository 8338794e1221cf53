// Package registry maintains the set of packages installed under a build root.
package registry

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// Opener creates registries for build sessions.
type Opener struct {
	store    ports.RecordStore
	builder  ports.PackageBuilder
	reporter ports.Reporter
	logger   ports.Logger
}

// NewOpener creates a new Opener.
func NewOpener(
	store ports.RecordStore,
	builder ports.PackageBuilder,
	reporter ports.Reporter,
	logger ports.Logger,
) *Opener {
	return &Opener{store: store, builder: builder, reporter: reporter, logger: logger}
}

// Open loads the registry stored under the session root.
func (o *Opener) Open(sess *domain.Session) (*Registry, error) {
	records, err := o.store.Load(sess.Layout.Root)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		store:    o.store,
		builder:  o.builder,
		reporter: o.reporter,
		logger:   o.logger,
		sess:     sess,
		records:  make(map[string]domain.InstalledRecord, len(records)),
	}
	for _, rec := range records {
		if _, dup := r.records[rec.Name]; dup {
			return nil, zerr.With(zerr.Wrap(domain.ErrRegistryCorrupt, "package recorded twice"), "package", rec.Name)
		}
		r.records[rec.Name] = rec
		r.order = append(r.order, rec.Name)
	}
	return r, nil
}

// Registry is the durable record of installed packages under one root.
// All mutations are serialized and persisted before they return.
type Registry struct {
	store    ports.RecordStore
	builder  ports.PackageBuilder
	reporter ports.Reporter
	logger   ports.Logger
	sess     *domain.Session

	mu      sync.RWMutex
	records map[string]domain.InstalledRecord
	order   []string
}

// InstalledVersion implements domain.InstalledSet.
func (r *Registry) InstalledVersion(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	return rec.Version, ok
}

// List returns every installed record sorted by name.
func (r *Registry) List() []domain.InstalledRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.InstalledRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b domain.InstalledRecord) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Dependents returns the installed packages whose recorded dependencies include name.
func (r *Registry) Dependents(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return domain.DependentsOf(r.snapshot(), name)
}

// Info returns the record, file manifest and dependents of an installed package.
func (r *Registry) Info(name string) (*domain.PackageInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[name]
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrNotInstalled, "no such package"), "package", name)
	}
	files, err := r.store.ReadFiles(r.sess.Layout.Root, name)
	if err != nil {
		return nil, err
	}
	return &domain.PackageInfo{
		Record:     rec,
		Files:      files,
		Dependents: domain.DependentsOf(r.snapshot(), name),
	}, nil
}

// Commit records pkg as installed with the given files and persists the store.
func (r *Registry) Commit(pkg *domain.Package, files []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commitLocked(pkg, files)
}

func (r *Registry) commitLocked(pkg *domain.Package, files []string) error {
	name := pkg.Name.String()
	root := r.sess.Layout.Root
	prev, existed := r.records[name]

	var prevFiles []string
	if r.sess.Config.TrackFiles {
		var err error
		if prevFiles, err = r.store.ReadFiles(root, name); err != nil {
			return err
		}
		if err := r.store.WriteFiles(root, name, files); err != nil {
			return err
		}
	}

	r.records[name] = domain.NewInstalledRecord(pkg)
	if !existed {
		r.order = append(r.order, name)
	}

	if err := r.persist(); err != nil {
		if existed {
			r.records[name] = prev
		} else {
			delete(r.records, name)
			r.order = r.order[:len(r.order)-1]
		}
		if r.sess.Config.TrackFiles {
			r.restoreFiles(name, existed, prevFiles)
		}
		return err
	}

	r.logger.Debug("package recorded", "package", pkg.ID(), "files", len(files))
	return nil
}

// restoreFiles puts back the manifest of name after a failed commit.
func (r *Registry) restoreFiles(name string, existed bool, files []string) {
	root := r.sess.Layout.Root
	var err error
	if existed {
		err = r.store.WriteFiles(root, name, files)
	} else {
		err = r.store.DeleteFiles(root, name)
	}
	if err != nil {
		r.logger.Warn("failed to restore file manifest", "package", name, "error", err)
	}
}

// Install builds and records pkg. It is a no-op when the same version is
// already recorded. Every dependency must already be installed; this is
// checked before any fetch.
func (r *Registry) Install(ctx context.Context, pkg *domain.Package) error {
	if v, ok := r.InstalledVersion(pkg.Name.String()); ok && v == pkg.Version {
		r.logger.Info("package already installed", "package", pkg.ID())
		return nil
	}

	for _, dep := range pkg.AllDependencies() {
		if _, ok := r.InstalledVersion(dep.String()); !ok {
			return zerr.With(zerr.With(zerr.Wrap(domain.ErrMissingDependency, "dependency is not installed"),
				"package", pkg.Name.String()), "dependency", dep.String())
		}
	}

	job := domain.NewBuildJob(pkg, r.sess.Layout.Workspace(pkg))
	files, err := r.builder.Build(ctx, r.sess, job)
	if err == nil {
		err = r.Commit(pkg, files)
	}
	if err != nil {
		if ev, failErr := job.Fail(err); failErr == nil {
			r.reporter.Report(ctx, ev)
		}
		return zerr.With(err, "package", pkg.ID())
	}

	ev, err := job.Transition(domain.StateDone)
	if err != nil {
		return err
	}
	r.reporter.Report(ctx, ev)
	return nil
}

// Remove deletes the files and the record of an installed package.
// It refuses while another installed package depends on it.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[name]
	if !ok {
		return zerr.With(zerr.Wrap(domain.ErrNotInstalled, "no such package"), "package", name)
	}
	if dependents := domain.DependentsOf(r.snapshot(), name); len(dependents) > 0 {
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrDependentsExist, "package is still required"),
			"package", name), "dependents", strings.Join(dependents, ","))
	}

	root := r.sess.Layout.Root
	files, err := r.store.ReadFiles(root, name)
	if err != nil {
		return err
	}
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return zerr.With(zerr.With(zerr.Wrap(err, "failed to remove installed file"), "package", name), "path", p)
		}
	}

	// The manifest outlives a failed persist so Remove can be retried.
	idx := slices.Index(r.order, name)
	delete(r.records, name)
	r.order = slices.Delete(r.order, idx, idx+1)
	if err := r.persist(); err != nil {
		r.records[name] = rec
		r.order = slices.Insert(r.order, idx, name)
		return err
	}
	if err := r.store.DeleteFiles(root, name); err != nil {
		r.logger.Warn("failed to delete file manifest", "package", name, "error", err)
	}

	r.logger.Info("package removed", "package", rec.String(), "files", len(files))
	return nil
}

// Upgrade replaces an installed package with pkg by removing it and installing
// the new version. It is a no-op when the versions match. A failed install
// leaves the package uninstalled.
func (r *Registry) Upgrade(ctx context.Context, pkg *domain.Package) error {
	name := pkg.Name.String()
	current, ok := r.InstalledVersion(name)
	if !ok {
		return zerr.With(zerr.Wrap(domain.ErrNotInstalled, "cannot upgrade"), "package", name)
	}
	if current == pkg.Version {
		r.logger.Info("package already at version", "package", pkg.ID())
		return nil
	}

	if err := r.Remove(name); err != nil {
		return err
	}
	r.logger.Info("upgrading package", "package", name, "from", current, "to", pkg.Version)

	if err := r.Install(ctx, pkg); err != nil {
		r.logger.Warn("upgrade failed, package is no longer installed", "package", name, "previous", current)
		return err
	}
	return nil
}

func (r *Registry) snapshot() []domain.InstalledRecord {
	out := make([]domain.InstalledRecord, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.records[name])
	}
	return out
}

func (r *Registry) persist() error {
	return r.store.Save(r.sess.Layout.Root, r.snapshot())
}
