// Package app implements the application layer for kiln.
package app

import (
	"context"
	"errors"
	"os"
	"slices"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/registry"
	"go.trai.ch/kiln/internal/engine/scheduler"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	registries   *registry.Opener
	scheduler    *scheduler.Scheduler
	fetcher      ports.SourceFetcher
	reporter     ports.Reporter
	logger       ports.Logger
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	registries *registry.Opener,
	sched *scheduler.Scheduler,
	fetcher ports.SourceFetcher,
	reporter ports.Reporter,
	logger ports.Logger,
) *App {
	return &App{
		configLoader: loader,
		registries:   registries,
		scheduler:    sched,
		fetcher:      fetcher,
		reporter:     reporter,
		logger:       logger,
	}
}

// Manifest loads the manifest at path without touching the build root.
func (a *App) Manifest(path string) (*domain.Manifest, error) {
	m, err := a.configLoader.Load(path)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	return m, nil
}

// Open loads the manifest at path, creates every layout directory and opens
// the registry of the build root.
func (a *App) Open(path string) (*Session, error) {
	m, err := a.Manifest(path)
	if err != nil {
		return nil, err
	}

	if err := prepareLayout(m.Layout); err != nil {
		return nil, err
	}

	sess := domain.NewSession(m.Layout, m.Build)
	reg, err := a.registries.Open(sess)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to open registry")
	}

	a.logger.Debug("session opened",
		"system", m.SystemName,
		"root", m.Layout.Root,
		"jobs", m.Build.Jobs(),
		"installed", len(reg.List()),
	)

	return &Session{
		app:      a,
		Manifest: m,
		Env:      sess,
		Registry: reg,
	}, nil
}

// Close flushes the reporter.
func (a *App) Close() error {
	return a.reporter.Close()
}

func prepareLayout(l domain.Layout) error {
	var g errgroup.Group
	for _, dir := range l.Dirs() {
		g.Go(func() error {
			if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
				return zerr.With(zerr.Wrap(domain.ErrWorkspacePrepareFailed, err.Error()), "path", dir)
			}
			return nil
		})
	}
	return g.Wait()
}

// Session is an opened build root together with its manifest.
type Session struct {
	app      *App
	Manifest *domain.Manifest
	Env      *domain.Session
	Registry *registry.Registry
}

// BuildOptions selects the phases a build runs.
type BuildOptions struct {
	// SkipToolchain leaves out the toolchain phase.
	SkipToolchain bool
	// Phase restricts the build to a single phase when set.
	Phase domain.Phase
}

// PhaseReport is the outcome of one scheduled phase.
type PhaseReport struct {
	Phase  domain.Phase
	Report *domain.RunReport
}

// Phases returns the phases selected by opts, in build order.
func (s *Session) Phases(opts BuildOptions) ([]domain.Phase, error) {
	if opts.Phase != "" {
		if !slices.Contains(domain.Phases, opts.Phase) {
			return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "unknown phase"), "phase", string(opts.Phase))
		}
		return []domain.Phase{opts.Phase}, nil
	}

	phases := s.Manifest.EnabledPhases()
	if opts.SkipToolchain {
		phases = slices.DeleteFunc(phases, func(p domain.Phase) bool { return p == domain.PhaseToolchain })
	}
	return phases, nil
}

// Plan resolves the build order of a phase against the registry.
func (s *Session) Plan(phase domain.Phase) (*domain.Plan, error) {
	g := domain.NewGraph()
	for _, pkg := range s.Manifest.PhasePackages(phase) {
		if err := g.AddPackage(pkg); err != nil {
			return nil, err
		}
	}

	plan, err := g.Resolve(s.Registry)
	if err != nil {
		return nil, zerr.With(err, "phase", string(phase))
	}
	return plan, nil
}

// Build runs the selected phases in order. Each phase is resolved before any
// of its packages starts. A critical failure or cancellation stops the
// remaining phases; other failures are collected and the next phase runs.
func (s *Session) Build(ctx context.Context, opts BuildOptions) ([]PhaseReport, error) {
	phases, err := s.Phases(opts)
	if err != nil {
		return nil, err
	}

	var (
		reports []PhaseReport
		errs    []error
	)
	for _, phase := range phases {
		plan, err := s.Plan(phase)
		if err != nil {
			return reports, errors.Join(append(errs, err)...)
		}

		if plan.Len() == 0 {
			s.app.logger.Info("phase up to date", "phase", string(phase), "installed", len(plan.Satisfied()))
			continue
		}

		s.app.logger.Info("building phase", "phase", string(phase), "packages", plan.Len())
		report, err := s.app.scheduler.Run(ctx, s.Env, plan, s.Registry)
		reports = append(reports, PhaseReport{Phase: phase, Report: report})
		if err == nil {
			continue
		}

		err = zerr.With(err, "phase", string(phase))
		if errors.Is(err, domain.ErrCriticalPackageFailed) || ctx.Err() != nil {
			return reports, errors.Join(append(errs, err)...)
		}
		errs = append(errs, err)
	}

	return reports, errors.Join(errs...)
}

// Fetch downloads and verifies the sources of every package in the selected
// phases, up to the configured number of parallel jobs.
func (s *Session) Fetch(ctx context.Context, opts BuildOptions) error {
	phases, err := s.Phases(opts)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Env.Config.Jobs())

	for _, phase := range phases {
		for _, pkg := range s.Manifest.PhasePackages(phase) {
			g.Go(func() error {
				path, err := s.app.fetcher.Download(ctx, pkg, s.Env.Layout.Sources)
				if err != nil {
					return zerr.With(err, "package", pkg.ID())
				}
				if err := s.app.fetcher.Verify(pkg, path); err != nil {
					return zerr.With(err, "package", pkg.ID())
				}
				s.app.logger.Debug("source ready", "package", pkg.ID(), "path", path)
				return nil
			})
		}
	}

	return g.Wait()
}

// Install builds and records the named packages in the given order.
func (s *Session) Install(ctx context.Context, names ...string) error {
	for _, name := range names {
		pkg, err := s.lookup(name)
		if err != nil {
			return err
		}
		if err := s.Registry.Install(ctx, pkg); err != nil {
			return err
		}
	}
	return nil
}

// Upgrade replaces an installed package with its declared version.
func (s *Session) Upgrade(ctx context.Context, name string) error {
	pkg, err := s.lookup(name)
	if err != nil {
		return err
	}
	return s.Registry.Upgrade(ctx, pkg)
}

// Remove deletes an installed package.
func (s *Session) Remove(name string) error {
	return s.Registry.Remove(name)
}

// List returns the installed packages sorted by name.
func (s *Session) List() []domain.InstalledRecord {
	return s.Registry.List()
}

// Info returns the details of an installed package.
func (s *Session) Info(name string) (*domain.PackageInfo, error) {
	return s.Registry.Info(name)
}

func (s *Session) lookup(name string) (*domain.Package, error) {
	pkg, _, ok := s.Manifest.Lookup(name)
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrPackageNotFound, "not declared in manifest"), "package", name)
	}
	return pkg, nil
}
