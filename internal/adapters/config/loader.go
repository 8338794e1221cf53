// Package config provides the manifest loader for kiln.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

const defaultOptimization = 2

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader for YAML manifests.
type Loader struct {
	logger ports.Logger
}

// NewLoader creates a new Loader.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load reads the manifest at path, applies defaults and validates it.
// Relative paths in the manifest are resolved against its directory.
func (l *Loader) Load(path string) (*domain.Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", path)
	}

	var dto Manifest
	if err := yaml.Unmarshal(data, &dto); err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, err.Error()), "path", path)
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", path)
	}

	m, err := toManifest(&dto, base)
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}

	l.logger.Debug("manifest loaded",
		"path", path,
		"system", m.SystemName,
		"root", m.Layout.Root,
		"jobs", m.Build.Jobs(),
	)
	return m, nil
}

func toManifest(dto *Manifest, base string) (*domain.Manifest, error) {
	build, err := toBuildConfig(dto)
	if err != nil {
		return nil, err
	}

	m := &domain.Manifest{
		SystemName:    dto.System.Name,
		SystemVersion: dto.System.Version,
		Build:         build,
		Layout:        toLayout(dto.Paths, base),
		Logging: domain.LoggingConfig{
			Level:   dto.Logging.Level,
			File:    resolvePath(base, dto.Logging.File),
			Verbose: dto.Logging.Verbose,
			JSON:    dto.Logging.JSON,
		},
		Packages: make(map[domain.Phase][]*domain.Package),
		Desktop:  dto.Features.Desktop.EnableXorg,
	}

	sections := []struct {
		phase    domain.Phase
		pkgs     []PackageDTO
		critical bool
	}{
		{domain.PhaseToolchain, dto.Toolchain, true},
		{domain.PhaseBase, dto.Packages.Base, false},
		{domain.PhaseDesktop, dto.Packages.Desktop, false},
	}

	seen := make(map[string]domain.Phase)
	for _, section := range sections {
		for _, p := range section.pkgs {
			if prev, dup := seen[p.Name]; dup {
				return nil, zerr.With(zerr.With(zerr.With(zerr.Wrap(domain.ErrPackageAlreadyExists, "duplicate declaration"),
					"package", p.Name), "phase", string(section.phase)), "first_phase", string(prev))
			}
			seen[p.Name] = section.phase

			pkg, err := toPackage(p, section.critical)
			if err != nil {
				return nil, zerr.With(err, "phase", string(section.phase))
			}
			m.Packages[section.phase] = append(m.Packages[section.phase], pkg)
		}
	}

	return m, nil
}

func toBuildConfig(dto *Manifest) (domain.BuildConfig, error) {
	cfg := domain.BuildConfig{
		TargetTriplet: dto.System.TargetTriplet,
		ParallelJobs:  runtime.NumCPU(),
		Optimization:  defaultOptimization,
		DebugInfo:     dto.Build.DebugInfo,
		FetchRetries:  dto.Build.FetchRetries,
		TrackFiles:    true,
	}
	if dto.Build.ParallelJobs != nil {
		cfg.ParallelJobs = *dto.Build.ParallelJobs
	}
	if dto.Build.Optimization != nil {
		cfg.Optimization = *dto.Build.Optimization
	}
	if dto.Build.TrackFiles != nil {
		cfg.TrackFiles = *dto.Build.TrackFiles
	}

	if cfg.ParallelJobs < 1 {
		return cfg, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "parallel_jobs must be at least 1"),
			"parallel_jobs", cfg.ParallelJobs)
	}
	if cfg.Optimization < 0 || cfg.Optimization > 3 {
		return cfg, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "optimization must be between 0 and 3"),
			"optimization", cfg.Optimization)
	}
	if cfg.FetchRetries < 0 {
		return cfg, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "fetch_retries must not be negative"),
			"fetch_retries", cfg.FetchRetries)
	}

	if dto.Build.StepTimeout != "" {
		d, err := time.ParseDuration(dto.Build.StepTimeout)
		if err != nil || d < 0 {
			return cfg, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "step_timeout is not a valid duration"),
				"step_timeout", dto.Build.StepTimeout)
		}
		cfg.StepTimeout = d
	}
	return cfg, nil
}

func toLayout(p PathsDTO, base string) domain.Layout {
	root := resolvePath(base, p.Root)
	if root == "" {
		root = base
	}

	layout := domain.NewLayout(root)
	if p.Sources != "" {
		layout.Sources = resolvePath(base, p.Sources)
	}
	if p.Build != "" {
		layout.Build = resolvePath(base, p.Build)
	}
	if p.Tools != "" {
		layout.Tools = resolvePath(base, p.Tools)
	}
	if p.Prefix != "" {
		layout.Prefix = resolvePath(base, p.Prefix)
	}
	return layout
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func toPackage(dto PackageDTO, criticalByDefault bool) (*domain.Package, error) {
	critical := criticalByDefault
	if dto.Critical != nil {
		critical = *dto.Critical
	}

	pkg := &domain.Package{
		Name:              domain.NewInternedString(dto.Name),
		Version:           dto.Version,
		Dependencies:      domain.NewInternedStrings(dto.Dependencies),
		BuildDependencies: domain.NewInternedStrings(dto.BuildDependencies),
		Source:            dto.Source,
		ContentHash:       dto.Checksum,
		Recipe: domain.Recipe{
			Configure: dto.Configure,
			MakeArgs:  dto.MakeArgs,
			Critical:  critical,
		},
	}

	if err := pkg.Validate(); err != nil {
		return nil, err
	}
	if _, err := domain.ParseContentHash(pkg.ContentHash); err != nil {
		return nil, zerr.With(err, "package", dto.Name)
	}
	return pkg, nil
}
