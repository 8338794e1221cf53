package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/config"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

const checksum = "sha256:9a93b2b7dfdac77ceba5a558a580e74667dd6fede4585b91eefb60f03b72df23"

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kiln.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newLoader(t *testing.T) *config.Loader {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	return config.NewLoader(log)
}

func TestLoad_Success(t *testing.T) {
	path := writeManifest(t, `
system:
  name: kiln-os
  version: "1.0"
  target_triplet: x86_64-lfs-linux-gnu
build:
  parallel_jobs: 4
  optimization: 3
  debug_info: true
  fetch_retries: 2
  step_timeout: 30m
paths:
  root: /mnt/lfs
logging:
  level: debug
  file: logs/build.log
toolchain:
  - name: binutils
    version: "2.42"
    source: https://ftp.gnu.org/gnu/binutils/binutils-2.42.tar.xz
    checksum: `+checksum+`
    configure: ["--prefix=${tools}", "--target=${target}"]
packages:
  base:
    - name: zlib
      version: "1.3.1"
      source: https://zlib.net/zlib-1.3.1.tar.gz
      checksum: `+checksum+`
    - name: openssl
      version: "3.2.1"
      dependencies: [zlib]
      build_dependencies: [binutils]
      source: https://openssl.org/openssl-3.2.1.tar.gz
      checksum: `+checksum+`
      critical: true
      make_args: ["MANSUFFIX=ssl"]
features:
  desktop:
    enable_xorg: true
`)

	m, err := newLoader(t).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "kiln-os", m.SystemName)
	assert.Equal(t, domain.BuildConfig{
		TargetTriplet: "x86_64-lfs-linux-gnu",
		ParallelJobs:  4,
		Optimization:  3,
		DebugInfo:     true,
		FetchRetries:  2,
		StepTimeout:   30 * time.Minute,
		TrackFiles:    true,
	}, m.Build)
	assert.Equal(t, domain.NewLayout("/mnt/lfs"), m.Layout)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "logs", "build.log"), m.Logging.File)
	assert.True(t, m.Desktop)
	assert.Equal(t, []domain.Phase{domain.PhaseToolchain, domain.PhaseBase, domain.PhaseDesktop}, m.EnabledPhases())

	toolchain := m.PhasePackages(domain.PhaseToolchain)
	require.Len(t, toolchain, 1)
	assert.True(t, toolchain[0].Recipe.Critical)
	assert.Equal(t, []string{"--prefix=${tools}", "--target=${target}"}, toolchain[0].Recipe.Configure)

	base := m.PhasePackages(domain.PhaseBase)
	require.Len(t, base, 2)
	assert.False(t, base[0].Recipe.Critical)
	assert.Nil(t, base[0].Recipe.Configure)
	assert.True(t, base[1].Recipe.Critical)
	assert.Equal(t, []string{"zlib"}, base[1].DependencyNames())
	assert.Equal(t, "binutils", base[1].BuildDependencies[0].String())
	assert.Equal(t, []string{"MANSUFFIX=ssl"}, base[1].Recipe.MakeArgs)

	pkg, phase, ok := m.Lookup("openssl")
	require.True(t, ok)
	assert.Equal(t, domain.PhaseBase, phase)
	assert.Equal(t, "3.2.1", pkg.Version)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeManifest(t, `
system:
  name: minimal
packages:
  base:
    - name: zlib
      version: "1.3.1"
      source: zlib-1.3.1.tar.gz
      checksum: `+checksum+`
`)

	m, err := newLoader(t).Load(path)
	require.NoError(t, err)

	assert.Equal(t, runtime.NumCPU(), m.Build.ParallelJobs)
	assert.Equal(t, 2, m.Build.Optimization)
	assert.True(t, m.Build.TrackFiles)
	assert.Zero(t, m.Build.StepTimeout)
	assert.Equal(t, domain.NewLayout(filepath.Dir(path)), m.Layout)
	assert.False(t, m.Desktop)
	assert.Equal(t, []domain.Phase{domain.PhaseToolchain, domain.PhaseBase}, m.EnabledPhases())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
		field   string
	}{
		{
			name:    "invalid yaml",
			content: "system: [",
			wantErr: domain.ErrConfigParseFailed,
		},
		{
			name: "zero parallel jobs",
			content: `
build:
  parallel_jobs: 0
`,
			wantErr: domain.ErrInvalidConfig,
		},
		{
			name: "bad timeout",
			content: `
build:
  step_timeout: soon
`,
			wantErr: domain.ErrInvalidConfig,
		},
		{
			name: "missing checksum",
			content: `
packages:
  base:
    - name: zlib
      version: "1"
      source: zlib.tar.gz
`,
			wantErr: domain.ErrInvalidPackage,
			field:   "checksum",
		},
		{
			name: "bad checksum",
			content: `
packages:
  base:
    - name: zlib
      version: "1"
      source: zlib.tar.gz
      checksum: md5:abc
`,
			wantErr: domain.ErrInvalidContentHash,
		},
		{
			name: "colon in name",
			content: `
packages:
  base:
    - {name: "perl:XML-Parser", version: "2.46", source: p.tar.gz, checksum: ` + checksum + `}
`,
			wantErr: domain.ErrInvalidPackage,
			field:   "name",
		},
		{
			name: "path in name",
			content: `
packages:
  base:
    - {name: ../../etc, version: "1", source: p.tar.gz, checksum: ` + checksum + `}
`,
			wantErr: domain.ErrInvalidPackage,
			field:   "name",
		},
		{
			name: "dot dot name",
			content: `
packages:
  base:
    - {name: "..", version: "1", source: p.tar.gz, checksum: ` + checksum + `}
`,
			wantErr: domain.ErrInvalidPackage,
			field:   "name",
		},
		{
			name: "whitespace in name",
			content: `
packages:
  base:
    - {name: "lib foo", version: "1", source: p.tar.gz, checksum: ` + checksum + `}
`,
			wantErr: domain.ErrInvalidPackage,
			field:   "name",
		},
		{
			name: "newline in version",
			content: `
packages:
  base:
    - {name: zlib, version: "1.3\nopenssl:9", source: z.tar.gz, checksum: ` + checksum + `}
`,
			wantErr: domain.ErrInvalidPackage,
			field:   "version",
		},
		{
			name: "duplicate across phases",
			content: `
toolchain:
  - {name: zlib, version: "1", source: a.tar.gz, checksum: ` + checksum + `}
packages:
  base:
    - {name: zlib, version: "2", source: b.tar.gz, checksum: ` + checksum + `}
`,
			wantErr: domain.ErrPackageAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newLoader(t).Load(writeManifest(t, tt.content))
			require.ErrorIs(t, err, tt.wantErr)

			if tt.field != "" {
				var zErr *zerr.Error
				require.ErrorAs(t, err, &zErr)
				assert.Equal(t, tt.field, zErr.Metadata()["field"])
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := newLoader(t).Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
