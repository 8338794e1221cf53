package commands_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/cmd/kiln/commands"
	"go.trai.ch/kiln/internal/adapters/logger"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.trai.ch/kiln/internal/engine/registry"
	"go.trai.ch/kiln/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	manifest *domain.Manifest
	store    *mocks.MockRecordStore
	cli      *commands.CLI
	out      *bytes.Buffer
}

func newFixture(t *testing.T, log ports.Logger) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		manifest: &domain.Manifest{
			Build:  domain.BuildConfig{ParallelJobs: 1},
			Layout: domain.NewLayout(t.TempDir()),
			Packages: map[domain.Phase][]*domain.Package{
				domain.PhaseBase: {
					{Name: domain.NewInternedString("zlib"), Version: "1.3"},
					{
						Name:         domain.NewInternedString("curl"),
						Version:      "8.5",
						Dependencies: domain.NewInternedStrings([]string{"zlib"}),
					},
				},
			},
		},
		store: mocks.NewMockRecordStore(ctrl),
		out:   &bytes.Buffer{},
	}

	if log == nil {
		m := mocks.NewMockLogger(ctrl)
		m.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
		m.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
		log = m
	}

	loader := mocks.NewMockConfigLoader(ctrl)
	loader.EXPECT().Load(commands.DefaultConfigPath).Return(f.manifest, nil).AnyTimes()

	reporter := mocks.NewMockReporter(ctrl)
	builder := mocks.NewMockPackageBuilder(ctrl)

	a := app.New(
		loader,
		registry.NewOpener(f.store, builder, reporter, log),
		scheduler.NewScheduler(builder, reporter, log),
		mocks.NewMockSourceFetcher(ctrl),
		reporter,
		log,
	)
	f.cli = commands.New(app.NewComponents(a, log))
	f.cli.SetOutput(f.out)
	return f
}

func (f *fixture) run(args ...string) error {
	f.cli.SetArgs(args)
	return f.cli.Execute(context.Background())
}

func TestVersion(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.run("version"))
	assert.Equal(t, "kiln version dev\n", f.out.String())
}

func TestList(t *testing.T) {
	f := newFixture(t, nil)
	f.store.EXPECT().Load(f.manifest.Layout.Root).Return([]domain.InstalledRecord{
		{Name: "zlib", Version: "1.3"},
		{Name: "curl", Version: "8.5", Dependencies: []string{"zlib"}},
	}, nil)

	require.NoError(t, f.run("list"))
	assert.Equal(t, "curl-8.5\nzlib-1.3\n", f.out.String())
}

func TestInfo(t *testing.T) {
	f := newFixture(t, nil)
	root := f.manifest.Layout.Root
	f.store.EXPECT().Load(root).Return([]domain.InstalledRecord{
		{Name: "zlib", Version: "1.3"},
		{Name: "curl", Version: "8.5", Dependencies: []string{"zlib"}},
	}, nil)
	f.store.EXPECT().ReadFiles(root, "zlib").Return([]string{"usr/lib/libz.so"}, nil)

	require.NoError(t, f.run("info", "zlib"))
	out := f.out.String()
	assert.Contains(t, out, "Version:      1.3")
	assert.Contains(t, out, "Dependencies: none")
	assert.Contains(t, out, "Required by:  curl")
	assert.Contains(t, out, "  /usr/lib/libz.so")
}

func TestInfo_NotInstalled(t *testing.T) {
	f := newFixture(t, nil)
	f.store.EXPECT().Load(gomock.Any()).Return(nil, nil)

	require.ErrorIs(t, f.run("info", "zlib"), domain.ErrNotInstalled)
}

func TestRemove_DependentsExist(t *testing.T) {
	f := newFixture(t, nil)
	f.store.EXPECT().Load(gomock.Any()).Return([]domain.InstalledRecord{
		{Name: "zlib", Version: "1.3"},
		{Name: "curl", Version: "8.5", Dependencies: []string{"zlib"}},
	}, nil)

	require.ErrorIs(t, f.run("remove", "zlib"), domain.ErrDependentsExist)
}

func TestPlan(t *testing.T) {
	f := newFixture(t, nil)
	f.store.EXPECT().Load(gomock.Any()).Return([]domain.InstalledRecord{{Name: "zlib", Version: "1.3"}}, nil)

	require.NoError(t, f.run("plan", "--phase", "base"))
	assert.Equal(t, "base:\n  1. curl-8.5\n  -  zlib (installed)\n", f.out.String())
}

func TestPlan_UnknownPhase(t *testing.T) {
	f := newFixture(t, nil)
	f.store.EXPECT().Load(gomock.Any()).Return(nil, nil)

	require.ErrorIs(t, f.run("plan", "--phase", "kernel"), domain.ErrInvalidConfig)
}

func TestInstall_RequiresName(t *testing.T) {
	f := newFixture(t, nil)
	require.Error(t, f.run("install"))
}

func TestInstall_MissingDependency(t *testing.T) {
	f := newFixture(t, nil)
	f.store.EXPECT().Load(gomock.Any()).Return(nil, nil)

	require.ErrorIs(t, f.run("install", "curl"), domain.ErrMissingDependency)
}

func TestLogFileFromManifest(t *testing.T) {
	f := newFixture(t, logger.New())
	f.manifest.Logging.File = filepath.Join(t.TempDir(), "logs", "kiln.log")
	f.store.EXPECT().Load(gomock.Any()).Return(nil, nil)

	require.NoError(t, f.run("list", "--verbose"))
	assert.FileExists(t, f.manifest.Logging.File)
}
