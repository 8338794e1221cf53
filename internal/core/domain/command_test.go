package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

func testSession() *domain.Session {
	layout := domain.NewLayout("/mnt/lfs")
	cfg := domain.BuildConfig{
		TargetTriplet: "x86_64-lfs-linux-gnu",
		ParallelJobs:  8,
		Optimization:  2,
		StepTimeout:   time.Minute,
	}
	return &domain.Session{
		Layout: layout,
		Config: cfg,
		Env:    domain.NewBuildEnvironment([]string{"PATH=/usr/bin"}, layout, cfg),
	}
}

func TestConfigureCommand_DefaultOptions(t *testing.T) {
	sess := testSession()
	p := pkg("zlib", "1.3.1")

	cmd, err := domain.ConfigureCommand(sess, p)
	require.NoError(t, err)
	assert.Equal(t, "./configure", cmd.Program)
	assert.Equal(t, []string{"--prefix=/mnt/lfs/usr", "--sysconfdir=/mnt/lfs/etc"}, cmd.Args)
	assert.Equal(t, "/mnt/lfs/build/zlib-1.3.1", cmd.Dir)
	assert.Equal(t, time.Minute, cmd.Timeout)
	assert.Equal(t, "zlib-1.3.1", cmd.Package)
}

func TestConfigureCommand_Templates(t *testing.T) {
	sess := testSession()
	p := pkg("binutils", "2.42")
	p.Recipe.Configure = []string{
		"--prefix=${tools}",
		"--with-sysroot=${root}",
		"--target=${target}",
		"--disable-nls",
	}

	cmd, err := domain.ConfigureCommand(sess, p)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--prefix=/mnt/lfs/tools",
		"--with-sysroot=/mnt/lfs",
		"--target=x86_64-lfs-linux-gnu",
		"--disable-nls",
	}, cmd.Args)
}

func TestConfigureCommand_EmptyOptions(t *testing.T) {
	p := pkg("plain", "1")
	p.Recipe.Configure = []string{}

	cmd, err := domain.ConfigureCommand(testSession(), p)
	require.NoError(t, err)
	assert.Empty(t, cmd.Args)
}

func TestConfigureCommand_UnknownVariable(t *testing.T) {
	p := pkg("gcc", "14.1")
	p.Recipe.Configure = []string{"--with-gmp=${gmp_dir}"}

	_, err := domain.ConfigureCommand(testSession(), p)
	require.ErrorIs(t, err, domain.ErrUnknownTemplateVariable)

	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	assert.Equal(t, "gmp_dir", zErr.Metadata()["variable"])
}

func TestCompileAndInstallCommands(t *testing.T) {
	sess := testSession()
	p := pkg("make", "4.4")
	p.Recipe.MakeArgs = []string{"V=1", "DESTDIR=${root}"}

	compile, err := domain.CompileCommand(sess, p)
	require.NoError(t, err)
	assert.Equal(t, "make", compile.Program)
	assert.Equal(t, []string{"-j8", "V=1", "DESTDIR=/mnt/lfs"}, compile.Args)
	assert.Equal(t, "make -j8 V=1 DESTDIR=/mnt/lfs", compile.String())

	install := domain.InstallCommand(sess, p)
	assert.Equal(t, []string{"install"}, install.Args)
	assert.Equal(t, sess.Layout.Workspace(p), install.Dir)
	assert.Equal(t, "make-4.4", compile.Package)
	assert.Equal(t, "make-4.4", install.Package)
}
