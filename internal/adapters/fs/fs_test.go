package fs_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/core/domain"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestWalker_WalkFiles(t *testing.T) {
	// root/
	//   build/pkg-1/main.o   excluded
	//   usr/bin/tool
	//   usr/lib/libfoo.so -> libfoo.so.1
	root := t.TempDir()
	write(t, filepath.Join(root, "build", "pkg-1", "main.o"), "obj")
	write(t, filepath.Join(root, "usr", "bin", "tool"), "bin")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr", "lib"), 0o750))
	require.NoError(t, os.Symlink("libfoo.so.1", filepath.Join(root, "usr", "lib", "libfoo.so")))

	files := make(map[string]bool)
	for path := range fs.NewWalker().WalkFiles(root, []string{filepath.Join(root, "build")}) {
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		files[filepath.ToSlash(rel)] = true
	}

	assert.Equal(t, map[string]bool{"usr/bin/tool": true, "usr/lib/libfoo.so": true}, files)
}

func TestTracker_SnapshotAndChangedFiles(t *testing.T) {
	root := t.TempDir()
	internal := filepath.Join(root, "var", "lib", "pkg")
	write(t, filepath.Join(root, "usr", "bin", "existing"), "v1")
	write(t, filepath.Join(root, "etc", "untouched"), "same")
	write(t, filepath.Join(internal, "db"), "a:1\n")

	tracker := fs.NewTracker(fs.NewWalker())
	before, err := tracker.Snapshot(root, []string{internal})
	require.NoError(t, err)
	assert.NotContains(t, before, "var/lib/pkg/db")

	write(t, filepath.Join(root, "usr", "bin", "existing"), "v2")
	later := time.Now().Add(time.Second)
	require.NoError(t, os.Chtimes(filepath.Join(root, "usr", "bin", "existing"), later, later))
	write(t, filepath.Join(root, "usr", "lib", "libnew.so"), "elf")
	require.NoError(t, os.Symlink("libnew.so", filepath.Join(root, "usr", "lib", "libnew.so.0")))
	write(t, filepath.Join(internal, "db"), "a:1\nb:1\n")

	after, err := tracker.Snapshot(root, []string{internal})
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"usr/bin/existing", "usr/lib/libnew.so", "usr/lib/libnew.so.0"},
		domain.ChangedFiles(before, after))
}

func TestTracker_SnapshotMissingRoot(t *testing.T) {
	snap, err := fs.NewTracker(fs.NewWalker()).Snapshot(filepath.Join(t.TempDir(), "absent"), nil)
	require.NoError(t, err)
	assert.Empty(t, snap)
}
