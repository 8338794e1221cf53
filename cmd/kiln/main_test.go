package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
	}()

	tests := []struct {
		name         string
		manifest     string
		args         []string
		expectedExit int
	}{
		{
			name: "List on a fresh root",
			manifest: `system:
  name: test
paths:
  root: ./root
`,
			args:         []string{"kiln", "list"},
			expectedExit: 0,
		},
		{
			name: "Plan with a missing dependency",
			manifest: `paths:
  root: ./root
packages:
  base:
    - name: curl
      version: "8.5"
      dependencies: [zlib]
      source: https://example.org/curl-8.5.tar.xz
      checksum: sha256:0000000000000000000000000000000000000000000000000000000000000000
`,
			args:         []string{"kiln", "plan"},
			expectedExit: 1,
		},
		{
			name:         "Missing manifest",
			args:         []string{"kiln", "--config", "nonexistent.yaml", "list"},
			expectedExit: 1,
		},
		{
			name:         "Version",
			args:         []string{"kiln", "version"},
			expectedExit: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			if tt.manifest != "" {
				err := os.WriteFile(filepath.Join(tmpDir, "kiln.yaml"), []byte(tt.manifest), 0o600)
				require.NoError(t, err)
			}
			t.Chdir(tmpDir)

			os.Args = tt.args
			assert.Equal(t, tt.expectedExit, run())
		})
	}
}
