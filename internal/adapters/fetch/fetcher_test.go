package fetch_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/fetch"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
	"lukechampine.com/blake3"
)

const payload = "tarball contents"

func sha256Of(s string) string {
	sum := sha256.Sum256([]byte(s))
	return "sha256:" + hex.EncodeToString(sum[:])
}

func newFetcher(t *testing.T) *fetch.Fetcher {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Info(gomock.Any(), gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any(), gomock.Any()).AnyTimes()
	return fetch.NewFetcher(log)
}

func countingServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestDownload_HTTP(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK)
	pkg := &domain.Package{Name: domain.NewInternedString("zlib"), Version: "1.3", Source: srv.URL + "/zlib-1.3.tar.gz"}
	dir := t.TempDir()

	got, err := newFetcher(t).Download(context.Background(), pkg, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "zlib-1.3.tar.gz"), got)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
	assert.Equal(t, int32(1), hits.Load())
	assert.NoFileExists(t, got+".part")
}

func TestDownload_CachedArchiveSkipsTransfer(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK)
	pkg := &domain.Package{Name: domain.NewInternedString("zlib"), Version: "1.3", Source: srv.URL + "/zlib-1.3.tar.gz"}
	dir := t.TempDir()
	f := newFetcher(t)

	_, err := f.Download(context.Background(), pkg, dir)
	require.NoError(t, err)
	_, err = f.Download(context.Background(), pkg, dir)
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
}

func TestDownload_ConcurrentCallersTransferOnce(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK)
	pkg := &domain.Package{Name: domain.NewInternedString("zlib"), Version: "1.3", Source: srv.URL + "/zlib-1.3.tar.gz"}
	dir := t.TempDir()
	f := newFetcher(t)

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			_, err := f.Download(context.Background(), pkg, dir)
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
}

func TestDownload_HTTPErrorStatus(t *testing.T) {
	srv, _ := countingServer(t, http.StatusNotFound)
	pkg := &domain.Package{Name: domain.NewInternedString("gone"), Version: "1", Source: srv.URL + "/gone-1.tar.xz"}
	dir := t.TempDir()

	_, err := newFetcher(t).Download(context.Background(), pkg, dir)
	require.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.NoFileExists(t, filepath.Join(dir, "gone-1.tar.xz"))
	assert.NoFileExists(t, filepath.Join(dir, "gone-1.tar.xz.part"))
}

func TestDownload_LocalPathAndFileURL(t *testing.T) {
	src := filepath.Join(t.TempDir(), "local-2.0.tar.gz")
	require.NoError(t, os.WriteFile(src, []byte(payload), 0o600))

	for name, source := range map[string]string{"path": src, "file-url": "file://" + src} {
		t.Run(name, func(t *testing.T) {
			pkg := &domain.Package{Name: domain.NewInternedString("local"), Version: "2.0", Source: source}
			got, err := newFetcher(t).Download(context.Background(), pkg, t.TempDir())
			require.NoError(t, err)

			data, err := os.ReadFile(got)
			require.NoError(t, err)
			assert.Equal(t, payload, string(data))
		})
	}
}

func TestDownload_MissingLocalSource(t *testing.T) {
	pkg := &domain.Package{Name: domain.NewInternedString("x"), Version: "1", Source: "/does/not/exist.tar.gz"}

	_, err := newFetcher(t).Download(context.Background(), pkg, t.TempDir())
	require.ErrorIs(t, err, domain.ErrFetchFailed)
}

func TestVerify(t *testing.T) {
	b3 := blake3.Sum256([]byte(payload))

	tests := []struct {
		name string
		hash string
	}{
		{"sha256 prefixed", sha256Of(payload)},
		{"sha256 bare", sha256Of(payload)[len("sha256:"):]},
		{"blake3", "blake3:" + hex.EncodeToString(b3[:])},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "a.tar.gz")
			require.NoError(t, os.WriteFile(p, []byte(payload), 0o600))
			pkg := &domain.Package{Name: domain.NewInternedString("a"), Version: "1", ContentHash: tt.hash}

			require.NoError(t, newFetcher(t).Verify(pkg, p))
			assert.FileExists(t, p)
		})
	}
}

func TestVerify_MismatchRemovesArchive(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.tar.gz")
	require.NoError(t, os.WriteFile(p, []byte("tampered"), 0o600))
	pkg := &domain.Package{Name: domain.NewInternedString("a"), Version: "1", ContentHash: sha256Of(payload)}

	err := newFetcher(t).Verify(pkg, p)
	require.ErrorIs(t, err, domain.ErrChecksumMismatch)

	var csErr *domain.ChecksumError
	require.ErrorAs(t, err, &csErr)
	assert.Equal(t, sha256Of(payload), csErr.Expected)
	assert.Equal(t, sha256Of("tampered"), csErr.Computed)
	assert.NoFileExists(t, p)
}

func TestArchiveName(t *testing.T) {
	tests := []struct {
		name    string
		version string
		source  string
		want    string
	}{
		{"make", "4.4", "https://ftp.gnu.org/gnu/make/make-4.4.tar.gz", "make-4.4.tar.gz"},
		{"xz", "5.6", "https://example.org/dl/xz-5.6.tar.xz?mirror=1", "xz-5.6.tar.xz"},
		{"pkg", "1", "https://example.org/dl/pkg.tar.xz?mirror=1", "pkg-1-pkg.tar.xz"},
		{"liba", "1.0", "https://forge.example/liba/archive/v1.0.tar.gz", "liba-1.0-v1.0.tar.gz"},
		{"zlib", "1", "https://example.org/zlib-1.3.tar.gz", "zlib-1-zlib-1.3.tar.gz"},
		{"local", "2", "/srv/sources/local.tar.zst", "local-2-local.tar.zst"},
		{"x", "1", "https://example.org/", "x-1"},
	}
	for _, tt := range tests {
		pkg := &domain.Package{Name: domain.NewInternedString(tt.name), Version: tt.version, Source: tt.source}
		assert.Equal(t, tt.want, fetch.ArchiveName(pkg), tt.source)
	}
}

func TestDownload_SharedFileNameKeyedByPackage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("contents of " + r.URL.Path))
	}))
	t.Cleanup(srv.Close)

	liba := &domain.Package{
		Name:        domain.NewInternedString("liba"),
		Version:     "1.0",
		Source:      srv.URL + "/liba/archive/v1.0.tar.gz",
		ContentHash: sha256Of("contents of /liba/archive/v1.0.tar.gz"),
	}
	libb := &domain.Package{
		Name:        domain.NewInternedString("libb"),
		Version:     "1.0",
		Source:      srv.URL + "/libb/archive/v1.0.tar.gz",
		ContentHash: sha256Of("contents of /libb/archive/v1.0.tar.gz"),
	}
	dir := t.TempDir()
	f := newFetcher(t)

	pathA, err := f.Download(context.Background(), liba, dir)
	require.NoError(t, err)
	pathB, err := f.Download(context.Background(), libb, dir)
	require.NoError(t, err)

	assert.NotEqual(t, pathA, pathB)
	require.NoError(t, f.Verify(liba, pathA))
	require.NoError(t, f.Verify(libb, pathB))
}
