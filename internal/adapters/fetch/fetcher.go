// Package fetch downloads and verifies source archives.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sys/unix"
	"lukechampine.com/blake3"
)

const (
	copyBufferSize  = 32 * 1024
	defaultTimeout  = 5 * time.Minute
	partialSuffix   = ".part"
	lockSuffix      = ".lock"
	blake3DigestLen = 32
)

// Fetcher implements ports.SourceFetcher over http(s), file URLs and local paths.
type Fetcher struct {
	client   *http.Client
	logger   ports.Logger
	progress io.Writer
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithProgress renders a transfer progress bar to w. A nil writer disables it.
func WithProgress(w io.Writer) Option {
	return func(f *Fetcher) { f.progress = w }
}

// NewFetcher creates a new Fetcher.
func NewFetcher(logger ports.Logger, opts ...Option) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSHandshakeTimeout = 30 * time.Second

	f := &Fetcher{
		client: &http.Client{Transport: transport, Timeout: defaultTimeout},
		logger: logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

var archiveExts = []string{
	".tar.gz", ".tgz", ".tar.xz", ".txz", ".tar.bz2", ".tbz2", ".tar.zst", ".tzst", ".tar", ".zip",
}

// ArchiveName returns the file name a source is stored under. Archives are
// keyed by package name and version: a file name that is not already
// "<name>-<version><ext>" gets the package ID as prefix, so packages whose
// URLs end in the same file name never share a cache entry.
func ArchiveName(pkg *domain.Package) string {
	name := pkg.Source
	if u, err := url.Parse(pkg.Source); err == nil && u.Scheme != "" {
		name = u.Path
	}
	id := pkg.ID()
	base := path.Base(filepath.ToSlash(name))
	if base == "." || base == "/" || base == "" {
		return id
	}
	for _, ext := range archiveExts {
		if base == id+ext {
			return base
		}
	}
	return id + "-" + base
}

// Download places the archive of pkg in sourcesDir and returns its path.
// Concurrent callers for the same archive, in or across processes, serialize
// on a lock file and only the first one transfers.
func (f *Fetcher) Download(ctx context.Context, pkg *domain.Package, sourcesDir string) (string, error) {
	dest := filepath.Join(sourcesDir, ArchiveName(pkg))
	if err := os.MkdirAll(sourcesDir, domain.DirPerm); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to create sources directory"), "path", sourcesDir)
	}

	if exists(dest) {
		f.logger.Debug("source archive already present", "package", pkg.ID(), "path", dest)
		return dest, nil
	}

	unlock, err := lockFile(dest + lockSuffix)
	if err != nil {
		return "", err
	}
	defer unlock()

	if exists(dest) {
		f.logger.Debug("source archive appeared while waiting for lock", "package", pkg.ID(), "path", dest)
		return dest, nil
	}

	f.logger.Info("fetching source", "package", pkg.ID(), "source", pkg.Source)

	if err := f.transfer(ctx, pkg, dest); err != nil {
		return "", zerr.With(zerr.With(err, "package", pkg.Name.String()), "source", pkg.Source)
	}
	return dest, nil
}

func (f *Fetcher) transfer(ctx context.Context, pkg *domain.Package, dest string) error {
	body, size, err := f.open(ctx, pkg.Source)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	part := dest + partialSuffix
	out, err := os.OpenFile(part, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, domain.FilePerm) //nolint:gosec // under sources dir
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrFetchFailed, "failed to create partial file"), "error", err.Error())
	}

	var w io.Writer = out
	if f.progress != nil {
		bar := progressbar.NewOptions64(size,
			progressbar.OptionSetWriter(f.progress),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetDescription(pkg.ID()),
			progressbar.OptionClearOnFinish(),
		)
		defer func() { _ = bar.Finish() }()
		w = io.MultiWriter(out, bar)
	}

	_, copyErr := io.CopyBuffer(w, body, make([]byte, copyBufferSize))
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(part)
		return zerr.With(zerr.Wrap(domain.ErrFetchFailed, "transfer interrupted"), "error", err.Error())
	}

	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return zerr.With(zerr.Wrap(domain.ErrFetchFailed, "failed to move archive into place"), "error", err.Error())
	}
	return nil
}

// open returns a reader for source and its size, or -1 when unknown.
func (f *Fetcher) open(ctx context.Context, source string) (io.ReadCloser, int64, error) {
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" {
		return openLocal(source)
	}

	switch u.Scheme {
	case "file":
		return openLocal(u.Path)
	case "http", "https":
	default:
		return nil, 0, zerr.With(zerr.Wrap(domain.ErrFetchFailed, "unsupported source scheme"), "scheme", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, 0, zerr.With(zerr.Wrap(domain.ErrFetchFailed, "invalid request"), "error", err.Error())
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, zerr.With(zerr.Wrap(domain.ErrFetchFailed, "request failed"), "error", err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, 0, zerr.With(zerr.Wrap(domain.ErrFetchFailed, "unexpected response"), "status", resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}

func openLocal(p string) (io.ReadCloser, int64, error) {
	file, err := os.Open(p) //nolint:gosec // source path comes from the manifest
	if err != nil {
		return nil, 0, zerr.With(zerr.With(zerr.Wrap(domain.ErrFetchFailed, "cannot open local source"),
			"path", p), "error", err.Error())
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, zerr.With(zerr.Wrap(domain.ErrFetchFailed, "cannot stat local source"), "path", p)
	}
	return file, info.Size(), nil
}

// Verify hashes archivePath with the declared algorithm and compares digests.
// A mismatching archive is removed so the next attempt downloads it again.
func (f *Fetcher) Verify(pkg *domain.Package, archivePath string) error {
	want, err := domain.ParseContentHash(pkg.ContentHash)
	if err != nil {
		return zerr.With(err, "package", pkg.Name.String())
	}

	got, err := HashFile(want.Algorithm, archivePath)
	if err != nil {
		return zerr.With(err, "package", pkg.Name.String())
	}

	if got != want.Digest {
		_ = os.Remove(archivePath)
		f.logger.Warn("checksum mismatch, archive removed", "package", pkg.ID(), "path", archivePath)
		return &domain.ChecksumError{
			Path:     archivePath,
			Expected: want.String(),
			Computed: string(want.Algorithm) + ":" + got,
		}
	}

	f.logger.Debug("checksum verified", "package", pkg.ID(), "hash", want.String())
	return nil
}

// HashFile returns the hex digest of the file at p.
func HashFile(algo domain.HashAlgorithm, p string) (string, error) {
	var h hash.Hash
	switch algo {
	case domain.HashSHA256:
		h = sha256.New()
	case domain.HashBLAKE3:
		h = blake3.New(blake3DigestLen, nil)
	default:
		return "", zerr.With(zerr.Wrap(domain.ErrInvalidContentHash, "unsupported algorithm"), "algorithm", string(algo))
	}

	file, err := os.Open(p) //nolint:gosec // archive path is controlled by the fetcher
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrFileHashFailed.Error()), "path", p)
	}
	defer func() { _ = file.Close() }()

	if _, err := io.CopyBuffer(h, file, make([]byte, copyBufferSize)); err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrFileHashFailed.Error()), "path", p)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func exists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func lockFile(p string) (func(), error) {
	lock, err := os.OpenFile(p, os.O_CREATE|os.O_RDWR, domain.FilePerm) //nolint:gosec // under sources dir
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create lock file"), "path", p)
	}
	if err := unix.Flock(int(lock.Fd()), unix.LOCK_EX); err != nil {
		_ = lock.Close()
		return nil, zerr.With(zerr.Wrap(err, "failed to acquire download lock"), "path", p)
	}
	return func() {
		_ = unix.Flock(int(lock.Fd()), unix.LOCK_UN)
		_ = lock.Close()
		// Waiters re-check the archive after locking, so a stale lock inode is harmless.
		if exists(strings.TrimSuffix(p, lockSuffix)) {
			_ = os.Remove(p)
		}
	}, nil
}
