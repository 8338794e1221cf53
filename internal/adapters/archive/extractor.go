// Package archive unpacks source archives into build workspaces.
package archive

import (
	"archive/tar"
	"compress/bzip2"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sys/unix"
)

// Extractor implements ports.Extractor for tarballs and zip archives.
type Extractor struct {
	logger ports.Logger
}

// NewExtractor creates a new Extractor.
func NewExtractor(logger ports.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract unpacks archivePath into destDir. The format comes from the archive
// content, never its name. When every entry lives under one top-level
// directory, that directory is stripped.
func (e *Extractor) Extract(ctx context.Context, archivePath, destDir string) error {
	format, err := DetectFile(archivePath)
	if err != nil {
		return err
	}

	dest, err := filepath.Abs(destDir)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrExtractFailed.Error()), "dest", destDir)
	}
	if err := os.MkdirAll(dest, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrExtractFailed.Error()), "dest", dest)
	}

	e.logger.Debug("extracting archive", "archive", archivePath, "format", string(format), "dest", dest)

	if format == FormatZip {
		err = extractZip(ctx, archivePath, dest)
	} else {
		err = extractTarball(ctx, archivePath, format, dest)
	}
	if err != nil {
		return zerr.With(err, "archive", archivePath)
	}

	return stripSingleRoot(dest)
}

func extractTarball(ctx context.Context, archivePath string, format Format, dest string) error {
	f, err := os.Open(archivePath) //nolint:gosec // archive path is controlled by the fetcher
	if err != nil {
		return zerr.Wrap(err, domain.ErrExtractFailed.Error())
	}
	defer func() { _ = f.Close() }()

	r, closeFn, err := decompressor(f, format)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrExtractFailed.Error()), "format", string(format))
	}
	defer closeFn()

	return extractTar(ctx, tar.NewReader(r), dest)
}

func decompressor(r io.Reader, format Format) (io.Reader, func(), error) {
	noop := func() {}
	switch format {
	case FormatGzip:
		gz, err := pgzip.NewReader(r)
		if err != nil {
			return nil, noop, err
		}
		return gz, func() { _ = gz.Close() }, nil
	case FormatXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, noop, err
		}
		return xr, noop, nil
	case FormatBzip2:
		return bzip2.NewReader(r), noop, nil
	case FormatZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, noop, err
		}
		return zr, zr.Close, nil
	case FormatTar:
		return r, noop, nil
	default:
		return nil, noop, zerr.With(zerr.Wrap(domain.ErrUnsupportedArchiveFormat, "no tar decompressor"),
			"format", string(format))
	}
}

func extractTar(ctx context.Context, tr *tar.Reader, dest string) error {
	guard := newPathGuard(dest)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return zerr.Wrap(err, domain.ErrExtractFailed.Error())
		}

		if hdr.Typeflag == tar.TypeXHeader || hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		target, skip, err := guard.resolve(hdr.Name)
		if err != nil {
			return err
		}
		if skip {
			continue
		}

		if err := writeTarEntry(tr, hdr, target, guard); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrExtractFailed.Error()), "entry", hdr.Name)
		}
	}
}

func writeTarEntry(tr *tar.Reader, hdr *tar.Header, target string, guard *pathGuard) error {
	if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
		return err
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, hdr.FileInfo().Mode().Perm()|0o700); err != nil {
			return err
		}
	case tar.TypeReg:
		if fi, err := os.Lstat(target); err == nil && fi.Mode()&fs.ModeSymlink != 0 {
			_ = os.Remove(target)
		}
		if err := writeFile(target, tr, hdr.FileInfo().Mode()); err != nil {
			return err
		}
	case tar.TypeSymlink:
		_ = os.Remove(target)
		if err := os.Symlink(hdr.Linkname, target); err != nil {
			return err
		}
		guard.forget()
		restoreOwner(target, hdr)
		setLinkTimes(target, hdr)
		return nil
	case tar.TypeLink:
		source, skip, err := guard.resolve(hdr.Linkname)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}
		_ = os.Remove(target)
		return os.Link(source, target)
	default:
		return nil
	}

	restoreOwner(target, hdr)
	return os.Chtimes(target, hdr.AccessTime, hdr.ModTime)
}

func writeFile(target string, r io.Reader, mode fs.FileMode) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()) //nolint:gosec // guarded path
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func restoreOwner(target string, hdr *tar.Header) {
	if os.Geteuid() == 0 {
		_ = unix.Lchown(target, hdr.Uid, hdr.Gid)
	}
}

func setLinkTimes(target string, hdr *tar.Header) {
	atime := hdr.AccessTime
	if atime.IsZero() {
		atime = hdr.ModTime
	}
	times := []unix.Timeval{
		unix.NsecToTimeval(atime.UnixNano()),
		unix.NsecToTimeval(hdr.ModTime.UnixNano()),
	}
	_ = unix.Lutimes(target, times)
}

func extractZip(ctx context.Context, archivePath, dest string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return zerr.Wrap(err, domain.ErrExtractFailed.Error())
	}
	defer func() { _ = zr.Close() }()

	guard := newPathGuard(dest)
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, skip, err := guard.resolve(f.Name)
		if err != nil {
			return err
		}
		if skip {
			continue
		}

		if err := writeZipEntry(f, target); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrExtractFailed.Error()), "entry", f.Name)
		}
	}
	return nil
}

func writeZipEntry(f *zip.File, target string) error {
	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, domain.DirPerm)
	}
	if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	if err := writeFile(target, rc, f.Mode()); err != nil {
		return err
	}
	return os.Chtimes(target, f.Modified, f.Modified)
}

// pathGuard maps archive entry names to paths inside dest and rejects any
// entry that would land outside it, including through previously extracted symlinks.
type pathGuard struct {
	dest    string
	checked map[string]bool
}

func newPathGuard(dest string) *pathGuard {
	return &pathGuard{dest: dest, checked: map[string]bool{dest: true}}
}

// resolve returns the target path of name. skip is true for entries that
// name the archive root itself.
func (g *pathGuard) resolve(name string) (target string, skip bool, err error) {
	rel := filepath.Clean(filepath.FromSlash(name))
	if rel == "." {
		return "", true, nil
	}
	if !filepath.IsLocal(rel) {
		return "", false, zerr.With(zerr.Wrap(domain.ErrUnsafeArchiveEntry, "entry path is not local"), "entry", name)
	}

	target = filepath.Join(g.dest, rel)
	if !g.parentInside(filepath.Dir(target)) {
		return "", false, zerr.With(zerr.Wrap(domain.ErrUnsafeArchiveEntry, "entry is written through a symlink"),
			"entry", name)
	}
	return target, false, nil
}

// forget drops cached checks after a symlink may have replaced a directory.
func (g *pathGuard) forget() {
	clear(g.checked)
	g.checked[g.dest] = true
}

func (g *pathGuard) parentInside(dir string) bool {
	if ok, seen := g.checked[dir]; seen {
		return ok
	}

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		// Not created yet: its own parent decides.
		if errors.Is(err, fs.ErrNotExist) {
			return g.parentInside(filepath.Dir(dir))
		}
		return false
	}

	root, err := filepath.EvalSymlinks(g.dest)
	if err != nil {
		return false
	}
	ok := resolved == root || strings.HasPrefix(resolved, root+string(filepath.Separator))
	g.checked[dir] = ok
	return ok
}

// stripSingleRoot hoists the children of dest's only entry when that entry is a directory.
func stripSingleRoot(dest string) error {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return zerr.Wrap(err, domain.ErrExtractFailed.Error())
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}

	staging, err := os.MkdirTemp(dest, ".strip-")
	if err != nil {
		return zerr.Wrap(err, domain.ErrExtractFailed.Error())
	}

	top := filepath.Join(staging, entries[0].Name())
	if err := os.Rename(filepath.Join(dest, entries[0].Name()), top); err != nil {
		return zerr.Wrap(err, domain.ErrExtractFailed.Error())
	}

	children, err := os.ReadDir(top)
	if err != nil {
		return zerr.Wrap(err, domain.ErrExtractFailed.Error())
	}
	for _, child := range children {
		if err := os.Rename(filepath.Join(top, child.Name()), filepath.Join(dest, child.Name())); err != nil {
			return zerr.Wrap(err, domain.ErrExtractFailed.Error())
		}
	}

	return os.RemoveAll(staging)
}
