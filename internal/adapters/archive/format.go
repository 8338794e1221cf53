package archive

import (
	"bytes"
	"errors"
	"io"
	"os"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// Format identifies the container or compression of a source archive.
type Format string

const (
	// FormatGzip is a gzip-compressed tarball.
	FormatGzip Format = "gzip"
	// FormatXz is an xz-compressed tarball.
	FormatXz Format = "xz"
	// FormatBzip2 is a bzip2-compressed tarball.
	FormatBzip2 Format = "bzip2"
	// FormatZstd is a zstd-compressed tarball.
	FormatZstd Format = "zstd"
	// FormatTar is an uncompressed tarball.
	FormatTar Format = "tar"
	// FormatZip is a zip archive.
	FormatZip Format = "zip"
)

const (
	sniffLen     = 512
	ustarOffset  = 257
	ustarMagicSz = 5
)

var signatures = []struct {
	magic  []byte
	format Format
}{
	{[]byte{0x1f, 0x8b}, FormatGzip},
	{[]byte{0xfd, '7', 'z', 'X', 'Z', 0x00}, FormatXz},
	{[]byte("BZh"), FormatBzip2},
	{[]byte{0x28, 0xb5, 0x2f, 0xfd}, FormatZstd},
	{[]byte("PK\x03\x04"), FormatZip},
}

// Detect identifies the format from the leading bytes of an archive.
func Detect(header []byte) (Format, error) {
	for _, sig := range signatures {
		if bytes.HasPrefix(header, sig.magic) {
			return sig.format, nil
		}
	}
	if len(header) >= ustarOffset+ustarMagicSz &&
		bytes.Equal(header[ustarOffset:ustarOffset+ustarMagicSz], []byte("ustar")) {
		return FormatTar, nil
	}
	return "", zerr.Wrap(domain.ErrUnsupportedArchiveFormat, "no known signature")
}

// DetectFile reads the head of path and identifies its format.
func DetectFile(path string) (Format, error) {
	f, err := os.Open(path) //nolint:gosec // archive path is controlled by the fetcher
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, domain.ErrExtractFailed.Error()), "archive", path)
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, sniffLen)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", zerr.With(zerr.Wrap(err, domain.ErrExtractFailed.Error()), "archive", path)
	}

	format, err := Detect(header[:n])
	if err != nil {
		return "", zerr.With(err, "archive", path)
	}
	return format, nil
}
