package domain

import (
	"encoding/hex"
	"strings"

	"go.trai.ch/zerr"
)

// HashAlgorithm names a supported content hash algorithm.
type HashAlgorithm string

const (
	// HashSHA256 is the default algorithm for unprefixed content hashes.
	HashSHA256 HashAlgorithm = "sha256"
	// HashBLAKE3 selects BLAKE3 with a 256-bit digest.
	HashBLAKE3 HashAlgorithm = "blake3"
)

const digestHexLen = 64

// ContentHash is a parsed "algorithm:hexdigest" value.
type ContentHash struct {
	Algorithm HashAlgorithm
	Digest    string
}

// ParseContentHash parses a declared content hash. A bare hex digest is treated as sha256.
func ParseContentHash(s string) (ContentHash, error) {
	algo, digest, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		algo, digest = string(HashSHA256), algo
	}
	h := ContentHash{Algorithm: HashAlgorithm(strings.ToLower(algo)), Digest: strings.ToLower(digest)}

	switch h.Algorithm {
	case HashSHA256, HashBLAKE3:
	default:
		return ContentHash{}, zerr.With(zerr.Wrap(ErrInvalidContentHash, "unsupported algorithm"), "algorithm", algo)
	}
	if len(h.Digest) != digestHexLen {
		return ContentHash{}, zerr.With(zerr.Wrap(ErrInvalidContentHash, "digest has wrong length"), "digest", digest)
	}
	if _, err := hex.DecodeString(h.Digest); err != nil {
		return ContentHash{}, zerr.With(zerr.Wrap(ErrInvalidContentHash, "digest is not hex"), "digest", digest)
	}
	return h, nil
}

// String returns the canonical "algorithm:digest" form.
func (h ContentHash) String() string {
	return string(h.Algorithm) + ":" + h.Digest
}
