// Package hasher computes one or more digests over byte content or name
// strings in a single pass. Supported algorithms: sha1, sha256, blake3.
package hasher

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/zeebo/blake3"
	"golang.org/x/text/unicode/norm"

	"github.com/starford/odal/internal/apperr"
	"github.com/starford/odal/internal/models"
)

// Algorithm names accepted by New.
const (
	SHA1   = "sha1"
	SHA256 = "sha256"
	BLAKE3 = "blake3"
)

// readBuf is the chunk size for file reads. Every chunk is fed to all
// active accumulators; the source is never re-read per algorithm.
const readBuf = 256 * 1024

// Set computes a fixed set of digest algorithms over an input.
type Set struct {
	algorithms []string
	normalize  bool
}

// New returns a Set for the given algorithm names. The list must be
// non-empty and every name must be a known algorithm.
func New(algorithms []string) (*Set, error) {
	if len(algorithms) == 0 {
		return nil, fmt.Errorf("hasher: no algorithms requested")
	}
	for _, a := range algorithms {
		if _, err := newDigest(a); err != nil {
			return nil, err
		}
	}
	return &Set{algorithms: append([]string(nil), algorithms...)}, nil
}

// WithNormalization returns a copy of the Set that applies Unicode NFC
// normalization to name strings before hashing. Content hashing is
// unaffected.
func (s *Set) WithNormalization() *Set {
	return &Set{algorithms: s.algorithms, normalize: true}
}

// Algorithms returns the algorithm names this Set computes, in order.
func (s *Set) Algorithms() []string {
	return append([]string(nil), s.algorithms...)
}

// SumReader digests r once, feeding every chunk to all accumulators.
// The returned set contains exactly one digest per algorithm.
func (s *Set) SumReader(r io.Reader) (models.HashSet, error) {
	digests := make([]hash.Hash, len(s.algorithms))
	writers := make([]io.Writer, len(s.algorithms))
	for i, a := range s.algorithms {
		d, err := newDigest(a)
		if err != nil {
			return nil, err
		}
		digests[i] = d
		writers[i] = d
	}

	buf := make([]byte, readBuf)
	if _, err := io.CopyBuffer(io.MultiWriter(writers...), r, buf); err != nil {
		return nil, fmt.Errorf("hasher: read: %w", err)
	}

	out := make(models.HashSet, len(s.algorithms))
	for i, a := range s.algorithms {
		out[a] = hex.EncodeToString(digests[i].Sum(nil))
	}
	return out, nil
}

// SumFile digests the content of the file at path. An unreadable file
// yields a nil set and an error wrapping apperr.ErrUnreadable so the
// caller can fall back to a name-derived identity.
func (s *Set) SumFile(path string) (models.HashSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("hasher: open %s: %w", path, apperr.ErrUnreadable)
	}
	defer f.Close()

	set, err := s.SumReader(f)
	if err != nil {
		return nil, fmt.Errorf("hasher: %s: %w", path, apperr.ErrUnreadable)
	}
	return set, nil
}

// SumName digests the exact UTF-8 bytes of name (NFC-normalized first
// when the Set was built with WithNormalization).
func (s *Set) SumName(name string) (models.HashSet, error) {
	data := s.NameBytes(name)
	out := make(models.HashSet, len(s.algorithms))
	for _, a := range s.algorithms {
		d, err := newDigest(a)
		if err != nil {
			return nil, err
		}
		d.Write(data)
		out[a] = hex.EncodeToString(d.Sum(nil))
	}
	return out, nil
}

// NameBytes returns the byte sequence SumName hashes for name.
func (s *Set) NameBytes(name string) []byte {
	if s.normalize {
		return []byte(norm.NFC.String(name))
	}
	return []byte(name)
}

// Sum computes a single algorithm's hex digest over data.
func Sum(algorithm string, data []byte) (string, error) {
	d, err := newDigest(algorithm)
	if err != nil {
		return "", err
	}
	d.Write(data)
	return hex.EncodeToString(d.Sum(nil)), nil
}

func newDigest(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case BLAKE3:
		return blake3.New(), nil
	}
	return nil, fmt.Errorf("hasher: unknown algorithm %q", algorithm)
}
