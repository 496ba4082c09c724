// Package identity derives stable, content-addressed identifiers and
// storage names for indexed items.
//
// Identity strings carry a one-letter kind prefix:
//
//	y  file, digest of content (or of the name bytes when content is
//	   inaccessible, flagged name-derived by the caller)
//	x  directory, two-layer name scheme
//	z  synthetically generated metadata-only entry
package identity

import (
	"encoding/hex"
	"fmt"

	"github.com/starford/odal/internal/hasher"
	"github.com/starford/odal/internal/models"
)

// Kind prefixes.
const (
	PrefixFile      = "y"
	PrefixDirectory = "x"
	PrefixGenerated = "z"
)

// Generator produces identities using a single selected algorithm.
type Generator struct {
	algorithm string
	names     *hasher.Set
}

// New returns a Generator for the given algorithm. normalize applies
// Unicode NFC to name bytes before hashing (content digests are taken
// as-is from the Hasher).
func New(algorithm string, normalize bool) (*Generator, error) {
	set, err := hasher.New([]string{algorithm})
	if err != nil {
		return nil, err
	}
	if normalize {
		set = set.WithNormalization()
	}
	return &Generator{algorithm: algorithm, names: set}, nil
}

// Algorithm returns the algorithm backing this generator.
func (g *Generator) Algorithm() string {
	return g.algorithm
}

// ForFile returns the identity of a file from its computed content
// hashes. The set must contain the generator's algorithm.
func (g *Generator) ForFile(hashes models.HashSet) (string, error) {
	digest, ok := hashes[g.algorithm]
	if !ok {
		return "", fmt.Errorf("identity: hash set is missing %q", g.algorithm)
	}
	return PrefixFile + digest, nil
}

// ForFileName returns the name-derived identity of a file whose content
// is inaccessible (symbolic link, unreadable content).
func (g *Generator) ForFileName(name string) string {
	return PrefixFile + g.NameHash(name)
}

// ForDirectory returns the two-layer directory identity:
// hash(hash(own-name-bytes) || hash(parent-name-bytes)). It depends
// only on the directory's own name and its parent's name, never on
// child content, so children can be re-indexed without invalidating it.
// The root directory uses the digest of the empty byte string as its
// parent layer.
func (g *Generator) ForDirectory(name, parentName string) string {
	own := g.rawNameHash(name)
	parent := g.rawNameHash(parentName)
	outer, _ := hasher.Sum(g.algorithm, append(own, parent...))
	return PrefixDirectory + outer
}

// ForGenerated returns the identity of a metadata-only entry
// synthesized by the engine (for example a retained sidecar record).
func (g *Generator) ForGenerated(name string) string {
	return PrefixGenerated + g.NameHash(name)
}

// NameHash returns the hex digest of name's exact UTF-8 bytes.
func (g *Generator) NameHash(name string) string {
	return hex.EncodeToString(g.rawNameHash(name))
}

func (g *Generator) rawNameHash(name string) []byte {
	digest, _ := hasher.Sum(g.algorithm, g.names.NameBytes(name))
	raw, _ := hex.DecodeString(digest)
	return raw
}

// StorageName synthesizes the content-addressed filename for an entry:
// identity plus the original extension for files, the bare identity for
// directories.
func StorageName(entry *models.IndexEntry, ext string) string {
	if entry.Kind == models.KindDirectory {
		return entry.Identity
	}
	return entry.Identity + ext
}
