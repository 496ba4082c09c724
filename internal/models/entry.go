// Package models defines the domain types for Odal.
package models

import "time"

// Kind classifies an indexed item.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// Origin classifies where a metadata entry came from.
type Origin string

const (
	OriginEmbedded  Origin = "embedded"
	OriginSidecar   Origin = "sidecar"
	OriginGenerated Origin = "generated"
)

// State is the terminal state an item reached during assembly.
type State string

const (
	StateComplete State = "complete"
	StateDegraded State = "degraded"
	StateSkipped  State = "skipped"
)

// HashSet maps an algorithm name ("sha1", "sha256", "blake3") to its
// hex-encoded digest. A HashSet is populated all-or-nothing: either
// every requested algorithm is present or the set is nil.
type HashSet map[string]string

// Stamp is one filesystem instant in both human and machine form.
type Stamp struct {
	ISO   string `json:"iso"`
	Epoch int64  `json:"epoch"`
}

// Timestamps carries the created/modified/accessed instants of an item.
// Created falls back to the inode change time on platforms without a
// birth time.
type Timestamps struct {
	Created  Stamp `json:"created"`
	Modified Stamp `json:"modified"`
	Accessed Stamp `json:"accessed"`
}

// Name is the original item name together with the digest of its exact
// UTF-8 bytes.
type Name struct {
	Text string `json:"text"`
	Hash string `json:"hash"`
}

// ParentRef links an entry to its containing directory.
type ParentRef struct {
	Identity string `json:"identity"`
	NameHash string `json:"name_hash"`
}

// Provenance records the on-disk origin of a sidecar payload so the
// original file can be reconstructed after a consume pass.
type Provenance struct {
	Path       string     `json:"path"`
	Size       int64      `json:"size"`
	Timestamps Timestamps `json:"timestamps"`
}

// MetadataEntry is one unit of descriptive data attached to an entry.
// Payload shape depends on the source: a map for embedded and JSON
// sidecars, a string for decoded text, a HashSet for hash lists, and a
// base64 string for opaque binary content.
type MetadataEntry struct {
	Origin     Origin      `json:"origin"`
	Source     string      `json:"source"`
	Payload    interface{} `json:"payload"`
	Provenance *Provenance `json:"provenance,omitempty"`
}

// IndexEntry is one file or directory in the output tree. Identity is a
// pure function of kind, content (or name), and — for directories — the
// parent's name hash; it never depends on child content.
type IndexEntry struct {
	Kind        Kind            `json:"kind"`
	Identity    string          `json:"identity"`
	NameDerived bool            `json:"name_derived,omitempty"`
	Name        Name            `json:"name"`
	Hashes      HashSet         `json:"hashes,omitempty"`
	Size        int64           `json:"size,omitempty"`
	Timestamps  Timestamps      `json:"timestamps"`
	Parent      *ParentRef      `json:"parent,omitempty"`
	Metadata    []MetadataEntry `json:"metadata,omitempty"`
	Children    []*IndexEntry   `json:"children,omitempty"`
	State       State           `json:"state"`
}

// Report aggregates the outcome of one indexing run. Item-level and
// field-level failures surface only here.
type Report struct {
	RunID      string        `json:"run_id"`
	Root       string        `json:"root"`
	Discovered int           `json:"discovered"`
	Complete   int           `json:"complete"`
	Degraded   int           `json:"degraded"`
	Skipped    int           `json:"skipped"`
	Elapsed    time.Duration `json:"elapsed"`
}

// RecoveryRecord is written beside a renamed file so the original name
// can be restored. The rename is otherwise irreversible on disk.
type RecoveryRecord struct {
	Name        Name      `json:"name"`
	Identity    string    `json:"identity"`
	StorageName string    `json:"storage_name"`
	RenamedAt   time.Time `json:"renamed_at"`
}
