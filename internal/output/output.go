// Package output renders the assembled record tree as JSON. The engine
// hands over a finished tree; formatting and byte-writing happen only
// here.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/starford/odal/internal/models"
)

// Writer renders one IndexEntry tree per run.
type Writer interface {
	Write(entry *models.IndexEntry) error
	// Durable reports whether the destination survives the process,
	// the precondition for destructive sidecar modes.
	Durable() bool
}

// FileWriter writes the tree to a file atomically: tmp file → fsync →
// rename, so a crashed run never leaves a truncated destination.
type FileWriter struct {
	path string
}

// NewFileWriter returns a FileWriter targeting path.
func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path}
}

// Write implements Writer.
func (w *FileWriter) Write(entry *models.IndexEntry) error {
	data, err := encode(entry)
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("output: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".odal-tmp-*")
	if err != nil {
		return fmt.Errorf("output: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("output: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("output: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("output: close temp: %w", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		return fmt.Errorf("output: rename: %w", err)
	}
	success = true
	return nil
}

// Durable implements Writer.
func (w *FileWriter) Durable() bool { return true }

// StreamWriter writes the tree to an arbitrary stream, typically
// stdout. Not durable.
type StreamWriter struct {
	out io.Writer
}

// NewStreamWriter returns a StreamWriter over out.
func NewStreamWriter(out io.Writer) *StreamWriter {
	return &StreamWriter{out: out}
}

// Write implements Writer.
func (w *StreamWriter) Write(entry *models.IndexEntry) error {
	data, err := encode(entry)
	if err != nil {
		return err
	}
	if _, err := w.out.Write(data); err != nil {
		return fmt.Errorf("output: write: %w", err)
	}
	return nil
}

// Durable implements Writer.
func (w *StreamWriter) Durable() bool { return false }

func encode(entry *models.IndexEntry) ([]byte, error) {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("output: encode: %w", err)
	}
	return append(data, '\n'), nil
}
