// Package exiftool invokes the external exiftool binary to pull
// embedded metadata out of eligible files. A single JSON call per file
// returns the full tag set.
//
// Tool availability is detected once per run: the first miss logs one
// warning and every later call short-circuits without repeating it.
// A per-file failure is isolated to that file.
package exiftool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/starford/odal/internal/apperr"
)

// DefaultBinary is the exiftool executable looked up on PATH when the
// configuration does not name one.
const DefaultBinary = "exiftool"

// Extractor runs exiftool against individual files.
type Extractor struct {
	binary   string
	excluded map[string]struct{}
	logger   *slog.Logger

	checkOnce   sync.Once
	unavailable bool
}

// New returns an Extractor. exclude lists file extensions (with or
// without leading dot, case-insensitive) for which invocation is
// skipped entirely.
func New(binary string, exclude []string, logger *slog.Logger) *Extractor {
	if binary == "" {
		binary = DefaultBinary
	}
	excluded := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		excluded[normalizeExt(e)] = struct{}{}
	}
	return &Extractor{
		binary:   binary,
		excluded: excluded,
		logger:   logger.With(slog.String("component", "exiftool")),
	}
}

// Excluded reports whether files with the given extension are on the
// exclusion list.
func (e *Extractor) Excluded(ext string) bool {
	_, ok := e.excluded[normalizeExt(ext)]
	return ok
}

// Available reports whether the tool exists on PATH. The lookup runs
// once; an absent tool produces exactly one warning for the whole run.
func (e *Extractor) Available() bool {
	e.checkOnce.Do(func() {
		if _, err := exec.LookPath(e.binary); err != nil {
			e.unavailable = true
			e.logger.Warn("metadata tool not found, embedded metadata will be omitted for this run",
				slog.String("binary", e.binary))
		}
	})
	return !e.unavailable
}

// Extract runs the tool against path and returns the flat key/value
// tag map. Returns apperr.ErrToolUnavailable (wrapped) when the binary
// is missing; any other error is a per-file failure.
func (e *Extractor) Extract(ctx context.Context, path string) (map[string]interface{}, error) {
	if !e.Available() {
		return nil, fmt.Errorf("exiftool: %w", apperr.ErrToolUnavailable)
	}

	cmd := exec.CommandContext(ctx, e.binary, "-json", "-n", path)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("exiftool %q: %w", path, err)
	}
	return ParseJSON(out)
}

// ParseJSON converts raw exiftool JSON output (an array with one object
// per source file) into a flat tag map. Exported for testing without a
// real exiftool binary.
func ParseJSON(data []byte) (map[string]interface{}, error) {
	var objects []map[string]interface{}
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, fmt.Errorf("exiftool: parse output: %w", err)
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("exiftool: empty output")
	}
	tags := objects[0]
	delete(tags, "SourceFile")
	return tags, nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
