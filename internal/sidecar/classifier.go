package sidecar

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/odal/internal/models"
	"github.com/starford/odal/internal/stamps"
)

// Match is one sidecar filename that matched a rule for a parent item.
type Match struct {
	Rule Rule
	Name string // sidecar base name
}

// Classifier matches candidate filenames against the rule table and
// parses matched sidecars. It holds no mutable state and is safe for
// concurrent use.
type Classifier struct {
	rules  []Rule
	logger *slog.Logger
}

// NewClassifier validates the table and returns a Classifier. The table
// is injected configuration, never package state.
func NewClassifier(rules []Rule, logger *slog.Logger) (*Classifier, error) {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	return &Classifier{
		rules:  append([]Rule(nil), rules...),
		logger: logger.With(slog.String("component", "sidecar")),
	}, nil
}

// Classify returns the first rule matching candidate for a parent of
// the given kind and stem, or false when no rule matches.
func (c *Classifier) Classify(candidate string, parentKind models.Kind, parentStem string) (Rule, bool) {
	for _, r := range c.rules {
		if r.ParentKind != string(parentKind) {
			continue
		}
		re, err := r.compile(parentStem)
		if err != nil {
			// Validated at construction; a failure here means the
			// stem produced a pathological expansion. Skip the rule.
			continue
		}
		if re.MatchString(candidate) {
			return r, true
		}
	}
	return Rule{}, false
}

// FindAll scans a directory listing for sidecars of the parent item.
// First match wins per filename; the parent's own name never matches
// itself.
func (c *Classifier) FindAll(listing []string, parentName string, parentKind models.Kind, parentStem string) []Match {
	var out []Match
	for _, name := range listing {
		if name == parentName {
			continue
		}
		if rule, ok := c.Classify(name, parentKind, parentStem); ok {
			out = append(out, Match{Rule: rule, Name: name})
		}
	}
	return out
}

// Attach parses a matched sidecar in dir and returns the metadata
// entry for the parent record. A parse failure degrades the entry to a
// nil payload; it never fails the parent item. The second return value
// reports whether the payload is intact.
func (c *Classifier) Attach(dir string, m Match) (models.MetadataEntry, bool) {
	path := filepath.Join(dir, m.Name)
	entry := models.MetadataEntry{
		Origin: models.OriginSidecar,
		Source: m.Rule.TypeName,
	}

	if info, err := os.Lstat(path); err == nil {
		entry.Provenance = &models.Provenance{
			Path:       path,
			Size:       info.Size(),
			Timestamps: stamps.FromInfo(info),
		}
	}

	payload, err := parsePayload(path, m.Rule.Format)
	if err != nil {
		c.logger.Warn("sidecar parse failed",
			slog.String("path", path),
			slog.String("type", m.Rule.TypeName),
			slog.String("error", err.Error()))
		return entry, false
	}
	entry.Payload = payload
	return entry, true
}

