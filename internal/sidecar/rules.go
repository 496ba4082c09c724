// Package sidecar discovers and parses external metadata files that
// accompany an indexed item, driven by an ordered, injected rule table.
package sidecar

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/odal/internal/models"
)

// Content formats a rule can dispatch to.
const (
	FormatJSON     = "json"
	FormatText     = "text"
	FormatHashList = "hash-list"
	FormatBinary   = "binary"
	FormatLink     = "link"
	FormatSubtitle = "subtitle"
)

// basePlaceholder marks where the parent item's stem is substituted
// into a rule pattern before compilation.
const basePlaceholder = "{base}"

// Rule is one row of the classifier table. Pattern is a filename regex
// in which {base} expands to the regexp-quoted stem of the parent item.
// Rules are evaluated in table order; the first match wins.
type Rule struct {
	TypeName   string `yaml:"type"`
	Pattern    string `yaml:"pattern"`
	ParentKind string `yaml:"parent_kind"` // "file" or "directory"
	Format     string `yaml:"format"`
}

// Validate checks that the rule is well-formed and its pattern
// compiles.
func (r Rule) Validate() error {
	if r.TypeName == "" {
		return fmt.Errorf("sidecar: rule with empty type name")
	}
	switch r.ParentKind {
	case string(models.KindFile), string(models.KindDirectory):
	default:
		return fmt.Errorf("sidecar: rule %s: parent kind %q", r.TypeName, r.ParentKind)
	}
	switch r.Format {
	case FormatJSON, FormatText, FormatHashList, FormatBinary, FormatLink, FormatSubtitle:
	default:
		return fmt.Errorf("sidecar: rule %s: format %q", r.TypeName, r.Format)
	}
	if _, err := r.compile("probe"); err != nil {
		return fmt.Errorf("sidecar: rule %s: %w", r.TypeName, err)
	}
	return nil
}

func (r Rule) compile(stem string) (*regexp.Regexp, error) {
	expanded := strings.ReplaceAll(r.Pattern, basePlaceholder, regexp.QuoteMeta(stem))
	return regexp.Compile(expanded)
}

// langAlt is a broad alternation of ISO 639-1/639-2 language tags,
// optionally region-qualified (en, eng, en-US, pt-BR, ...), used by the
// default subtitle rule to match locale-coded filenames.
const langAlt = `(?:en|eng|de|deu|ger|fr|fra|fre|es|spa|it|ita|pt|por|nl|nld|dut|pl|pol|ru|rus|ja|jpn|zh|chi|zho|ko|kor|sv|swe|no|nor|da|dan|fi|fin|cs|ces|cze|hu|hun|tr|tur|ar|ara|he|heb|el|ell|gre|th|tha|vi|vie|id|ind|uk|ukr|ro|ron|rum)(?:[-_][A-Za-z]{2,4})?`

// DefaultRules is the classifier table used when the configuration
// does not supply one. Order matters: more specific rules (hash lists,
// JSON metadata) come before catch-all text so a thumbnail or hash file
// is never misread as JSON metadata.
func DefaultRules() []Rule {
	return []Rule{
		{
			TypeName:   "Hash",
			Pattern:    `(?i)^{base}(?:\.[A-Za-z0-9]+)?\.(?:md5|sha1|sha256|sha512|blake3|sfv)$`,
			ParentKind: "file",
			Format:     FormatHashList,
		},
		{
			TypeName:   "JsonMetadata",
			Pattern:    `(?i)^{base}(?:\.[A-Za-z0-9]+)?(?:[._-]meta(?:data)?)?\.json$`,
			ParentKind: "file",
			Format:     FormatJSON,
		},
		{
			TypeName:   "Subtitles",
			Pattern:    `(?i)^{base}(?:\.` + langAlt + `)?\.(?:srt|sub|ass|ssa|vtt)$`,
			ParentKind: "file",
			Format:     FormatSubtitle,
		},
		{
			TypeName:   "Thumbnail",
			Pattern:    `(?i)^{base}(?:[._-](?:thumb|thumbnail|cover|poster))\.(?:jpg|jpeg|png|gif|webp)$`,
			ParentKind: "file",
			Format:     FormatBinary,
		},
		{
			TypeName:   "Description",
			Pattern:    `(?i)^{base}\.(?:txt|nfo|description)$`,
			ParentKind: "file",
			Format:     FormatText,
		},
		{
			TypeName:   "Link",
			Pattern:    `(?i)^{base}\.(?:lnk|url|webloc)$`,
			ParentKind: "file",
			Format:     FormatLink,
		},
		{
			TypeName:   "JsonMetadata",
			Pattern:    `(?i)^(?:metadata|info)\.json$`,
			ParentKind: "directory",
			Format:     FormatJSON,
		},
		{
			TypeName:   "Thumbnail",
			Pattern:    `(?i)^(?:folder|cover|poster)\.(?:jpg|jpeg|png|gif|webp)$`,
			ParentKind: "directory",
			Format:     FormatBinary,
		},
		{
			TypeName:   "Description",
			Pattern:    `(?i)^(?:\.?description|readme)\.txt$`,
			ParentKind: "directory",
			Format:     FormatText,
		},
	}
}
