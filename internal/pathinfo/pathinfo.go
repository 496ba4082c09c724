// Package pathinfo normalizes filesystem paths into their canonical
// components and validates extensions against a configured pattern.
package pathinfo

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Info holds the canonical components of a path.
type Info struct {
	Abs  string // absolute, cleaned path
	Dir  string // containing directory (absolute)
	Name string // base name with extension
	Stem string // base name without extension
	Ext  string // extension including the leading dot, "" if none
}

// Resolve normalizes path into its components.
func Resolve(path string) (Info, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Info{}, fmt.Errorf("pathinfo: resolve %s: %w", path, err)
	}
	name := filepath.Base(abs)
	ext := filepath.Ext(name)
	// A leading dot alone (".gitignore") is a hidden name, not an
	// extension.
	if ext == name {
		ext = ""
	}
	return Info{
		Abs:  abs,
		Dir:  filepath.Dir(abs),
		Name: name,
		Stem: strings.TrimSuffix(name, ext),
		Ext:  ext,
	}, nil
}

// ExtValidator classifies extensions against a configured pattern.
type ExtValidator struct {
	re *regexp.Regexp
}

// NewExtValidator compiles pattern. An empty pattern accepts every
// extension.
func NewExtValidator(pattern string) (*ExtValidator, error) {
	if pattern == "" {
		return &ExtValidator{}, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("pathinfo: extension pattern: %w", err)
	}
	return &ExtValidator{re: re}, nil
}

// Valid reports whether ext (including the leading dot) matches the
// configured pattern.
func (v *ExtValidator) Valid(ext string) bool {
	if v.re == nil {
		return true
	}
	return v.re.MatchString(ext)
}
