package internal

import (
	"github.com/starford/odal/internal/indexer"
	"github.com/starford/odal/internal/output"
)

// Mode selects what Run does with the assembled tree.
type Mode string

const (
	ModeIndex  Mode = "index"
	ModeRename Mode = "rename"
	ModeWatch  Mode = "watch"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	target   string
	mode     Mode
	writer   output.Writer
	progress indexer.Progress
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithTarget sets the file or directory to index.
func WithTarget(path string) Option {
	return func(a *application) {
		a.target = path
	}
}

// WithMode selects the run mode.
func WithMode(m Mode) Option {
	return func(a *application) {
		a.mode = m
	}
}

// WithWriter overrides the output destination (used by tests).
func WithWriter(w output.Writer) Option {
	return func(a *application) {
		a.writer = w
	}
}

// WithProgress installs a progress collaborator.
func WithProgress(p indexer.Progress) Option {
	return func(a *application) {
		a.progress = p
	}
}
