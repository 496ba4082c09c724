package internal

import (
	"fmt"
	"log/slog"
	"runtime"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/odal/internal/hasher"
	"github.com/starford/odal/internal/sidecar"
)

// Config represents the engine configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Hashing  HashingConfig     `yaml:"hashing"`
	Traverse TraverseConfig    `yaml:"traverse"`
	Sidecars SidecarConfig     `yaml:"sidecars"`
	Exif     ExifConfig        `yaml:"exif"`
	Output   OutputConfig      `yaml:"output"`
	Rename   RenameConfig      `yaml:"rename"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Hashing.Validate(); err != nil {
		return err
	}
	if err := c.Traverse.Validate(); err != nil {
		return err
	}
	if err := c.Sidecars.Validate(); err != nil {
		return err
	}
	return c.Output.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// HashingConfig selects the digest algorithms and the one that forms
// item identities.
type HashingConfig struct {
	// Algorithms always carries the two baselines; a third entry
	// enables an additional digest per item.
	Algorithms []string `yaml:"algorithms"`
	// Identity names the algorithm whose digest becomes the identity.
	Identity string `yaml:"identity"`
	// NormalizeNames applies Unicode NFC to name bytes before hashing,
	// for cross-platform identity stability. Off by default.
	NormalizeNames bool `yaml:"normalize_names"`
}

// Validate validates the hashing configuration.
func (c *HashingConfig) Validate() error {
	known := validation.In(hasher.SHA1, hasher.SHA256, hasher.BLAKE3)
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Algorithms, validation.Required, validation.Length(2, 3), validation.Each(known)),
		validation.Field(&c.Identity, validation.Required, known),
	); err != nil {
		return err
	}
	for _, a := range c.Algorithms {
		if a == c.Identity {
			return nil
		}
	}
	return fmt.Errorf("hashing: identity algorithm %q is not in the active set", c.Identity)
}

// TraverseConfig controls traversal behavior.
type TraverseConfig struct {
	// Recurse descends into subdirectories. The flag is explicit on
	// the traversal entry point so a future depth limit can slot in
	// without changing the call contract.
	Recurse bool `yaml:"recurse"`
	// Workers bounds parallel hashing/extraction of sibling items.
	Workers int `yaml:"workers"`
	// Exclude lists glob patterns (matched against base names) that
	// skip an item entirely.
	Exclude []string `yaml:"exclude"`
	// ExtensionPattern validates file extensions; empty accepts all.
	ExtensionPattern string `yaml:"extension_pattern"`
}

// Validate validates the traversal configuration.
func (c *TraverseConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Min(1), validation.Max(256)),
	)
}

// SidecarConfig carries the ordered classifier table and the consume
// mode switches.
type SidecarConfig struct {
	// Rules is the ordered classifier table; first match wins. Empty
	// falls back to the built-in table.
	Rules []sidecar.Rule `yaml:"rules"`
	// Consume merges sidecars into their parent record and deletes the
	// sidecar files after the tree has been durably written. Requires
	// Output.Path.
	Consume bool `yaml:"consume"`
	// RetainEntries keeps attached sidecars visible in the tree as
	// metadata-only records.
	RetainEntries bool `yaml:"retain_entries"`
}

// Validate validates the sidecar configuration.
func (c *SidecarConfig) Validate() error {
	for _, r := range c.Rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Table returns the configured rule table, or the built-in default.
func (c *SidecarConfig) Table() []sidecar.Rule {
	if len(c.Rules) > 0 {
		return c.Rules
	}
	return sidecar.DefaultRules()
}

// ExifConfig configures the embedded-metadata collaborator.
type ExifConfig struct {
	// Enabled toggles embedded-metadata extraction.
	Enabled bool `yaml:"enabled"`
	// Binary is the executable name or path; default "exiftool".
	Binary string `yaml:"binary"`
	// Exclude lists file extensions for which the tool is never run.
	Exclude []string `yaml:"exclude"`
}

// OutputConfig names the JSON destination for the assembled tree.
// Empty path writes to stdout, which does not count as durable for
// destructive modes.
type OutputConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	return nil
}

// Durable reports whether the destination survives the process, the
// precondition for sidecar consume mode.
func (c *OutputConfig) Durable() bool {
	return c.Path != ""
}

// RenameConfig controls the rename transform.
type RenameConfig struct {
	// Apply performs renames on disk; false computes a dry-run plan.
	Apply bool `yaml:"apply"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Hashing: HashingConfig{
			Algorithms: []string{hasher.SHA1, hasher.SHA256},
			Identity:   hasher.SHA256,
		},
		Traverse: TraverseConfig{
			Recurse:          true,
			Workers:          runtime.NumCPU(),
			ExtensionPattern: `^$|^\.[A-Za-z0-9][A-Za-z0-9_~-]{0,14}$`,
		},
		Exif: ExifConfig{
			Enabled: true,
			Binary:  "exiftool",
			Exclude: []string{"txt", "json", "md", "csv", "log"},
		},
	}
}
