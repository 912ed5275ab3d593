// Package config loads, validates and describes the YAML mirror job
// configuration. A config names exactly one source/destination pair plus the
// exclusion filters applied when planning.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"pathworks.io/netmirror/pkg/exclusion"
	"pathworks.io/netmirror/pkg/lockfile"
	"pathworks.io/netmirror/pkg/plog"
	"pathworks.io/netmirror/pkg/runmeta"
	"pathworks.io/netmirror/pkg/util"
)

// Error marks a failure to load or validate the configuration. The CLI maps
// it to its own exit code so scripts can tell bad config from a failed run.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return "config: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Excludes holds the four independent exclusion filter lists.
type Excludes struct {
	// RootDirs are directory names pruned only when they sit directly under
	// the source root.
	RootDirs []string `yaml:"root_dirs"`
	// RecursiveDirs are directory names pruned at any depth.
	RecursiveDirs []string `yaml:"recursive_dirs"`
	// FilePatterns are case-insensitive glob patterns matched against bare
	// file names.
	FilePatterns []string `yaml:"file_patterns"`
	// SpecificPaths are source-root-relative directory paths whose whole
	// subtree is pruned.
	SpecificPaths []string `yaml:"specific_paths"`
}

// Config is the complete mirror job configuration.
type Config struct {
	SourceDir string   `yaml:"source_dir"`
	DestDir   string   `yaml:"dest_dir"`
	Excludes  Excludes `yaml:"excludes"`

	// ModTimeWindowSeconds is the tolerance applied when comparing file
	// modification times. Network filesystems round mtimes, so an exact
	// comparison would flag unchanged files forever.
	ModTimeWindowSeconds int `yaml:"mod_time_window_seconds"`

	// PreserveMtime controls whether copies carry the source modification
	// time. Disabling it makes every future comparison fall back to size
	// only in practice, so it defaults to on.
	PreserveMtime bool `yaml:"preserve_mtime"`

	// BufferSizeKB is the copy buffer size in KiB.
	BufferSizeKB int `yaml:"buffer_size_kb"`
}

// NewDefault returns a Config populated with default values. Loading decodes
// on top of it so omitted keys keep their defaults.
func NewDefault() *Config {
	return &Config{
		ModTimeWindowSeconds: 2,
		PreserveMtime:        true,
		BufferSizeKB:         256,
	}
}

// Load reads and validates a config file. Any failure is returned as *Error.
func Load(path string) (*Config, error) {
	expandedPath, err := util.ExpandPath(path)
	if err != nil {
		return nil, &Error{Err: err}
	}

	f, err := os.Open(expandedPath)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("could not open config file %s: %w", expandedPath, err)}
	}
	defer f.Close()

	cfg := NewDefault()
	decoder := yaml.NewDecoder(f)
	// Unknown keys are almost always typos of known ones. Reject them.
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, &Error{Err: fmt.Errorf("could not parse config file %s: %w", expandedPath, err)}
	}

	if err := cfg.validate(); err != nil {
		return nil, &Error{Err: err}
	}

	return cfg, nil
}

// validate normalizes paths and rejects configurations the planner cannot
// act on.
func (c *Config) validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("source_dir is required")
	}
	if c.DestDir == "" {
		return fmt.Errorf("dest_dir is required")
	}

	src, err := util.ExpandPath(c.SourceDir)
	if err != nil {
		return fmt.Errorf("invalid source_dir: %w", err)
	}
	dst, err := util.ExpandPath(c.DestDir)
	if err != nil {
		return fmt.Errorf("invalid dest_dir: %w", err)
	}
	c.SourceDir = filepath.Clean(src)
	c.DestDir = filepath.Clean(dst)

	if c.ModTimeWindowSeconds < 0 {
		return fmt.Errorf("mod_time_window_seconds must not be negative, got %d", c.ModTimeWindowSeconds)
	}
	if c.BufferSizeKB <= 0 {
		return fmt.Errorf("buffer_size_kb must be positive, got %d", c.BufferSizeKB)
	}

	if err := exclusion.ValidatePatterns(c.Excludes.FilePatterns); err != nil {
		return err
	}

	return nil
}

// Rules builds the exclusion rule set for this job, including the tool's own
// bookkeeping files which must never be mirrored back.
func (c *Config) Rules() exclusion.Rules {
	return exclusion.NewRules(
		c.Excludes.RootDirs,
		c.Excludes.RecursiveDirs,
		c.Excludes.SpecificPaths,
		c.ExcludeFilePatterns(),
	)
}

// ExcludeFilePatterns returns the configured file patterns merged with the
// patterns for files the tool itself creates in the destination.
func (c *Config) ExcludeFilePatterns() []string {
	systemPatterns := []string{lockfile.LockFileName, runmeta.MetaFileName}
	return util.MergeAndDeduplicate(c.Excludes.FilePatterns, systemPatterns)
}

// ModTimeWindow returns the mtime comparison tolerance as a duration.
func (c *Config) ModTimeWindow() time.Duration {
	return time.Duration(c.ModTimeWindowSeconds) * time.Second
}

// LogSummary prints the effective configuration at the start of a run.
func (c *Config) LogSummary() {
	plog.Info("Configuration loaded",
		"source", c.SourceDir,
		"destination", c.DestDir,
		"modTimeWindow", c.ModTimeWindow(),
		"preserveMtime", c.PreserveMtime,
	)
	plog.Debug("Exclusion filters",
		"rootDirs", c.Excludes.RootDirs,
		"recursiveDirs", c.Excludes.RecursiveDirs,
		"filePatterns", c.ExcludeFilePatterns(),
		"specificPaths", c.Excludes.SpecificPaths,
	)
}

// sampleConfig is written by the init command as a starting point.
const sampleConfig = `# netmirror job configuration.
# One-way mirror: files flow from source_dir to dest_dir, never back.

source_dir: "/path/to/source"
dest_dir: "/path/to/destination"

excludes:
  # Directory names pruned only directly under the source root.
  root_dirs:
    - "temp"
  # Directory names pruned at any depth.
  recursive_dirs:
    - ".git"
    - "__pycache__"
  # Case-insensitive glob patterns matched against bare file names.
  file_patterns:
    - "*.tmp"
    - "Thumbs.db"
  # Source-relative directory paths whose whole subtree is pruned.
  specific_paths:
    - "scripts/output"

# Tolerance in seconds when comparing modification times. Network shares
# often round mtimes, so keep this at 2 unless you know better.
mod_time_window_seconds: 2

# Carry the source modification time onto copies (recommended).
preserve_mtime: true

# Copy buffer size in KiB.
buffer_size_kb: 256
`

// Generate writes a commented sample config file. It refuses to overwrite an
// existing file unless force is set.
func Generate(path string, force bool) error {
	expandedPath, err := util.ExpandPath(path)
	if err != nil {
		return &Error{Err: err}
	}

	if !force {
		if _, err := os.Stat(expandedPath); err == nil {
			return &Error{Err: fmt.Errorf("config file %s already exists (use -force to overwrite)", expandedPath)}
		}
	}

	if err := os.WriteFile(expandedPath, []byte(sampleConfig), util.UserWritableFilePerms); err != nil {
		return &Error{Err: fmt.Errorf("could not write config file %s: %w", expandedPath, err)}
	}

	plog.Info("Wrote sample configuration", "path", expandedPath)
	return nil
}
