// Package config loads the engine's storage and runtime options from a
// YAML file, the one ambient concern spec.md leaves file-configurable:
// schema registration stays programmatic Go (schema.Entity values built
// by the caller), but where the engine keeps its data, whether it runs
// in-memory, and how it behaves when an index points at a row that is no
// longer there are read from disk the way dynamodb/cmd/ddb/config.go
// reads its ddb.ui.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// MissingRowPolicy mirrors executor.MissingRowPolicy's two variants
// without importing internal/executor, so internal/config stays a leaf
// package the way internal/metrics does; engine wires the two together.
type MissingRowPolicy string

const (
	MissingRowIgnore MissingRowPolicy = "ignore"
	MissingRowError  MissingRowPolicy = "error"
)

// EngineOptions is the engine's file-configurable surface.
type EngineOptions struct {
	// DataDir is where badger stores its data. Ignored when InMemory is
	// true.
	DataDir string `yaml:"dataDir"`

	// InMemory runs badger against an in-memory filesystem, the mode
	// every _test.go file in this module uses.
	InMemory bool `yaml:"inMemory"`

	// ValueLogFileSize and MemTableSize cap badger's on-disk footprint;
	// zero means badger's own defaults.
	ValueLogFileSize int64 `yaml:"valueLogFileSize"`
	MemTableSize     int64 `yaml:"memTableSize"`

	// DefaultMissingRowPolicy governs aggregate and scan behavior when a
	// posting resolves to a primary key with no backing row (spec.md's
	// "stale index entry" case), absent a call-site override.
	DefaultMissingRowPolicy MissingRowPolicy `yaml:"defaultMissingRowPolicy"`
}

// Default returns the options the engine runs with when no config file
// is found: in-memory storage and the conservative Error policy, so a
// stale posting surfaces as a loud Corruption rather than being silently
// skipped until a caller opts into Ignore.
func Default() EngineOptions {
	return EngineOptions{
		InMemory:                true,
		DefaultMissingRowPolicy: MissingRowError,
	}
}

// Load reads and parses the YAML file at path into EngineOptions,
// layered over Default() so a partial file only overrides the fields it
// sets. A missing file is not an error: it returns Default() unchanged,
// matching LoadUIConfig's "absent config is a valid config" behavior.
func Load(path string) (EngineOptions, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Discover walks up from the current working directory looking for
// filename, the way findUIConfigFile walks up from cwd looking for
// ddb.ui.yaml, and loads it if found. Returns Default() if no file is
// found anywhere between cwd and the filesystem root.
func Discover(filename string) (EngineOptions, error) {
	path, err := findConfigFile(filename)
	if err != nil {
		return EngineOptions{}, err
	}
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

func findConfigFile(filename string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("config: getwd: %w", err)
	}

	for {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
