package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// configFileName is looked up from the working directory upward, so commands
// run from anywhere inside a project find the same settings.
const configFileName = "taproot.yaml"

// Config is the optional project file. Every field may be empty; CLI flags
// override anything set here.
type Config struct {
	// SourceRoot is the directory module names derive from, relative to the
	// config file when not absolute.
	SourceRoot string `yaml:"source_root"`

	// Include lists the paths to scan under the source root.
	Include []string `yaml:"include"`

	// Prefixes lists the dotted module prefixes treated as project-internal.
	Prefixes []string `yaml:"prefixes"`

	// DB overrides the database location, relative to the config file when
	// not absolute.
	DB string `yaml:"db"`
}

// findConfig walks up from startDir looking for taproot.yaml. It returns the
// parsed config and the directory containing it, or (nil, "") when no config
// file exists anywhere above startDir.
func findConfig(startDir string) (*Config, string, error) {
	dir := startDir
	for {
		path := filepath.Join(dir, configFileName)
		if _, err := os.Stat(path); err == nil {
			cfg, err := loadConfig(path)
			if err != nil {
				return nil, "", err
			}
			return cfg, dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, "", nil
		}
		dir = parent
	}
}

// loadConfig strictly decodes one config file; unknown keys are an error so
// typos don't silently disable settings.
func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// An empty config file is a valid all-defaults config.
			return &Config{}, nil
		}
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// resolveUnder makes path absolute, anchoring it under base when relative.
func resolveUnder(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
