// Package voltconfig resolves the default CAS root and concurrency knobs:
// built-in defaults first, then an optional on-disk override file layered
// on top.
package voltconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

const (
	// StoreDirName is the directory under $HOME that holds the CAS and
	// the optional config override.
	StoreDirName = ".volt"

	defaultMaxInFlightPackages = 32
)

// Config holds the knobs that control where the CAS lives and how much
// concurrency an install is allowed to use. Resolved from built-in
// defaults plus an optional YAML file at ~/.volt/config.yaml.
type Config struct {
	// CASRoot is the directory that holds the blob store and file maps.
	// Distinct from the per-project install root passed to Install.
	CASRoot string `yaml:"cas_root"`

	// MaxInFlightPackages bounds concurrent per-package pipelines.
	MaxInFlightPackages int `yaml:"max_in_flight_packages"`

	// MaxBlockingWorkers bounds the goroutines each package's
	// materialization uses. The bound is per package, not shared across
	// packages, and decompression, hashing, and tar parsing are not
	// bounded by it. Defaults to runtime.NumCPU().
	MaxBlockingWorkers int `yaml:"max_blocking_workers"`
}

// Default returns the configuration in effect absent any override file:
// CASRoot under $HOME (or its OS equivalent) and CPU-scaled concurrency
// defaults.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}

	return Config{
		CASRoot:             filepath.Join(home, StoreDirName),
		MaxInFlightPackages: defaultMaxInFlightPackages,
		MaxBlockingWorkers:  runtime.NumCPU(),
	}, nil
}

// Load returns Default(), then overlays ~/.volt/config.yaml if present.
// A missing override file is not an error; a malformed one is.
func Load() (Config, error) {
	cfg, err := Default()
	if err != nil {
		return Config{}, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, nil
	}

	overridePath := filepath.Join(home, StoreDirName, "config.yaml")
	data, err := os.ReadFile(overridePath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read %s: %w", overridePath, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", overridePath, err)
	}

	if cfg.MaxInFlightPackages <= 0 {
		cfg.MaxInFlightPackages = defaultMaxInFlightPackages
	}
	if cfg.MaxBlockingWorkers <= 0 {
		cfg.MaxBlockingWorkers = runtime.NumCPU()
	}

	return cfg, nil
}
