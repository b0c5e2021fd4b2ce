// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the file is read.
const (
	EnvAPIURL   = "BLOGDECK_API_URL"
	EnvDataDir  = "BLOGDECK_DATA_DIR"
	EnvLogLevel = "BLOGDECK_LOG_LEVEL"
)

// DefaultPath returns ~/.blogdeck/blogdeck.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".blogdeck", "blogdeck.yaml"), nil
}

// Load reads the config at path, creating it with defaults on first run.
//
// # Description
//
// An empty path means DefaultPath. Keys missing from the file keep their
// default values. Environment overrides are applied last, then the result
// is validated.
//
// # Inputs
//
//   - path: Config file location, or "".
//   - notice: Receives the first-run message. May be nil.
//
// # Outputs
//
//   - BlogdeckConfig: The effective configuration.
//   - error: I/O, parse, or ErrInvalidConfig failures.
func Load(path string, notice io.Writer) (BlogdeckConfig, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return BlogdeckConfig{}, err
		}
		path = p
	}

	// create it if it doesn't exist
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if notice != nil {
			fmt.Fprintf(notice, "First run detected, creating the config at %s\n", path)
		}
		if err := createDefault(path); err != nil {
			return BlogdeckConfig{}, err
		}
	}

	return read(path)
}

// Reload reads an existing config file again, without the first-run
// creation. Used when the file changes under a running command.
func Reload(path string) (BlogdeckConfig, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return BlogdeckConfig{}, err
		}
		path = p
	}
	return read(path)
}

func read(path string) (BlogdeckConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BlogdeckConfig{}, fmt.Errorf("failed to read the config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return BlogdeckConfig{}, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return BlogdeckConfig{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *BlogdeckConfig) {
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.Session.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create the config directory %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
