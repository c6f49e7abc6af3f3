// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the engine configuration.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the engine configuration.
type Config struct {
	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// Storage configures version tree persistence.
	Storage StorageConfig `yaml:"storage"`

	// Differ configures diff behavior.
	Differ DifferConfig `yaml:"differ"`

	// Execute configures plan execution.
	Execute ExecuteConfig `yaml:"execute"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Dir is the log directory, empty for stderr only.
	Dir string `yaml:"dir"`

	// JSON switches file output to JSON lines.
	JSON bool `yaml:"json"`
}

// StorageConfig configures version tree persistence.
type StorageConfig struct {
	// Backend selects the store: memory or badger.
	Backend string `yaml:"backend" validate:"oneof=memory badger"`

	// Path is the badger directory. Required for the badger backend.
	Path string `yaml:"path" validate:"required_if=Backend badger"`
}

// DifferConfig configures diff behavior.
type DifferConfig struct {
	// CacheSize bounds the memoized diff results.
	CacheSize int `yaml:"cache_size" validate:"min=1"`

	// Semantic enables symbol extraction and scoring by default.
	Semantic bool `yaml:"semantic"`
}

// ExecuteConfig configures plan execution.
type ExecuteConfig struct {
	// MediumChangeThreshold is the change count that raises plan risk
	// to medium.
	MediumChangeThreshold int `yaml:"medium_change_threshold" validate:"min=1"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Storage: StorageConfig{Backend: "memory"},
		Differ:  DifferConfig{CacheSize: 256, Semantic: true},
		Execute: ExecuteConfig{MediumChangeThreshold: 10},
	}
}

// Load reads a YAML configuration file over the defaults.
//
// # Inputs
//
//   - path: The configuration file path.
//
// # Outputs
//
//   - Config: Defaults overlaid with the file's values.
//   - error: Non-nil if the file is unreadable, malformed, or fails
//     validation.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the struct-tag constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
