// Package config loads the dreaming configuration from the state directory.
// Thresholds baked into the algorithms (dominance share, minimum splittable
// cluster size) are deliberate constants, not config; this file covers the
// operational knobs.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the operational knobs of a dreaming run
type Config struct {
	// Clustering
	Algorithm      string `yaml:"algorithm"`       // family name or versioned id
	TargetClusters int    `yaml:"target_clusters"` // requested cluster count
	BatchSize      int    `yaml:"batch_size"`      // categorization batch size
	Concurrency    int    `yaml:"concurrency"`     // simultaneous categorization batches
	Hybrid         bool   `yaml:"hybrid"`          // keyword pre-match before model calls

	// Output policies
	AnonymousPatterns bool `yaml:"anonymous_patterns"`
	CompactEncoding   bool `yaml:"compact_encoding"`

	// Synthesis
	MaxExemplars int `yaml:"max_exemplars"` // exemplars per cluster in synthesis prompts

	// Reasoning service
	OllamaURL   string `yaml:"ollama_url"`
	OllamaModel string `yaml:"ollama_model"`
}

// Default returns the documented defaults
func Default() Config {
	return Config{
		Algorithm:      "keyword-signature",
		TargetClusters: 8,
		BatchSize:      50,
		Concurrency:    3,
		Hybrid:         true,
		MaxExemplars:   5,
		OllamaURL:      "http://localhost:11434",
		OllamaModel:    "llama3.2",
	}
}

// Load reads dream.yaml from the state directory, falling back to defaults
// when the file is absent. Unset fields keep their defaults.
func Load(statePath string) (Config, error) {
	cfg := Default()

	path := filepath.Join(statePath, "dream.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.TargetClusters < 1 {
		cfg.TargetClusters = Default().TargetClusters
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = Default().BatchSize
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = Default().Concurrency
	}
	return cfg, nil
}
