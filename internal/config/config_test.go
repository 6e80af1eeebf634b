package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "dream.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadAbsentFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg != Default() {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := writeConfig(t, `
algorithm: pattern-discovery
target_clusters: 12
batch_size: 25
anonymous_patterns: true
ollama_model: mistral
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Algorithm != "pattern-discovery" || cfg.TargetClusters != 12 || cfg.BatchSize != 25 {
		t.Errorf("Overrides not applied: %+v", cfg)
	}
	if !cfg.AnonymousPatterns || cfg.OllamaModel != "mistral" {
		t.Errorf("Overrides not applied: %+v", cfg)
	}
	// Unset fields keep their defaults
	if cfg.Concurrency != Default().Concurrency || cfg.MaxExemplars != Default().MaxExemplars {
		t.Errorf("Defaults lost: %+v", cfg)
	}
}

func TestLoadClampsInvalidValues(t *testing.T) {
	dir := writeConfig(t, `
target_clusters: 0
batch_size: -5
concurrency: 0
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	def := Default()
	if cfg.TargetClusters != def.TargetClusters || cfg.BatchSize != def.BatchSize || cfg.Concurrency != def.Concurrency {
		t.Errorf("Invalid values not clamped: %+v", cfg)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := writeConfig(t, "algorithm: [unclosed")

	if _, err := Load(dir); err == nil {
		t.Error("Expected parse error")
	}
}
