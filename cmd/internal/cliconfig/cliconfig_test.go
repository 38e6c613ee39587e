package cliconfig

import (
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("buffer_size: 50\n"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BufferSize != 50 {
		t.Errorf("expected buffer_size 50, got %d", cfg.BufferSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &testConfig{}); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

