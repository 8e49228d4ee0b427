package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SourceMaxChars != DefaultConfig().SourceMaxChars {
		t.Fatalf("SourceMaxChars = %d, want %d", cfg.SourceMaxChars, DefaultConfig().SourceMaxChars)
	}
	if cfg.CDNStylesheet != DefaultCDNStylesheet {
		t.Fatalf("CDNStylesheet = %q, want default", cfg.CDNStylesheet)
	}
	if cfg.Mirror.Enabled() {
		t.Fatal("mirror should be disabled by default")
	}
}

func TestLoad_OverridesFromJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"source_max_chars": 500, "port": 9000}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SourceMaxChars != 500 {
		t.Fatalf("SourceMaxChars = %d, want %d", cfg.SourceMaxChars, 500)
	}
	if cfg.Port != 9000 {
		t.Fatalf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.Bind != "127.0.0.1" {
		t.Fatalf("Bind = %q, want default", cfg.Bind)
	}
}

func TestLoad_YAMLTakesPrecedence(t *testing.T) {
	tmpDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(`{"port": 9000}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	yamlConfig := `
port: 9100
log_level: debug
disabled_tools:
  - artifact_publish
mirror:
  bucket: experiments
  region: eu-west-1
  prefix: published
`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte(yamlConfig), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if len(cfg.DisabledTools) != 1 || cfg.DisabledTools[0] != "artifact_publish" {
		t.Errorf("DisabledTools = %v", cfg.DisabledTools)
	}
	if !cfg.Mirror.Enabled() || cfg.Mirror.Bucket != "experiments" || cfg.Mirror.Prefix != "published" {
		t.Errorf("Mirror = %+v", cfg.Mirror)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("port: [unterminated"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestMerge_OverlayWins(t *testing.T) {
	base := DefaultConfig()
	base.DisabledTools = []string{"artifact_list"}
	overlay := &Config{
		SourceMaxChars: 42,
		DisabledTools:  []string{" artifact_list ", "artifact_publish"},
	}

	result := Merge(base, overlay)

	if result.SourceMaxChars != 42 {
		t.Errorf("SourceMaxChars = %d, want 42", result.SourceMaxChars)
	}
	if result.Port != base.Port {
		t.Errorf("Port = %d, want %d", result.Port, base.Port)
	}
	if len(result.DisabledTools) != 2 {
		t.Errorf("DisabledTools = %v, want 2 deduplicated entries", result.DisabledTools)
	}
}

func TestMerge_EmptySlicesStayNil(t *testing.T) {
	result := Merge(&Config{}, &Config{DisabledTypes: []string{"  "}})
	if result.DisabledTypes != nil {
		t.Errorf("DisabledTypes = %v, want nil", result.DisabledTypes)
	}
}
