package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultConfig verifies that DefaultConfig returns sensible defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != ModeFull {
		t.Errorf("expected mode %s, got %s", ModeFull, cfg.Mode)
	}
	if cfg.Records.Suffix != ".jdbg" {
		t.Errorf("expected record suffix '.jdbg', got %s", cfg.Records.Suffix)
	}
	if !cfg.Records.Watch {
		t.Error("expected record watching to be enabled by default")
	}
	if cfg.Adapter.Address == "" {
		t.Error("expected a default adapter address")
	}
	if cfg.Adapter.AttachTimeout != 30*time.Second {
		t.Errorf("expected AttachTimeout 30s, got %v", cfg.Adapter.AttachTimeout)
	}
}

// TestLoadConfig_EmptyPath verifies that empty path returns defaults.
func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mode != ModeFull {
		t.Errorf("expected default mode, got %s", cfg.Mode)
	}
}

// TestLoadConfig_File verifies that file values override defaults while
// unset fields keep their defaults.
func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"mode": "readonly", "records": {"root": "/srv/build"}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mode != ModeReadOnly {
		t.Errorf("expected readonly mode, got %s", cfg.Mode)
	}
	if cfg.Records.Root != "/srv/build" {
		t.Errorf("expected records root '/srv/build', got %s", cfg.Records.Root)
	}
	if cfg.Adapter.Address == "" {
		t.Error("expected default adapter address to survive partial config")
	}
}

// TestLoadConfig_MissingFile verifies that a bad path is an error.
func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing config file")
	}
}

// TestCanUseControlTools verifies mode gating.
func TestCanUseControlTools(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.CanUseControlTools() {
		t.Error("full mode should enable control tools")
	}
	cfg.Mode = ModeReadOnly
	if cfg.CanUseControlTools() {
		t.Error("readonly mode should disable control tools")
	}
}
