package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoad_Defaults verifies a workspace without a config file yields the
// built-in defaults with roots anchored at the workspace.
func TestLoad_Defaults(t *testing.T) {
	ws := t.TempDir()

	cfg, err := Load(ws)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if len(cfg.Roots) != 1 || cfg.Roots[0] != filepath.Join(ws, ".") {
		t.Errorf("Roots = %v, want workspace-anchored default", cfg.Roots)
	}
	if cfg.Debounce != 300*time.Millisecond {
		t.Errorf("Debounce = %v, want 300ms", cfg.Debounce)
	}
	if cfg.BatchQuiet != 500*time.Millisecond {
		t.Errorf("BatchQuiet = %v, want 500ms", cfg.BatchQuiet)
	}
	if cfg.CacheSize != 1000 {
		t.Errorf("CacheSize = %d, want 1000", cfg.CacheSize)
	}
}

// TestLoad_ConfigFile verifies .planboard.yaml values override defaults.
func TestLoad_ConfigFile(t *testing.T) {
	ws := t.TempDir()
	yaml := "roots:\n  - plans\n  - docs/items\ndebounce: 1s\ncache_size: 50\nfeed_port: 9000\nlog_file: planboard.log\n"
	if err := os.WriteFile(filepath.Join(ws, ".planboard.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(ws)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	want := []string{filepath.Join(ws, "plans"), filepath.Join(ws, "docs", "items")}
	if len(cfg.Roots) != 2 || cfg.Roots[0] != want[0] || cfg.Roots[1] != want[1] {
		t.Errorf("Roots = %v, want %v", cfg.Roots, want)
	}
	if cfg.Debounce != time.Second {
		t.Errorf("Debounce = %v, want 1s", cfg.Debounce)
	}
	if cfg.CacheSize != 50 {
		t.Errorf("CacheSize = %d, want 50", cfg.CacheSize)
	}
	if cfg.FeedPort != 9000 {
		t.Errorf("FeedPort = %d, want 9000", cfg.FeedPort)
	}
	if cfg.LogFile != filepath.Join(ws, "planboard.log") {
		t.Errorf("LogFile = %q, want workspace-anchored", cfg.LogFile)
	}
}

// TestLoad_EnvOverride verifies PLANBOARD_* variables beat the config file.
func TestLoad_EnvOverride(t *testing.T) {
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, ".planboard.yaml"), []byte("cache_size: 50\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("PLANBOARD_CACHE_SIZE", "25")

	cfg, err := Load(ws)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.CacheSize != 25 {
		t.Errorf("CacheSize = %d, want env override 25", cfg.CacheSize)
	}
}

// TestLoad_MalformedFile verifies unparsable config is reported.
func TestLoad_MalformedFile(t *testing.T) {
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, ".planboard.yaml"), []byte("roots: [\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(ws); err == nil {
		t.Error("Load() should fail on malformed yaml")
	}
}

// TestLoad_AbsolutePathsUntouched verifies absolute roots are not re-anchored.
func TestLoad_AbsolutePathsUntouched(t *testing.T) {
	ws := t.TempDir()
	other := t.TempDir()
	yaml := "roots:\n  - " + other + "\n"
	if err := os.WriteFile(filepath.Join(ws, ".planboard.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(ws)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(cfg.Roots) != 1 || cfg.Roots[0] != other {
		t.Errorf("Roots = %v, want [%s]", cfg.Roots, other)
	}
}
