package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigDir_Default(t *testing.T) {
	t.Setenv("ROADMAP_ORCHESTRATOR_PATH", "")

	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatal(err)
	}

	got := ConfigDir()
	want := filepath.Join(home, ".roadmap-orchestrator")
	if got != want {
		t.Errorf("ConfigDir() = %q, want %q", got, want)
	}
}

func TestConfigDir_EnvOverride(t *testing.T) {
	t.Setenv("ROADMAP_ORCHESTRATOR_PATH", "/tmp/custom-orchestrator")

	got := ConfigDir()
	want := "/tmp/custom-orchestrator"
	if got != want {
		t.Errorf("ConfigDir() = %q, want %q", got, want)
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv("ROADMAP_ORCHESTRATOR_PATH", "/tmp/test-orchestrator")

	got := ConfigPath()
	want := "/tmp/test-orchestrator/config.jsonc"
	if got != want {
		t.Errorf("ConfigPath() = %q, want %q", got, want)
	}
}
