package config

import (
	"os"
	"path/filepath"
)

// ConfigDir returns the root directory for orchestrator data. It uses
// $ROADMAP_ORCHESTRATOR_PATH if set, otherwise defaults to ~/.roadmap-orchestrator.
func ConfigDir() string {
	if v := os.Getenv("ROADMAP_ORCHESTRATOR_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".roadmap-orchestrator")
	}
	return filepath.Join(home, ".roadmap-orchestrator")
}

// ConfigPath returns the path to the orchestrator's config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.jsonc")
}
