package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/marcozac/go-jsonc"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, strips comments, expands
// ${{ .Env.VAR }} templates, unmarshals it into Config, and applies
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := expandEnvTemplates(string(data))

	var cfg Config
	if err := jsonc.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 18421
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(ConfigDir(), "orchestrator.db")
	}
	if cfg.Checkpoint.Backend == "" {
		cfg.Checkpoint.Backend = "sqlite"
	}
	if cfg.Workflow.MaxActiveTasks == 0 {
		cfg.Workflow.MaxActiveTasks = 8
	}
	if cfg.Workflow.MaxValidationRounds == 0 {
		cfg.Workflow.MaxValidationRounds = 3
	}
	if cfg.Workflow.NodeTimeout == 0 {
		cfg.Workflow.NodeTimeout = Duration(30 * time.Second)
	}
	if cfg.Workflow.ContentConcurrency == 0 {
		cfg.Workflow.ContentConcurrency = 4
	}
	if cfg.Workflow.TimeoutSweep == 0 {
		cfg.Workflow.TimeoutSweep = Duration(60 * time.Second)
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}
	if cfg.Events.LogLevel == "" {
		cfg.Events.LogLevel = "info"
	}
	for name, p := range cfg.Models.Providers {
		if p.MaxConcurrent <= 0 {
			p.MaxConcurrent = 1
			cfg.Models.Providers[name] = p
		}
	}
}
