// Package config is the orchestrator's single configuration surface: one
// Config struct, loaded once at startup and threaded explicitly through
// every component constructor. Nothing reads configuration from a global.
package config

import "time"

// Config is the root configuration for the roadmap orchestrator.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Models     ModelsConfig     `json:"models"`
	Storage    StorageConfig    `json:"storage"`
	Checkpoint CheckpointConfig `json:"checkpoint"`
	Workflow   WorkflowConfig   `json:"workflow"`
	Events     EventsConfig     `json:"events"`
}

// ServerConfig holds the HTTP API listener settings.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// StorageConfig configures the relational store.
type StorageConfig struct {
	Path string `json:"path"` // sqlite file path, or ":memory:" for tests
}

// CheckpointConfig selects and configures the checkpoint backend.
type CheckpointConfig struct {
	Backend       string `json:"backend"`                  // "sqlite" (default; "remote" also selects it) | "file" (or "local")
	Dir           string `json:"dir,omitempty"`            // required when backend == "file"
	EncryptionKey string `json:"encryption_key,omitempty"` // age identity string; ${{ .Env.VAR }} template
}

// WorkflowConfig holds the executor's tunables.
type WorkflowConfig struct {
	MaxActiveTasks      int      `json:"max_active_tasks"`       // global concurrency cap (§5)
	MaxValidationRounds int      `json:"max_validation_rounds"`  // round cap before forced human review (§4.8)
	NodeTimeout         Duration `json:"node_timeout,omitempty"` // per-UnitOfWork default (§4.2)
	ContentConcurrency  int      `json:"content_concurrency"`    // bounded semaphore for concept fan-out (§4.9)
	TimeoutSweep        Duration `json:"timeout_sweep,omitempty"`
}

// ModelsConfig holds model provider configuration, shared by every agent role.
type ModelsConfig struct {
	Default   string                    `json:"default"`
	Providers map[string]ProviderConfig `json:"providers"`
	// Roles maps a workflow role name (e.g. "intent_analysis",
	// "structure_validation") to a provider name. A role absent here falls
	// back to Default, so a single-provider config needs no Roles section
	// at all.
	Roles map[string]string `json:"roles,omitempty"`
}

// ProviderConfig configures a single LLM provider backing one or more agent roles.
type ProviderConfig struct {
	Driver        string         `json:"driver"` // "anthropic" | "claude" | "openai" | "ollama" | "mistral" | "gemini"
	Model         string         `json:"model"`
	BaseURL       string         `json:"base_url,omitempty"`
	Auth          AuthConfig     `json:"auth"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	ContextWindow int            `json:"context_window,omitempty"`
	MaxConcurrent int            `json:"max_concurrent,omitempty"`
	Timeout       Duration       `json:"timeout,omitempty"`
	Options       map[string]any `json:"options,omitempty"`
}

// AuthConfig configures API key resolution for a provider.
type AuthConfig struct {
	APIKey string `json:"api_key,omitempty"` // direct key or ${{ .Env.VAR }} template
	Token  string `json:"token,omitempty"`   // OAuth/Bearer token
}

// EventsConfig holds notification-bus settings.
type EventsConfig struct {
	BufferSize int    `json:"buffer_size"`
	LogLevel   string `json:"log_level"` // "debug" | "info" | "warn" | "error"
}

// Duration wraps time.Duration for JSONC unmarshaling as a Go duration string.
type Duration time.Duration

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
