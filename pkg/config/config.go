package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the process-wide configuration document. Values come from an
// optional JSON file and are overridden by QUESTMIND_* environment variables.
type Config struct {
	Workspace string         `json:"workspace" env:"QUESTMIND_WORKSPACE"`
	Provider  ProviderConfig `json:"provider"`
	Persona   PersonaConfig  `json:"persona"`
	Log       LogConfig      `json:"log"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" env:"QUESTMIND_PROVIDER_API_KEY"`
	APIBase string `json:"api_base" env:"QUESTMIND_PROVIDER_API_BASE"`
	Model   string `json:"model" env:"QUESTMIND_PROVIDER_MODEL"`
	Proxy   string `json:"proxy,omitempty" env:"QUESTMIND_PROVIDER_PROXY"`
}

type PersonaConfig struct {
	SessionWindow   int    `json:"session_window" env:"QUESTMIND_PERSONA_SESSION_WINDOW"`
	CachedUsers     int    `json:"cached_users" env:"QUESTMIND_PERSONA_CACHED_USERS"`
	LogCap          int    `json:"log_cap" env:"QUESTMIND_PERSONA_LOG_CAP"`
	PersistInterval int    `json:"persist_interval" env:"QUESTMIND_PERSONA_PERSIST_INTERVAL"`
	MaintenanceCron string `json:"maintenance_cron" env:"QUESTMIND_PERSONA_MAINTENANCE_CRON"`
}

type LogConfig struct {
	Level string `json:"level" env:"QUESTMIND_LOG_LEVEL"`
}

// DefaultConfig returns the built-in defaults applied before file/env loading.
func DefaultConfig() *Config {
	return &Config{
		Workspace: "~/.questmind",
		Provider: ProviderConfig{
			APIBase: "https://openrouter.ai/api/v1",
		},
		Persona: PersonaConfig{
			SessionWindow:   20,
			CachedUsers:     256,
			LogCap:          500,
			PersistInterval: 5,
			MaintenanceCron: "*/5 * * * *",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the JSON config at path (if it exists) over the defaults, then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Missing file is fine, defaults + env apply.
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}
	return cfg, nil
}

// WorkspacePath resolves the workspace directory, expanding a leading ~.
func (c *Config) WorkspacePath() string {
	ws := strings.TrimSpace(c.Workspace)
	if ws == "" {
		ws = "~/.questmind"
	}
	if ws == "~" || strings.HasPrefix(ws, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			ws = filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(ws, "~"), "/"))
		}
	}
	return ws
}

// Save writes the config document as indented JSON.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
