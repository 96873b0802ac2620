// Package config loads ThreadLoop configuration from YAML. Environment
// variables in the file are expanded before parsing, so secrets like API
// keys can be referenced as ${VAR} instead of being stored on disk.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/threadloop/threadloop/logging"
	"github.com/threadloop/threadloop/tool/mcp"
)

// Config is the root configuration document.
type Config struct {
	Runner     RunnerConfig       `yaml:"runner"`
	Checkpoint CheckpointConfig   `yaml:"checkpoint"`
	Model      ModelConfig        `yaml:"model"`
	MCPServers []mcp.ServerConfig `yaml:"mcp_servers"`
	Logging    LoggingConfig      `yaml:"logging"`
}

// RunnerConfig tunes the turn loop.
type RunnerConfig struct {
	MaxSteps         int    `yaml:"max_steps"`
	ToolTimeout      string `yaml:"tool_timeout"`
	SystemPrompt     string `yaml:"system_prompt"`
	Streaming        bool   `yaml:"streaming"`
	ParallelTools    bool   `yaml:"parallel_tools"`
	MaxParallelTools int    `yaml:"max_parallel_tools"`
	EventBuffer      int    `yaml:"event_buffer"`
}

// ToolTimeoutDuration parses the tool timeout. Empty means no limit.
func (r RunnerConfig) ToolTimeoutDuration() (time.Duration, error) {
	if r.ToolTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(r.ToolTimeout)
	if err != nil {
		return 0, fmt.Errorf("runner.tool_timeout: %w", err)
	}
	return d, nil
}

// CheckpointConfig selects the persistence backend.
type CheckpointConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`
	// Path is the database file for the sqlite backend.
	Path string `yaml:"path"`
}

// ModelConfig selects and tunes the model provider.
type ModelConfig struct {
	// Provider is "openai" or "anthropic".
	Provider    string  `yaml:"provider"`
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// LoggingConfig mirrors logging.Config minus the output writer, which is
// not expressible in YAML.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// Build constructs a logger from the section, writing to stderr.
func (l LoggingConfig) Build() logging.Logger {
	cfg := logging.DefaultConfig()
	if l.Level != "" {
		cfg.Level = l.Level
	}
	if l.Format != "" {
		cfg.Format = l.Format
	}
	cfg.AddSource = l.AddSource
	return logging.New(cfg)
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Runner: RunnerConfig{
			MaxSteps:    10,
			EventBuffer: 64,
		},
		Checkpoint: CheckpointConfig{
			Backend: "memory",
		},
		Model: ModelConfig{
			Provider: "openai",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path, expands ${VAR} references against the environment,
// parses the YAML over the defaults and validates the result.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse([]byte(os.ExpandEnv(string(raw))))
}

// Parse unmarshals YAML over the defaults and validates the result.
func Parse(raw []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerations, durations and MCP server entries.
func (c Config) Validate() error {
	switch c.Checkpoint.Backend {
	case "memory":
	case "sqlite":
		if c.Checkpoint.Path == "" {
			return fmt.Errorf("checkpoint.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("checkpoint.backend must be \"memory\" or \"sqlite\", got %q", c.Checkpoint.Backend)
	}

	switch c.Model.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("model.provider must be \"openai\" or \"anthropic\", got %q", c.Model.Provider)
	}

	if c.Runner.MaxSteps < 0 {
		return fmt.Errorf("runner.max_steps must not be negative")
	}
	if _, err := c.Runner.ToolTimeoutDuration(); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.MCPServers))
	for i, srv := range c.MCPServers {
		if srv.Name == "" {
			return fmt.Errorf("mcp_servers[%d]: name is required", i)
		}
		if _, dup := seen[srv.Name]; dup {
			return fmt.Errorf("mcp_servers[%d]: duplicate name %q", i, srv.Name)
		}
		seen[srv.Name] = struct{}{}

		switch srv.Transport {
		case "stdio":
			if srv.Command == "" {
				return fmt.Errorf("mcp_servers[%d] (%s): command is required for stdio", i, srv.Name)
			}
		case "http", "streamable-http":
			if srv.URL == "" {
				return fmt.Errorf("mcp_servers[%d] (%s): url is required for %s", i, srv.Name, srv.Transport)
			}
		default:
			return fmt.Errorf("mcp_servers[%d] (%s): unsupported transport %q", i, srv.Name, srv.Transport)
		}
	}

	return nil
}
