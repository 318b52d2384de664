package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"agentpipe/internal/protocol"

	"gopkg.in/yaml.v3"
)

// Config holds all agentpipe configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// External analysis agent
	Agent AgentConfig `yaml:"agent"`

	// Child process supervision
	Execution ExecutionConfig `yaml:"execution"`

	// Line protocol overrides; empty fields fall back to the selected version
	Protocol protocol.Protocol `yaml:"protocol"`

	// Session directories
	Sessions SessionsConfig `yaml:"sessions"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// SessionsConfig configures where per-session output directories live.
type SessionsConfig struct {
	Root string `yaml:"root"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return &Config{
		Name:    "agentpipe",
		Version: "0.3.0",

		Agent: AgentConfig{
			Interpreter: "python3",
			Script:      "biomni_subprocess_wrapper.py",
			DataPath:    "./data",
			Model:       "anthropic/claude-sonnet-4",
			Timeout:     "600s",
			APIKey:      "EMPTY",
		},

		Execution: ExecutionConfig{
			GracePeriod:    "3s",
			QueueSize:      256,
			AllowedEnvVars: []string{"PATH", "HOME", "LANG", "LC_ALL", "TMPDIR", "PYTHONPATH", "CONDA_PREFIX"},
		},

		Protocol: protocol.Protocol{Version: protocol.DefaultVersion},

		Sessions: SessionsConfig{
			Root: filepath.Join(home, "agentpipe-data", "sessions"),
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Defaults plus environment if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AGENTPIPE_LLM_MODEL"); v != "" {
		c.Agent.Model = v
	}
	if v := os.Getenv("AGENTPIPE_DATA_PATH"); v != "" {
		c.Agent.DataPath = v
	}
	if v := os.Getenv("AGENTPIPE_TIMEOUT"); v != "" {
		c.Agent.Timeout = v
	}
	if v := os.Getenv("AGENTPIPE_BASE_URL"); v != "" {
		c.Agent.BaseURL = v
	}
	if v := os.Getenv("AGENTPIPE_SCRIPT"); v != "" {
		c.Agent.Script = v
	}
	if v := os.Getenv("AGENTPIPE_SESSIONS"); v != "" {
		c.Sessions.Root = v
	}

	// Provider keys: the explicit AGENTPIPE_API_KEY wins over provider keys.
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.Agent.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Agent.APIKey = key
	}
	if key := os.Getenv("AGENTPIPE_API_KEY"); key != "" {
		c.Agent.APIKey = key
	}

	if os.Getenv("AGENTPIPE_MOCK") == "1" {
		c.Agent.MockMode = true
	}
	if os.Getenv("AGENTPIPE_DEBUG") == "1" {
		c.Logging.DebugMode = true
	}
}

// GetAgentTimeout returns the wall-clock budget for one run.
func (c *Config) GetAgentTimeout() time.Duration {
	return parseDuration(c.Agent.Timeout, 600*time.Second)
}

// GetGracePeriod returns how long a cancelled child gets before it is killed.
func (c *Config) GetGracePeriod() time.Duration {
	return parseDuration(c.Execution.GracePeriod, 3*time.Second)
}

// GetProtocol resolves the configured protocol version and overrides.
func (c *Config) GetProtocol() (protocol.Protocol, error) {
	base, err := protocol.Lookup(c.Protocol.Version)
	if err != nil {
		return protocol.Protocol{}, err
	}
	p := base.Merge(c.Protocol)
	if err := p.Validate(); err != nil {
		return protocol.Protocol{}, err
	}
	return p, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Agent.MockMode && c.Agent.Script == "" {
		return fmt.Errorf("agent.script is required")
	}
	if c.Agent.MockMode && c.Agent.MockTranscript == "" {
		return fmt.Errorf("agent.mock_transcript is required in mock mode")
	}
	if c.Agent.Model == "" {
		return fmt.Errorf("agent.model is required")
	}
	if d, err := time.ParseDuration(c.Agent.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("agent.timeout must be a positive duration, got %q", c.Agent.Timeout)
	}
	if c.Execution.QueueSize < 0 {
		return fmt.Errorf("execution.queue_size cannot be negative")
	}
	if _, err := c.GetProtocol(); err != nil {
		return fmt.Errorf("protocol: %w", err)
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
