package config

// AgentConfig configures the external analysis process.
type AgentConfig struct {
	Interpreter string   `yaml:"interpreter" json:"interpreter,omitempty"` // e.g. python3; empty runs Script directly
	Script      string   `yaml:"script" json:"script,omitempty"`
	ExtraArgs   []string `yaml:"extra_args" json:"extra_args,omitempty"`

	DataPath string `yaml:"data_path" json:"data_path,omitempty"`
	Model    string `yaml:"model" json:"model,omitempty"`
	Timeout  string `yaml:"timeout" json:"timeout,omitempty"`
	BaseURL  string `yaml:"base_url" json:"base_url,omitempty"`
	APIKey   string `yaml:"api_key" json:"-"`

	// Mock mode replays a recorded transcript instead of launching a process
	MockMode       bool   `yaml:"mock_mode" json:"mock_mode,omitempty"`
	MockTranscript string `yaml:"mock_transcript" json:"mock_transcript,omitempty"`
}

// Command returns the binary and leading arguments used to launch the agent.
func (a AgentConfig) Command() (string, []string) {
	if a.Interpreter == "" {
		return a.Script, append([]string(nil), a.ExtraArgs...)
	}
	args := append([]string{a.Script}, a.ExtraArgs...)
	return a.Interpreter, args
}
