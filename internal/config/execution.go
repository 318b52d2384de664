package config

// ExecutionConfig configures supervision of the child process.
type ExecutionConfig struct {
	// Time between the polite stop signal and a hard kill
	GracePeriod string `yaml:"grace_period" json:"grace_period,omitempty"`

	// Capacity of the multiplexer queue; readers block when it is full
	QueueSize int `yaml:"queue_size" json:"queue_size,omitempty"`

	// Environment variables inherited by the child; empty = inherit everything
	AllowedEnvVars []string `yaml:"allowed_env_vars" json:"allowed_env_vars,omitempty"`
}
