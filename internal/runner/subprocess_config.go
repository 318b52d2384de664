package runner

import (
	"encoding/json"
	"fmt"
	"strings"

	"agentpipe/internal/config"
)

// SubprocessConfig is passed to the external process as its third
// positional argument. It is built once per run and never changed.
type SubprocessConfig struct {
	SessionOutputsPath string  `json:"session_outputs_path"`
	DataPath           string  `json:"biomni_data_path"`
	Model              string  `json:"biomni_llm_model"`
	TimeoutSeconds     int     `json:"biomni_timeout_seconds"`
	BaseURL            *string `json:"biomni_base_url"`
	APIKey             string  `json:"biomni_api_key"`
}

// NewSubprocessConfig derives the subprocess settings from cfg for a run
// writing into outputsDir.
func NewSubprocessConfig(cfg *config.Config, outputsDir string) SubprocessConfig {
	sc := SubprocessConfig{
		SessionOutputsPath: outputsDir,
		DataPath:           cfg.Agent.DataPath,
		Model:              cfg.Agent.Model,
		TimeoutSeconds:     int(cfg.GetAgentTimeout().Seconds()),
		APIKey:             cfg.Agent.APIKey,
	}
	if u := strings.TrimSpace(cfg.Agent.BaseURL); u != "" {
		sc.BaseURL = &u
	}
	if sc.APIKey == "" {
		sc.APIKey = "EMPTY"
	}
	return sc
}

// Encode returns the JSON form handed to the process.
func (c SubprocessConfig) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode subprocess config: %w", err)
	}
	return string(data), nil
}

// String is safe to log: the credential is masked.
func (c SubprocessConfig) String() string {
	base := "<none>"
	if c.BaseURL != nil {
		base = *c.BaseURL
	}
	return fmt.Sprintf("outputs=%s data=%s model=%s timeout=%ds base_url=%s api_key=%s",
		c.SessionOutputsPath, c.DataPath, c.Model, c.TimeoutSeconds, base, mask(c.APIKey))
}

func mask(key string) string {
	if key == "" || key == "EMPTY" || len(key) <= 8 {
		return key
	}
	return key[:4] + "..." + key[len(key)-4:]
}
