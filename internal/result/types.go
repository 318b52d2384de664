// Package result holds the typed outcome of an agent run and the coercer
// that builds it from the agent's often malformed terminal payload.
package result

// Placeholders used when a step arrives without its required fields.
const (
	UnknownStepName        = "Unknown step"
	MissingDescriptionText = "No description provided"
)

// Resource is a tool, dataset or library the agent relied on.
type Resource struct {
	Name   string `json:"name" yaml:"name"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

func (r Resource) String() string {
	if r.Reason == "" {
		return r.Name + ": no reason provided"
	}
	return r.Name + ": " + r.Reason
}

// Step is one action the agent took, in execution order.
type Step struct {
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Resources   []Resource `json:"resources,omitempty" yaml:"resources,omitempty"`
	Result      string     `json:"result,omitempty" yaml:"result,omitempty"`
	Citations   []string   `json:"cites,omitempty" yaml:"cites,omitempty"`
	OutputFiles []string   `json:"output_files,omitempty" yaml:"output_files,omitempty"`
	Stdout      string     `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	Stderr      string     `json:"stderr,omitempty" yaml:"stderr,omitempty"`
}

// ExecutionResult is the decoded terminal payload of one run.
type ExecutionResult struct {
	Steps        []Step `json:"step" yaml:"step"`
	Summary      string `json:"summary" yaml:"summary"`
	ArtifactPath string `json:"jupyter_notebook,omitempty" yaml:"jupyter_notebook,omitempty"`

	// Fallback is set when the payload could not be decoded and Summary
	// holds the raw text instead.
	Fallback bool `json:"-" yaml:"-"`
}

// OutputFiles lists the generated artifact followed by every step's output
// files, without duplicates.
func (r ExecutionResult) OutputFiles() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	add(r.ArtifactPath)
	for _, s := range r.Steps {
		for _, f := range s.OutputFiles {
			add(f)
		}
	}
	return out
}
