// Package protocol holds the line protocol constants shared with the external
// analysis process: message markers, inline tag names and status prefixes.
//
// The constants are versioned. Producer and consumer must agree on a version;
// a marker mismatch degrades silently to "preamble only", so Validate is run
// whenever a protocol is loaded from configuration.
package protocol

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultVersion is the protocol spoken by the stock wrapper script.
const DefaultVersion = "v1"

// Protocol errors.
var (
	// ErrUnknownVersion is returned by Lookup for an unregistered version.
	ErrUnknownVersion = errors.New("unknown protocol version")

	// ErrEmptyMarker is returned when a required marker is blank.
	ErrEmptyMarker = errors.New("protocol marker cannot be empty")

	// ErrMarkerCollision is returned when two markers would be ambiguous.
	ErrMarkerCollision = errors.New("protocol markers must be distinct")
)

// Tags names the three inline tags recognised inside a message.
type Tags struct {
	Execute     string `yaml:"execute" json:"execute"`
	Observation string `yaml:"observation" json:"observation"`
	Solution    string `yaml:"solution" json:"solution"`
}

// Protocol describes one version of the stdout line protocol.
type Protocol struct {
	Version string `yaml:"version" json:"version"`

	// AgentMarker opens every agent message segment.
	AgentMarker string `yaml:"agent_marker" json:"agent_marker"`

	// EchoMarker opens a section where the producer re-emits the human input.
	EchoMarker string `yaml:"echo_marker" json:"echo_marker"`

	Tags Tags `yaml:"tags" json:"tags"`

	// CodeLanguage is the info string used when fencing executed code.
	CodeLanguage string `yaml:"code_language" json:"code_language"`

	// ResultPrefix marks the first line of the terminal payload.
	ResultPrefix string `yaml:"result_prefix" json:"result_prefix"`

	// ErrorPrefix marks a producer-side error line.
	ErrorPrefix string `yaml:"error_prefix" json:"error_prefix"`

	// StatusPrefixes mark wrapper chatter that is not message payload.
	StatusPrefixes []string `yaml:"status_prefixes" json:"status_prefixes"`
}

var registry = map[string]Protocol{
	"v1": {
		Version:      "v1",
		AgentMarker:  "================================== Ai Message ==================================",
		EchoMarker:   "================================ Human Message =================================",
		Tags:         Tags{Execute: "execute", Observation: "observation", Solution: "solution"},
		CodeLanguage: "python",
		ResultPrefix: "[RESULT]",
		ErrorPrefix:  "[ERROR]",
		StatusPrefixes: []string{
			"[BIOMNI]",
			"[LOG]",
		},
	},
}

// Default returns the default protocol version.
func Default() Protocol {
	p, _ := Lookup(DefaultVersion)
	return p
}

// Lookup returns a registered protocol by version.
func Lookup(version string) (Protocol, error) {
	if version == "" {
		version = DefaultVersion
	}
	p, ok := registry[version]
	if !ok {
		return Protocol{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownVersion, version, strings.Join(Versions(), ", "))
	}
	p.StatusPrefixes = append([]string(nil), p.StatusPrefixes...)
	return p, nil
}

// Versions lists registered protocol versions in sorted order.
func Versions() []string {
	out := make([]string, 0, len(registry))
	for v := range registry {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Merge overlays the non-empty fields of o onto p.
func (p Protocol) Merge(o Protocol) Protocol {
	if o.Version != "" {
		p.Version = o.Version
	}
	if o.AgentMarker != "" {
		p.AgentMarker = o.AgentMarker
	}
	if o.EchoMarker != "" {
		p.EchoMarker = o.EchoMarker
	}
	if o.Tags.Execute != "" {
		p.Tags.Execute = o.Tags.Execute
	}
	if o.Tags.Observation != "" {
		p.Tags.Observation = o.Tags.Observation
	}
	if o.Tags.Solution != "" {
		p.Tags.Solution = o.Tags.Solution
	}
	if o.CodeLanguage != "" {
		p.CodeLanguage = o.CodeLanguage
	}
	if o.ResultPrefix != "" {
		p.ResultPrefix = o.ResultPrefix
	}
	if o.ErrorPrefix != "" {
		p.ErrorPrefix = o.ErrorPrefix
	}
	if len(o.StatusPrefixes) > 0 {
		p.StatusPrefixes = append([]string(nil), o.StatusPrefixes...)
	}
	return p
}

// Validate checks that markers and tags are usable.
func (p Protocol) Validate() error {
	if strings.TrimSpace(p.AgentMarker) == "" {
		return fmt.Errorf("%w: agent_marker", ErrEmptyMarker)
	}
	if strings.TrimSpace(p.EchoMarker) == "" {
		return fmt.Errorf("%w: echo_marker", ErrEmptyMarker)
	}
	if strings.Contains(p.AgentMarker, p.EchoMarker) || strings.Contains(p.EchoMarker, p.AgentMarker) {
		return fmt.Errorf("%w: agent_marker and echo_marker overlap", ErrMarkerCollision)
	}

	tags := map[string]string{
		"execute":     p.Tags.Execute,
		"observation": p.Tags.Observation,
		"solution":    p.Tags.Solution,
	}
	seen := make(map[string]string, len(tags))
	for field, name := range tags {
		if name == "" {
			return fmt.Errorf("%w: tags.%s", ErrEmptyMarker, field)
		}
		if strings.ContainsAny(name, "<>/ \t\n") {
			return fmt.Errorf("tag %s has invalid name %q", field, name)
		}
		if other, dup := seen[name]; dup {
			return fmt.Errorf("%w: tags.%s and tags.%s are both %q", ErrMarkerCollision, field, other, name)
		}
		seen[name] = field
	}
	return nil
}
