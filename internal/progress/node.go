// Package progress describes what the agent is doing between messages and
// formats it as short, user-facing status lines.
package progress

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxPromptRunes bounds how much of a prompt is echoed back.
	MaxPromptRunes = 180
	// MaxToolNames is how many tool names are listed before "+N more".
	MaxToolNames = 3
)

// Node is one step of agent progress. The set of variants is closed.
type Node interface {
	isNode()
}

// UserPrompt is the question that started the run.
type UserPrompt struct {
	Prompt string
}

// ModelRequest is a request sent to the model.
type ModelRequest struct{}

// ToolCall is the model asking for tools to run. Tools may be empty when
// the response carried no calls.
type ToolCall struct {
	Tools []string
}

// ToolResult is tool output being handed back to the model.
type ToolResult struct {
	Tools []string
}

// End means the run is producing its final report.
type End struct{}

func (UserPrompt) isNode()   {}
func (ModelRequest) isNode() {}
func (ToolCall) isNode()     {}
func (ToolResult) isNode()   {}
func (End) isNode()          {}

// FormatLine renders a node as a single progress line. A non-empty title
// is shown as a heading above it.
func FormatLine(n Node, title string) string {
	prefix := ""
	if title != "" {
		prefix = fmt.Sprintf("### %s\n*⏳ Thinking...* - ", title)
	}

	switch v := n.(type) {
	case UserPrompt:
		return prefix + `User asked: "` + Clip(v.Prompt, MaxPromptRunes) + `"...`
	case ModelRequest:
		return prefix + "Sending request to the model..."
	case ToolCall:
		if names := Dedupe(v.Tools); len(names) > 0 {
			return prefix + "Calling tools: " + SummarizeNames(names, MaxToolNames) + "..."
		}
		return prefix + "Processing model response..."
	case ToolResult:
		if names := Dedupe(v.Tools); len(names) > 0 {
			return prefix + "Received results from: " + SummarizeNames(names, MaxToolNames) + "..."
		}
		return prefix + "Sending request to the model..."
	case End:
		return prefix + "Preparing final report..."
	}
	return prefix + "Working..."
}

// Clip collapses whitespace and cuts s to at most n runes, marking the cut
// with an ellipsis.
func Clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimRight(string(r[:n]), " ") + "…"
}

// Dedupe drops empty and repeated names, keeping first occurrences.
func Dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// SummarizeNames lists up to limit names and counts the rest.
func SummarizeNames(names []string, limit int) string {
	if len(names) <= limit {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s +%d more", strings.Join(names[:limit], ", "), len(names)-limit)
}
