package segment

import (
	"strings"
)

// Labels prepended to non-text blocks.
const (
	CodeLabel        = "**🔧 Code Execution:**"
	ObservationLabel = "**📊 Observation:**"
	SolutionLabel    = "**✅ Solution:**"
)

// Message is the ordered block sequence of one completed segment.
type Message struct {
	Blocks []Block

	// Language is the fence info string used for code blocks.
	Language string
}

// Render formats the message for display. Blocks keep their order and are
// separated by a blank line.
func (m Message) Render() string {
	parts := make([]string, 0, len(m.Blocks))
	for _, b := range m.Blocks {
		switch b.Kind {
		case KindCode:
			parts = append(parts, renderCode(b.Content, m.Language))
		case KindObservation:
			parts = append(parts, ObservationLabel+"\n\n"+b.Content)
		case KindSolution:
			parts = append(parts, SolutionLabel+"\n\n"+b.Content)
		default:
			parts = append(parts, b.Content)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// Text returns the raw content of all blocks of the given kind.
func (m Message) Text(kind Kind) []string {
	var out []string
	for _, b := range m.Blocks {
		if b.Kind == kind {
			out = append(out, b.Content)
		}
	}
	return out
}

func renderCode(code, lang string) string {
	if lang == "" {
		lang = "python"
	}
	return CodeLabel + "\n\n```" + lang + "\n" + cleanCode(code) + "\n```"
}

// cleanCode drops blank lines and bare comment scaffolding. Comments
// written as "# text" and section headers containing "=" are kept.
// Common indentation is removed; relative indentation survives.
func cleanCode(code string) string {
	var kept []string
	for _, line := range strings.Split(code, "\n") {
		line = strings.TrimRight(line, " \t\r")
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "# "):
		case strings.HasPrefix(trimmed, "#") && !strings.Contains(trimmed, "="):
			continue
		}
		kept = append(kept, line)
	}
	return dedent(kept)
}

func dedent(lines []string) string {
	prefix := ""
	for i, line := range lines {
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if i == 0 {
			prefix = indent
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, prefix)
	}
	return strings.Join(lines, "\n")
}
