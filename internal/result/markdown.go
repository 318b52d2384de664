package result

import (
	"fmt"
	"strings"
)

// StepMarkdown renders one step as a numbered markdown section.
func StepMarkdown(i int, s Step) string {
	parts := []string{fmt.Sprintf("### %d. %s\n%s\n", i, s.Name, s.Description)}

	if len(s.Resources) > 0 {
		var rows []string
		for _, r := range s.Resources {
			rows = append(rows, fmt.Sprintf("| %s | %s |", cell(r.Name), cell(orDash(r.Reason))))
		}
		parts = append(parts, "Resources used:\n\n| Name | Reason |\n| --- | --- |\n"+strings.Join(rows, "\n")+"\n")
	}

	if cites := dedupe(s.Citations); len(cites) > 0 {
		parts = append(parts, "Cites:\n- "+strings.Join(cites, "\n- ")+"\n")
	}

	if s.Result != "" {
		parts = append(parts, "**Result:** "+s.Result+"\n")
	}

	if s.Stderr != "" {
		parts = append(parts, "**Stderr**\n\n```text\n"+s.Stderr+"\n```\n")
	}

	return strings.Join(parts, "\n")
}

// Markdown renders the full execution report: every step in order followed
// by the summary.
func Markdown(ex ExecutionResult) string {
	steps := make([]string, len(ex.Steps))
	for i, s := range ex.Steps {
		steps[i] = StepMarkdown(i+1, s)
	}
	return "## Execution\n\n" + strings.Join(steps, "\n") + "\n\n## Summary\n\n" + ex.Summary + "\n"
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		if it != "" && !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}
