package main

import (
	"fmt"
	"io"
	"strings"

	"agentpipe/internal/runner"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6b7280")).
			Italic(true)

	diagnosticStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d97706"))

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#dc2626")).
			Bold(true)

	messageStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("#7c3aed"))
)

// printer writes run output to a terminal or, in plain mode, as raw text.
type printer struct {
	out      io.Writer
	renderer *glamour.TermRenderer
}

func newPrinter(out io.Writer, raw bool) *printer {
	p := &printer{out: out}
	if raw {
		return p
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err == nil {
		p.renderer = r
	}
	return p
}

// markdown prints a markdown document, rendered when possible.
func (p *printer) markdown(md string) {
	if p.renderer != nil {
		if out, err := p.renderer.Render(md); err == nil {
			fmt.Fprint(p.out, out)
			return
		}
	}
	fmt.Fprintln(p.out, md)
}

func (p *printer) styled(style lipgloss.Style, text string) {
	if p.renderer == nil {
		fmt.Fprintln(p.out, text)
		return
	}
	fmt.Fprintln(p.out, style.Render(text))
}

// update prints one runner update.
func (p *printer) update(u runner.Update) {
	switch u.Kind {
	case runner.UpdateMessage:
		if p.renderer == nil {
			fmt.Fprintln(p.out, u.Text)
			fmt.Fprintln(p.out)
			return
		}
		rendered, err := p.renderer.Render(u.Text)
		if err != nil {
			rendered = u.Text
		}
		fmt.Fprintln(p.out, messageStyle.Render(strings.TrimRight(rendered, "\n")))
	case runner.UpdateProgress:
		p.styled(statusStyle, u.Text)
	case runner.UpdateDiagnostic:
		p.styled(diagnosticStyle, u.Text)
	case runner.UpdateFailure:
		p.styled(failureStyle, u.Text)
	case runner.UpdateResult:
		p.markdown(u.Text)
	}
}
