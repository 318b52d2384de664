package runner

import (
	"fmt"
	"io"
	"strings"

	"agentpipe/internal/logging"
	"agentpipe/internal/progress"
	"agentpipe/internal/protocol"
	"agentpipe/internal/segment"
	"agentpipe/internal/stream"
)

// pipeline turns line events into updates and captures the terminal
// payload. It runs on the consumer goroutine only.
type pipeline struct {
	proto      protocol.Protocol
	seg        *segment.Segmenter
	emit       func(Update)
	title      string
	transcript io.Writer

	payload  []string // every payload line
	result   []string // the result line and its continuation
	inResult bool
	stderr   []string
}

func newPipeline(p protocol.Protocol, emit func(Update), title string, transcript io.Writer) *pipeline {
	return &pipeline{
		proto:      p,
		seg:        segment.New(p),
		emit:       emit,
		title:      title,
		transcript: transcript,
	}
}

// handle consumes one event from the multiplexer.
func (p *pipeline) handle(e stream.Event) {
	if e.Origin == stream.Secondary {
		p.stderr = append(p.stderr, e.Text)
		if strings.TrimSpace(e.Text) != "" {
			p.emit(Update{Kind: UpdateDiagnostic, Text: e.Text})
		}
		return
	}
	p.line(e.Text)
}

// line consumes one stdout line.
func (p *pipeline) line(raw string) {
	if p.transcript != nil {
		if _, err := fmt.Fprintln(p.transcript, raw); err != nil {
			logging.RunnerWarn("Transcript write failed: %v", err)
			p.transcript = nil
		}
	}

	text, kind := p.proto.CleanLine(raw)
	switch kind {
	case protocol.LineStatus:
		if text != "" {
			p.emit(Update{Kind: UpdateProgress, Text: text})
		}
	case protocol.LineError:
		p.emit(Update{Kind: UpdateDiagnostic, Text: text})
	case protocol.LineResult:
		p.inResult = true
		p.result = []string{text}
	case protocol.LinePayload:
		p.payload = append(p.payload, text)
		if p.inResult {
			p.result = append(p.result, text)
			return
		}
		for _, msg := range p.seg.Feed(text + "\n") {
			p.message(msg)
		}
	}
}

func (p *pipeline) message(msg segment.Message) {
	p.emit(Update{Kind: UpdateMessage, Text: msg.Render(), Message: &msg})

	node := nodeFor(msg)
	p.emit(Update{Kind: UpdateProgress, Text: progress.FormatLine(node, p.title), Node: node})
}

// finish flushes the trailing message.
func (p *pipeline) finish() {
	logging.RunnerDebug("Flushing segmenter: %d messages emitted, open segment=%v", p.seg.Emitted(), p.seg.Pending())
	if msg, ok := p.seg.Finalize(); ok {
		p.message(msg)
	}
	logging.RunnerDebug("Pipeline finished: %d messages, %d payload lines, result=%v, %d stderr lines",
		p.seg.Emitted(), len(p.payload), p.result != nil, len(p.stderr))
}

// messages is how many messages have been emitted so far.
func (p *pipeline) messages() int { return p.seg.Emitted() }

// terminalPayload is the text handed to the coercer: the result line and
// what follows it, or all of stdout when no result line was seen.
func (p *pipeline) terminalPayload() string {
	if p.result != nil {
		return strings.TrimSpace(strings.Join(p.result, "\n"))
	}
	return strings.TrimSpace(strings.Join(p.payload, "\n"))
}

func (p *pipeline) stderrText() string {
	return strings.TrimSpace(strings.Join(p.stderr, "\n"))
}

// nodeFor maps a message onto the progress step it represents.
func nodeFor(msg segment.Message) progress.Node {
	lang := msg.Language
	if lang == "" {
		lang = "python"
	}
	switch {
	case len(msg.Text(segment.KindSolution)) > 0:
		return progress.End{}
	case len(msg.Text(segment.KindObservation)) > 0:
		return progress.ToolResult{Tools: []string{lang}}
	case len(msg.Text(segment.KindCode)) > 0:
		return progress.ToolCall{Tools: []string{lang}}
	}
	return progress.ModelRequest{}
}
