package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"agentpipe/internal/logging"
	"agentpipe/internal/progress"
	"agentpipe/internal/result"
	"agentpipe/internal/supervisor"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Replay streams a recorded stdout transcript through the same pipeline as
// a live run, without launching a process. Cancelling ctx stops it with
// supervisor.ErrCancelled.
func (r *Runner) Replay(ctx context.Context, path, query string, emit func(Update)) (result.ExecutionResult, error) {
	if emit == nil {
		emit = func(Update) {}
	}
	runID := "replay-" + uuid.NewString()[:8]

	f, err := os.Open(path)
	if err != nil {
		return r.fail(emit, fmt.Errorf("failed to open transcript: %w", err))
	}
	defer f.Close()

	logging.Runner("[%s] Replaying %s", runID, path)
	pl := newPipeline(r.proto, emit, r.title, r.transcript)
	if query != "" {
		prompt := progress.UserPrompt{Prompt: query}
		emit(Update{Kind: UpdateProgress, Text: progress.FormatLine(prompt, r.title), Node: prompt})
	}

	br := bufio.NewReader(transform.NewReader(f, runes.ReplaceIllFormed()))
	for {
		if ctx.Err() != nil {
			pl.finish()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return r.fail(emit, supervisor.ErrTimeout)
			}
			return r.fail(emit, supervisor.ErrCancelled)
		}
		line, err := br.ReadString('\n')
		if line != "" {
			pl.line(strings.TrimRight(line, "\r\n"))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			pl.finish()
			return r.fail(emit, fmt.Errorf("failed to read transcript: %w", err))
		}
	}
	pl.finish()

	return r.complete(emit, pl, runID), nil
}
