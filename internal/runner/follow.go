package runner

import (
	"context"
	"errors"
	"strings"

	"agentpipe/internal/follow"
	"agentpipe/internal/logging"
	"agentpipe/internal/result"
	"agentpipe/internal/supervisor"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Follow streams a transcript that is still being written, typically by a
// run in another process. It returns the decoded result once the file is
// removed; cancelling ctx stops it with supervisor.ErrCancelled after the
// messages seen so far have been flushed.
func (r *Runner) Follow(ctx context.Context, path string, emit func(Update)) (result.ExecutionResult, error) {
	if emit == nil {
		emit = func(Update) {}
	}
	runID := "follow-" + uuid.NewString()[:8]
	logging.Runner("[%s] Following %s", runID, path)

	pl := newPipeline(r.proto, emit, r.title, nil)
	var partial strings.Builder
	flush := func(line string) {
		if clean, _, err := transform.String(runes.ReplaceIllFormed(), line); err == nil {
			line = clean
		}
		pl.line(strings.TrimRight(line, "\r"))
	}

	err := follow.Follow(ctx, path, func(chunk string) {
		partial.WriteString(chunk)
		buf := partial.String()
		i := strings.LastIndexByte(buf, '\n')
		if i < 0 {
			return
		}
		for _, line := range strings.Split(buf[:i], "\n") {
			flush(line)
		}
		partial.Reset()
		partial.WriteString(buf[i+1:])
	})
	if rest := partial.String(); rest != "" {
		flush(rest)
	}
	pl.finish()

	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return r.fail(emit, supervisor.ErrTimeout)
		case errors.Is(err, context.Canceled):
			return r.fail(emit, supervisor.ErrCancelled)
		}
		return r.fail(emit, err)
	}
	return r.complete(emit, pl, runID), nil
}
