// Package runner executes one query against the external analysis process
// and streams what it produces.
//
// A run wires the pieces together: the supervisor launches the process in
// the session's outputs directory, the multiplexer merges its stdout and
// stderr, stdout is segmented into messages as it arrives, and once the
// process exits the captured terminal payload is coerced into a result.
// Failures are reported as a single final update after everything already
// streamed.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"agentpipe/internal/config"
	"agentpipe/internal/logging"
	"agentpipe/internal/progress"
	"agentpipe/internal/protocol"
	"agentpipe/internal/result"
	"agentpipe/internal/session"
	"agentpipe/internal/stream"
	"agentpipe/internal/supervisor"

	"github.com/google/uuid"
)

// Runner executes queries for one session. A Runner may be reused for
// sequential runs.
type Runner struct {
	cfg     *config.Config
	proto   protocol.Protocol
	session *session.Session

	env        []string
	title      string
	transcript io.Writer
}

// Option configures a Runner.
type Option func(*Runner)

// WithEnv adds KEY=VALUE overrides to the child environment.
func WithEnv(kv ...string) Option {
	return func(r *Runner) { r.env = append(r.env, kv...) }
}

// WithTitle sets the heading shown on progress lines.
func WithTitle(title string) Option {
	return func(r *Runner) { r.title = title }
}

// WithTranscript copies every raw stdout line to w.
func WithTranscript(w io.Writer) Option {
	return func(r *Runner) { r.transcript = w }
}

// ErrNoSession is returned by Run on a runner built without a session.
var ErrNoSession = errors.New("runner: live runs need a session")

// New validates cfg and returns a runner bound to sess. A nil session is
// enough for Replay and Follow.
func New(cfg *config.Config, sess *session.Session, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("runner: nil config")
	}
	p, err := cfg.GetProtocol()
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}
	r := &Runner{cfg: cfg, proto: p, session: sess}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Protocol returns the resolved line protocol.
func (r *Runner) Protocol() protocol.Protocol { return r.proto }

// Run executes query and blocks until the run is over. Every update is
// delivered to emit from the calling goroutine. The configured timeout
// bounds the run; cancelling ctx stops it.
//
// On failure the last update is an UpdateFailure and the error is one of
// *supervisor.LaunchError, supervisor.ErrTimeout, supervisor.ErrCancelled
// or *supervisor.ExitError (with stderr attached).
func (r *Runner) Run(ctx context.Context, query string, emit func(Update)) (result.ExecutionResult, error) {
	if emit == nil {
		emit = func(Update) {}
	}
	if r.cfg.Agent.MockMode {
		return r.Replay(ctx, r.cfg.Agent.MockTranscript, query, emit)
	}

	if r.session == nil {
		return r.fail(emit, ErrNoSession)
	}

	runID := uuid.NewString()[:8]
	timer := logging.StartTimer(logging.CategoryRunner, "run "+runID)
	defer timer.Stop()
	started := time.Now()
	audit := logging.AuditRun(r.session.ID, runID)
	audit.RunStart(query)

	sc := NewSubprocessConfig(r.cfg, r.session.OutputsDir())
	encoded, err := sc.Encode()
	if err != nil {
		return r.fail(emit, err)
	}
	logging.Runner("[%s] Run %s in session %s: %s", runID, truncate(query, 80), r.session.ID, sc)

	bin, args := r.cfg.Agent.Command()
	args = append(args, r.session.ID, query, encoded)

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.GetAgentTimeout())
	defer cancel()

	pl := newPipeline(r.proto, emit, r.title, r.transcript)
	prompt := progress.UserPrompt{Prompt: query}
	emit(Update{Kind: UpdateProgress, Text: progress.FormatLine(prompt, r.title), Node: prompt})

	command := supervisor.Command{
		Binary:     bin,
		Args:       args,
		Dir:        r.session.OutputsDir(),
		Env:        r.env,
		AllowedEnv: r.cfg.Execution.AllowedEnvVars,
		Grace:      r.cfg.GetGracePeriod(),
	}
	h, err := supervisor.Start(runCtx, command)
	if err != nil {
		audit.RunFailed(err, time.Since(started))
		return r.fail(emit, err)
	}
	defer h.Close()
	audit.ProcessSpawn(h.PID(), command.Binary)

	mux := stream.Multiplexer{QueueSize: r.cfg.Execution.QueueSize}
	muxErr := mux.Run(runCtx, h, pl.handle)
	code, waitErr := h.Wait()
	audit.ProcessExit(code, time.Since(started), waitErr)
	pl.finish()

	if err := classify(runCtx, muxErr, waitErr, pl.stderrText()); err != nil {
		logging.RunnerError("[%s] Run failed (exit %d): %v", runID, code, err)
		audit.RunFailed(err, time.Since(started))
		return r.fail(emit, err)
	}

	res := r.complete(emit, pl, runID)
	audit.RunComplete(len(res.Steps), res.Fallback, time.Since(started))
	return res, nil
}

// classify reduces the multiplexer and process outcomes to one error. The
// context decides between timeout and cancellation because either side
// may have observed the stop first.
func classify(ctx context.Context, muxErr, waitErr error, stderr string) error {
	if muxErr == nil && waitErr == nil {
		return nil
	}
	stopped := errors.Is(waitErr, supervisor.ErrTimeout) || errors.Is(waitErr, supervisor.ErrCancelled) ||
		errors.Is(muxErr, context.Canceled) || errors.Is(muxErr, context.DeadlineExceeded)
	if stopped {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return supervisor.ErrTimeout
		}
		return supervisor.ErrCancelled
	}

	var exitErr *supervisor.ExitError
	if errors.As(waitErr, &exitErr) {
		exitErr.Stderr = stderr
		return exitErr
	}
	if waitErr != nil {
		return waitErr
	}
	return fmt.Errorf("stream: %w", muxErr)
}

func (r *Runner) complete(emit func(Update), pl *pipeline, runID string) result.ExecutionResult {
	payload := pl.terminalPayload()
	res := result.Coerce(payload)
	if res.Fallback {
		logging.RunnerWarn("[%s] Terminal payload was not structured, showing raw text", runID)
	}
	logging.Runner("[%s] Run complete: %d messages, %d steps", runID, pl.messages(), len(res.Steps))

	end := progress.End{}
	emit(Update{Kind: UpdateProgress, Text: progress.FormatLine(end, r.title), Node: end})
	emit(Update{Kind: UpdateResult, Text: result.Markdown(res), Result: &res})
	return res
}

func (r *Runner) fail(emit func(Update), err error) (result.ExecutionResult, error) {
	emit(Update{Kind: UpdateFailure, Text: "ERROR: " + err.Error(), Err: err})
	return result.ExecutionResult{}, err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
