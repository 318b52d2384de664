// Package supervisor launches the external analysis process and owns its
// lifetime: the OS process, both output pipes, cancellation and exit status.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"agentpipe/internal/logging"
)

// DefaultGrace is how long a stopped process may take to exit on its own.
const DefaultGrace = 3 * time.Second

// Command describes one process launch.
type Command struct {
	Binary string
	Args   []string
	Dir    string

	// Env holds KEY=VALUE overrides applied on top of the inherited environment.
	Env []string

	// AllowedEnv restricts which inherited variables reach the child.
	// Empty means the whole parent environment is passed through.
	AllowedEnv []string

	// Grace is the delay between the stop signal and a hard kill.
	Grace time.Duration
}

type stopReason int

const (
	stopNone stopReason = iota
	stopCancelled
	stopTimeout
)

// Handle is a single-use handle on a running process.
type Handle struct {
	cmd    *exec.Cmd
	ctx    context.Context
	pgid   int
	stdout *os.File
	stderr *os.File
	grace  time.Duration

	done    chan struct{}
	closed  chan struct{}
	waitErr error

	stopOnce  sync.Once
	closeOnce sync.Once
	mu        sync.Mutex
	reason    stopReason
}

// Start launches the command. The context bounds the whole process
// lifetime: when it ends the process is stopped exactly as by Cancel.
func Start(ctx context.Context, c Command) (*Handle, error) {
	if c.Binary == "" {
		return nil, &LaunchError{Err: ErrEmptyCommand}
	}
	if c.Dir != "" {
		if fi, err := os.Stat(c.Dir); err != nil || !fi.IsDir() {
			if err == nil {
				err = fmt.Errorf("%s is not a directory", c.Dir)
			}
			return nil, &LaunchError{Binary: c.Binary, Err: err}
		}
	}

	grace := c.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, &LaunchError{Binary: c.Binary, Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, &LaunchError{Binary: c.Binary, Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	cmd := exec.Command(c.Binary, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = buildEnvironment(os.Environ(), c.AllowedEnv, c.Env)
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	setProcAttr(cmd)

	logging.ProcessDebug("Starting process: %s with %d args (dir=%s, grace=%s)", c.Binary, len(c.Args), c.Dir, grace)

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		logging.ProcessError("Launch failed: %s - %v", c.Binary, err)
		return nil, &LaunchError{Binary: c.Binary, Err: err}
	}

	// The child holds its own copies of the write ends.
	stdoutW.Close()
	stderrW.Close()

	h := &Handle{
		cmd:    cmd,
		ctx:    ctx,
		pgid:   processGroup(cmd),
		stdout: stdoutR,
		stderr: stderrR,
		grace:  grace,
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}

	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()

	// The context bounds the output streams too, so the watcher stays
	// until the pipes are released: descendants can hold them open after
	// the process itself has exited.
	go func() {
		select {
		case <-ctx.Done():
			h.stop(reasonFor(ctx.Err()), true)
		case <-h.closed:
		}
	}()

	logging.Process("Process started: pid=%d %s", cmd.Process.Pid, c.Binary)
	return h, nil
}

// Primary returns the stdout stream.
func (h *Handle) Primary() io.Reader { return h.stdout }

// Secondary returns the stderr stream.
func (h *Handle) Secondary() io.Reader { return h.stderr }

// PID returns the OS process id.
func (h *Handle) PID() int { return h.cmd.Process.Pid }

// Done is closed once the process has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel requests termination. It is idempotent and safe to call while
// the output streams are being read. Once the start context has ended the
// stop is attributed to it.
func (h *Handle) Cancel() {
	if err := h.ctx.Err(); err != nil {
		h.stop(reasonFor(err), true)
		return
	}
	h.stop(stopCancelled, false)
}

func reasonFor(err error) stopReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return stopTimeout
	}
	return stopCancelled
}

// stop signals the process group and releases the pipes. A process that
// already exited keeps its own status unless record is set.
func (h *Handle) stop(reason stopReason, record bool) {
	h.stopOnce.Do(func() {
		exited := false
		select {
		case <-h.done:
			exited = true
		default:
		}

		if !exited || record {
			h.mu.Lock()
			h.reason = reason
			h.mu.Unlock()
		}

		pid := h.cmd.Process.Pid
		if exited {
			// Leftover group members may still hold the write ends.
			logging.ProcessDebug("Process pid=%d already exited, stopping group %d", pid, h.pgid)
			if err := kill(h.cmd.Process, h.pgid); err != nil {
				logging.ProcessDebug("Group kill failed for pgid=%d: %v", h.pgid, err)
			}
			h.closePipes()
			return
		}

		logging.ProcessDebug("Stopping process pid=%d (grace=%s)", pid, h.grace)
		if err := terminate(h.cmd.Process, h.pgid); err != nil {
			logging.ProcessDebug("Terminate signal failed for pid=%d: %v", pid, err)
		}

		go func() {
			timer := time.NewTimer(h.grace)
			defer timer.Stop()
			select {
			case <-h.done:
			case <-timer.C:
				logging.ProcessWarn("Process pid=%d ignored stop signal, killing", pid)
				_ = kill(h.cmd.Process, h.pgid)
			}
			// Descendants may still hold the write ends; closing ours
			// unblocks any reader stuck in Read.
			h.closePipes()
		}()
	})
}

// Wait blocks until the process exits and returns its exit code. A stopped
// process reports ErrTimeout or ErrCancelled; a non-zero exit reports *ExitError.
func (h *Handle) Wait() (int, error) {
	<-h.done

	h.mu.Lock()
	reason := h.reason
	h.mu.Unlock()

	code := 0
	if h.cmd.ProcessState != nil {
		code = h.cmd.ProcessState.ExitCode()
	}

	switch reason {
	case stopTimeout:
		return code, ErrTimeout
	case stopCancelled:
		return code, ErrCancelled
	}

	if h.waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(h.waitErr, &exitErr) {
			logging.ProcessDebug("Process exited non-zero: pid=%d -> %d", h.PID(), exitErr.ExitCode())
			return exitErr.ExitCode(), &ExitError{Code: exitErr.ExitCode()}
		}
		return code, fmt.Errorf("wait: %w", h.waitErr)
	}

	logging.ProcessDebug("Process exited cleanly: pid=%d", h.PID())
	return 0, nil
}

// Close releases both pipes and stops watching the start context. Call it
// after the streams have been drained.
func (h *Handle) Close() error {
	h.closePipes()
	return nil
}

func (h *Handle) closePipes() {
	h.closeOnce.Do(func() {
		h.stdout.Close()
		h.stderr.Close()
		close(h.closed)
	})
}

// buildEnvironment filters the inherited environment and applies overrides.
func buildEnvironment(base, allowed, overrides []string) []string {
	keep := func(string) bool { return true }
	if len(allowed) > 0 {
		set := make(map[string]bool, len(allowed))
		for _, k := range allowed {
			set[k] = true
		}
		keep = func(k string) bool { return set[k] }
	}

	over := make(map[string]string, len(overrides))
	order := make([]string, 0, len(overrides))
	for _, kv := range overrides {
		k, v, _ := strings.Cut(kv, "=")
		if _, seen := over[k]; !seen {
			order = append(order, k)
		}
		over[k] = v
	}

	env := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, overridden := over[k]; overridden || !keep(k) {
			continue
		}
		env = append(env, kv)
	}
	for _, k := range order {
		env = append(env, k+"="+over[k])
	}
	return env
}
