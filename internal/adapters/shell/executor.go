// Package shell runs recipe steps as external processes.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	// DefaultTailSize is the number of trailing output bytes kept for error reports.
	DefaultTailSize = 8 << 10

	// waitDelay bounds how long output pipes are drained after the process is killed.
	waitDelay = 5 * time.Second
)

// Executor implements ports.Executor using os/exec.
type Executor struct {
	logger   ports.Logger
	tailSize int
}

// NewExecutor creates a new Executor.
func NewExecutor(logger ports.Logger) *Executor {
	return &Executor{
		logger:   logger,
		tailSize: DefaultTailSize,
	}
}

// WithTailSize overrides how much trailing output is attached to step errors.
func (e *Executor) WithTailSize(n int) *Executor {
	e.tailSize = n
	return e
}

// Execute runs cmd and waits for it to complete. Output is streamed to the
// logger line by line at debug level and the tail is kept for error reports.
func (e *Executor) Execute(ctx context.Context, cmd domain.Command, env *domain.BuildEnvironment) error {
	if cmd.Program == "" {
		return &domain.StepError{Command: cmd.String(), ExitCode: -1, Err: zerr.New("empty command")}
	}

	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	var environ []string
	if env != nil {
		environ = env.Environ()
	}

	executable := cmd.Program
	if !strings.ContainsRune(executable, filepath.Separator) {
		if lp, err := lookPath(executable, environ); err == nil {
			executable = lp
		}
	}

	c := exec.CommandContext(ctx, executable, cmd.Args...) //nolint:gosec // recipe provided command
	if len(c.Args) > 0 {
		c.Args[0] = cmd.Program
	}
	c.Dir = cmd.Dir
	c.Env = environ
	c.WaitDelay = waitDelay

	tail := newTailBuffer(e.tailSize)
	lines := &logWriter{logger: e.logger, attrs: outputAttrs(cmd)}
	out := io.MultiWriter(lines, tail)
	c.Stdout = out
	c.Stderr = out

	err := c.Run()
	_ = lines.Close()

	if err == nil {
		return nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	cause := err
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		cause = zerr.With(zerr.Wrap(context.DeadlineExceeded, "step timed out"), "timeout", cmd.Timeout.String())
	}

	return &domain.StepError{
		Command:  cmd.String(),
		ExitCode: exitCode,
		Output:   tail.String(),
		Err:      cause,
	}
}

// outputAttrs identifies the step on every logged output line.
func outputAttrs(cmd domain.Command) []any {
	attrs := []any{"step", cmd.Program}
	if cmd.Package != "" {
		attrs = append([]any{"package", cmd.Package}, attrs...)
	}
	return attrs
}

type logWriter struct {
	logger ports.Logger
	attrs  []any
	buf    []byte
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	w.buf = append(w.buf, p...)

	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logLine(w.buf[:i])
		w.buf = w.buf[i+1:]
	}

	return len(p), nil
}

func (w *logWriter) Close() error {
	if len(w.buf) > 0 {
		w.logLine(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *logWriter) logLine(line []byte) {
	w.logger.Debug(strings.TrimSuffix(string(line), "\r"), w.attrs...)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit     int
	buf       []byte
	truncated bool
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
		t.truncated = true
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	if t.truncated {
		return "..." + string(t.buf)
	}
	return string(t.buf)
}

// lookPath searches for an executable in the directories named by the PATH entry of env.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if p, ok := strings.CutPrefix(e, "PATH="); ok {
			path = p
			break
		}
	}

	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
