// Package shell runs build recipes through a POSIX shell and brackets each
// run with Begin and End records in the trace log.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/tracemake/internal/tracelog"
)

// ExitNotRunnable is recorded when the shell itself could not be started.
const ExitNotRunnable = 127

// waitDelay bounds how long Run waits for the shell to exit after the
// context is cancelled and the shell was sent SIGTERM.
const waitDelay = 5 * time.Second

// Runner executes commands and records their start and stop.
type Runner struct {
	Log    *tracelog.Log
	Shell  string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *zap.Logger

	// Now and PID default to time.Now and os.Getpid.
	Now func() time.Time
	PID func() int
}

// Run appends a Begin record, runs Shell with args, appends an End record
// and returns the shell's exit code. args are recorded verbatim, so the
// usual `-c <recipe>` invocation keeps its flag in the log.
func (r *Runner) Run(ctx context.Context, args []string) (int, error) {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	pid := os.Getpid()
	if r.PID != nil {
		pid = r.PID()
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := r.Log.Begin(pid, now(), args); err != nil {
		return ExitNotRunnable, err
	}

	cmd := exec.CommandContext(ctx, r.Shell, args...)
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = waitDelay

	runErr := cmd.Run()
	code, exited := exitCode(runErr)
	if runErr != nil && !exited {
		code = ExitNotRunnable
	}

	logger.Debug("command finished",
		zap.Int("pid", pid),
		zap.Strings("args", args),
		zap.Int("exit_status", code),
	)

	if err := r.Log.End(pid, now(), code); err != nil {
		return code, err
	}
	if runErr != nil && !exited {
		return code, fmt.Errorf("shell: run %s: %w", r.Shell, runErr)
	}
	return code, nil
}

// exitCode extracts the exit status from a Run error. The second result is
// false when the process never ran to completion (e.g. failed to start).
// Death by signal maps to 128+signal, as POSIX shells report it.
func exitCode(err error) (int, bool) {
	if err == nil {
		return 0, true
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 0, false
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal()), true
	}
	return exitErr.ExitCode(), true
}
