// Package command runs the external tools keywork shells out to (docker,
// security, osascript, tmux, terminal emulators) behind small function types
// so callers can swap them in tests.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
)

// Runner executes name with args and returns its stdout. A non-zero exit is
// reported as an error wrapping *exec.ExitError.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// LookPath reports the resolved path of an executable.
type LookPath func(name string) (string, error)

// Factory builds an unstarted command. Launchers that stream or detach use it
// instead of a Runner.
type Factory func(ctx context.Context, name string, args ...string) *exec.Cmd

// Run is the default Runner. When ctx expires the returned error wraps the
// context error so IsTimeout can see it.
func Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		return stdout.Bytes(), fmt.Errorf("%s: %w", name, ctxErr)
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return stdout.Bytes(), fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// New is the default Factory.
func New(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}

// IsNotFound reports whether err means the executable does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// IsTimeout reports whether err came from an expired deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// ExitCode extracts the exit status from err. ok is false when err is not an
// exit failure.
func ExitCode(err error) (code int, ok bool) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	return 0, false
}
