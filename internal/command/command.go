// Package command runs external tools with a timeout and captures their output.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// maxOutputSize caps the output kept on an ExecError.
const maxOutputSize = 100 * 1024 // 100 KB

// ExecError reports a command that could not start or exited non-zero.
type ExecError struct {
	Name     string
	Args     []string
	ExitCode int // -1 when the command did not run to completion
	Output   string
	Err      error
}

func (e *ExecError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%s: exit status %d", e.commandLine(), e.ExitCode)
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

func (e *ExecError) commandLine() string {
	return strings.Join(append([]string{e.Name}, e.Args...), " ")
}

// Run executes name with args, killing it after timeout (when non-zero).
// Combined stdout/stderr is returned on success and attached to the
// ExecError on failure.
func Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	slog.Debug("command: finished", "name", name, "elapsed", time.Since(start), "err", err)
	if err == nil {
		return out.Bytes(), nil
	}

	output := out.String()
	if len(output) > maxOutputSize {
		output = output[len(output)-maxOutputSize:]
	}
	execErr := &ExecError{Name: name, Args: args, ExitCode: -1, Output: output, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		execErr.ExitCode = exitErr.ExitCode()
	}
	if ctx.Err() != nil {
		execErr.Err = fmt.Errorf("%w: %w", err, ctx.Err())
	}
	return nil, execErr
}
