package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const commandWaitDelay = time.Second

// CommandRunner runs a shell command line with extra environment variables
// and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, command string, env []string) (string, error)
}

// ShellRunner runs commands through /bin/sh -c.
type ShellRunner struct {
	Timeout time.Duration
}

// Run executes command. When ctx ends the command is killed and ctx's error
// is returned; a command that outlives Timeout fails on its own.
func (r ShellRunner) Run(ctx context.Context, command string, env []string) (string, error) {
	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	cmd.Env = append(os.Environ(), env...)
	// Children that inherit stdout must not hold Run open after a kill.
	cmd.WaitDelay = commandWaitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return stdout.String(), fmt.Errorf("command timed out after %s", r.Timeout)
		}
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			return stdout.String(), fmt.Errorf("%w: %s", err, detail)
		}
		return stdout.String(), err
	}
	return stdout.String(), nil
}

// shellQuote wraps value in single quotes for /bin/sh.
func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
