package converter

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// CommandRunner runs an external tool and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs binaries found in PATH. The context bounds the process;
// on deadline the process is killed.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("missing required binary %q in PATH: %w", name, err)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, fmt.Errorf("%s interrupted: %w", name, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, fmt.Errorf("%s failed with exit code %d: %w; out=%s", name, exitErr.ExitCode(), err, clip(out, 512))
		}
		return out, fmt.Errorf("%s failed: %w; out=%s", name, err, clip(out, 512))
	}
	return out, nil
}

func clip(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
