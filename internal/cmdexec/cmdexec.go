// Package cmdexec runs external commands behind an interface so callers that
// shell out to git or pm2 can be tested without the binaries installed.
package cmdexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a command in dir and returns its standard output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// Func adapts a plain function to the Runner interface.
type Func func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// Run calls f.
func (f Func) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	return f(ctx, dir, name, args...)
}

// Exec is the os/exec backed Runner.
type Exec struct{}

// Run starts name with args and waits for it. A non-zero exit is returned as
// an error carrying the trimmed stderr.
func (Exec) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
			}
		}
		return out, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}
