// Package process wraps external process invocation behind a small runner
// interface so components that shell out stay testable.
package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/cli/safeexec"
)

// ErrExecutableNotFound indicates none of the candidate executables could be
// located on the PATH.
var ErrExecutableNotFound = errors.New("executable not found")

// Runner runs an external executable to completion and returns its combined
// output text.
type Runner interface {
	// Run executes name with the given arguments, waits for completion, and
	// returns the combined stdout and stderr. A non-zero exit is returned as
	// an error together with whatever output was produced.
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner is the os/exec backed Runner used outside of tests.
type ExecRunner struct{}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command and returns its combined output.
func (runner *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// #nosec G204 - name and args are constructed internally from settings
	cmd := exec.CommandContext(ctx, name, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("run %s: %w", name, err)
	}

	return string(output), nil
}

// LookupExecutable resolves the first candidate found on the PATH, using a
// lookup that refuses the current directory. Returns ErrExecutableNotFound
// when no candidate resolves.
func LookupExecutable(ctx context.Context, candidates []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}

		path, err := safeexec.LookPath(candidate)
		if err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrExecutableNotFound, strings.Join(candidates, ", "))
}
