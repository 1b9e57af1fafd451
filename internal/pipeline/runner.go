// Package pipeline executes the two-stage build sequence described by a
// BuildPlan: run the build stage's toolchain, verify the asset bundle it
// produced, then assemble the runtime stage's filesystem from copy steps.
//
// Design decisions:
//   - External build tools (npm, pip, bundlers) are opaque collaborators.
//     We shell out via os/exec with fixed working directories and argv
//     lists taken verbatim from the descriptor; their failure semantics
//     are their own and a non-zero exit aborts the pipeline.
//   - Execution is strictly sequential in declaration order. There is no
//     branching, no retry, and no partial recovery — the first error wins.
//   - All toolchain errors are wrapped in model.CLIError with
//     ExitToolchainFailed to enable proper CLI exit code handling.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/stagehand-cli/stagehand/internal/model"
)

// Runner executes external toolchain commands for pipeline stages.
//
// It is currently stateless — all methods receive the working directory
// as a parameter. The struct exists as a receiver to support future
// extensions such as output streaming or a dry-run mode.
type Runner struct{}

// NewRunner creates a new toolchain Runner instance.
func NewRunner() *Runner {
	return &Runner{}
}

// Run executes a single toolchain command in the given directory with the
// given extra environment variables, blocking until it exits.
//
// The child process inherits the current environment with env entries
// appended, so descriptor-level variables override inherited ones
// (later entries win in exec.Cmd.Env).
//
// Returns the combined stdout/stderr output. On a non-zero exit the output
// is folded into the error message, since build tool diagnostics go to
// either stream unpredictably.
func (r *Runner) Run(ctx context.Context, dir string, step model.RunStep, env map[string]string) (string, error) {
	if len(step.Argv) == 0 {
		return "", model.NewCLIError(model.ExitToolchainFailed, "empty toolchain command")
	}

	cmd := exec.CommandContext(ctx, step.Argv[0], step.Argv[1:]...)

	// The descriptor's step.Dir is relative to the stage directory.
	cmd.Dir = dir
	if step.Dir != "" {
		cmd.Dir = filepath.Join(dir, step.Dir)
	}

	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), model.WrapCLIError(
			model.ExitToolchainFailed,
			fmt.Sprintf("command %q failed in %s: %s",
				step.String(), cmd.Dir, strings.TrimSpace(string(output))),
			err,
		)
	}

	return string(output), nil
}

// LookPath reports whether the command's binary can be found in PATH.
// The pipeline uses this for a pre-flight check so a missing toolchain
// fails before any stage runs, not halfway through.
func (r *Runner) LookPath(argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty command")
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return fmt.Errorf("toolchain binary %q not found in PATH: %w", argv[0], err)
	}
	return nil
}
