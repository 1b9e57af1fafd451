// pipeline.go orchestrates the two-stage build: toolchain execution for
// the build stage, bundle verification, and runtime tree assembly.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/stagehand-cli/stagehand/internal/bundle"
	"github.com/stagehand-cli/stagehand/internal/model"
)

// StagingDirName is where the assembled runtime tree is written,
// relative to the project root. The directory is recreated on every run.
const StagingDirName = ".stagehand/runtime"

// Result captures the outputs of a successful pipeline run.
type Result struct {
	// Manifest is the scanned inventory of the asset bundle.
	Manifest *model.BundleManifest

	// StagingDir is the absolute path of the assembled runtime tree.
	StagingDir string

	// Duration is the wall-clock time of the whole run.
	Duration time.Duration
}

// Pipeline runs a BuildPlan's stages in order.
//
// The sequence is fixed and linear:
//
//	build stage commands → bundle scan → runtime copy steps → runtime commands
//
// Any failure aborts immediately; there is no cleanup of partial output
// beyond the staging directory being recreated on the next run. This
// mirrors how container build tools treat a failed layer.
type Pipeline struct {
	plan   *model.BuildPlan
	runner *Runner

	// Logf receives progress lines when non-nil. The CLI wires this to
	// its verbose logger; tests leave it nil.
	Logf func(format string, args ...interface{})
}

// New creates a Pipeline for the given plan.
func New(plan *model.BuildPlan) *Pipeline {
	return &Pipeline{
		plan:   plan,
		runner: NewRunner(),
	}
}

// Run executes the full pipeline and returns the run's outputs.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	if err := p.preflight(); err != nil {
		return nil, err
	}

	// Stage 1: build. Commands run in the stage directory with the
	// stage's env; declaration order, fail-fast.
	buildDir := filepath.Join(p.plan.Root, p.plan.Build.Dir)
	for _, step := range p.plan.Build.Steps() {
		p.logf("build: %s", step.String())
		if _, err := p.runner.Run(ctx, buildDir, step, p.plan.Build.Env); err != nil {
			return nil, err
		}
	}

	// The build stage's contract is its output directory. Scanning also
	// yields the digest everything downstream is keyed on.
	manifest, err := bundle.Scan(p.plan.BundlePath())
	if err != nil {
		return nil, err
	}
	p.logf("bundle: %d files, %d bytes, digest %s",
		len(manifest.Files), manifest.TotalBytes, manifest.ShortDigest())

	// Stage 2: runtime assembly. Copy steps first (they define the tree),
	// then the stage's own commands run inside the assembled tree.
	stagingDir, err := p.assemble()
	if err != nil {
		return nil, err
	}

	for _, step := range p.plan.Runtime.Steps() {
		p.logf("runtime: %s", step.String())
		if _, err := p.runner.Run(ctx, stagingDir, step, p.plan.Runtime.Env); err != nil {
			return nil, err
		}
	}

	return &Result{
		Manifest:   manifest,
		StagingDir: stagingDir,
		Duration:   time.Since(start),
	}, nil
}

// preflight verifies every toolchain binary exists before any stage runs.
// A missing binary halfway through a build wastes the completed steps.
func (p *Pipeline) preflight() error {
	for _, step := range p.plan.Build.Steps() {
		if err := p.runner.LookPath(step.Argv); err != nil {
			return model.WrapCLIError(model.ExitToolchainFailed, "build stage pre-flight failed", err)
		}
	}
	for _, step := range p.plan.Runtime.Steps() {
		if err := p.runner.LookPath(step.Argv); err != nil {
			return model.WrapCLIError(model.ExitToolchainFailed, "runtime stage pre-flight failed", err)
		}
	}
	return nil
}

// assemble recreates the staging directory and executes the runtime
// stage's copy steps into it, in declaration order.
//
// Source resolution:
//   - FromStage "build": relative to the build stage directory, so
//     "_build" refers to the bundle the stage just produced
//   - no FromStage: relative to the project root (a plain source copy)
func (p *Pipeline) assemble() (string, error) {
	stagingDir := filepath.Join(p.plan.Root, filepath.FromSlash(StagingDirName))

	// Recreate rather than merge: leftovers from a previous run must not
	// leak into this one.
	if err := os.RemoveAll(stagingDir); err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError, "failed to clear staging directory", err)
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError, "failed to create staging directory", err)
	}

	for _, step := range p.plan.Runtime.Copy {
		src := p.resolveCopySource(step)
		dst := filepath.Join(stagingDir, filepath.FromSlash(step.To))

		p.logf("copy: %s", step.String())
		if err := copyTree(src, dst); err != nil {
			return "", model.WrapCLIError(
				model.ExitGeneralError,
				fmt.Sprintf("copy step %s failed", step.String()),
				err,
			)
		}
	}

	return stagingDir, nil
}

// resolveCopySource maps a copy step's From path to an absolute path.
func (p *Pipeline) resolveCopySource(step model.CopyStep) string {
	if step.FromStage == string(model.StageBuild) {
		return filepath.Join(p.plan.Root, p.plan.Build.Dir, filepath.FromSlash(step.From))
	}
	return filepath.Join(p.plan.Root, filepath.FromSlash(step.From))
}

// logf forwards to the configured logger, if any.
func (p *Pipeline) logf(format string, args ...interface{}) {
	if p.Logf != nil {
		p.Logf(format, args...)
	}
}

// copyTree copies src (a file or directory) to dst, creating parent
// directories as needed. Regular files and directories only; symlinks
// are skipped for the same reason the bundle scanner rejects them.
func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return copyFile(src, dst, info.Mode())
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}

		fileInfo, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, fileInfo.Mode())
	})
}

// copyFile copies a single regular file, preserving its permission bits.
func copyFile(src, dst string, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
