// Package cli — build.go implements "stagehand build", which runs the
// build pipeline: toolchain commands, bundle scan, runtime assembly, and
// optionally a Docker image build. Every run is recorded in the history
// database, failures included.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/stagehand-cli/stagehand/internal/config"
	"github.com/stagehand-cli/stagehand/internal/docker"
	"github.com/stagehand-cli/stagehand/internal/history"
	"github.com/stagehand-cli/stagehand/internal/model"
	"github.com/stagehand-cli/stagehand/internal/pipeline"
	"github.com/stagehand-cli/stagehand/internal/render"
)

type buildFlags struct {
	dir   string
	image bool
}

// NewBuildCommand creates the "build" cobra command.
func NewBuildCommand() *cobra.Command {
	flags := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the build pipeline",
		Long: `Run the descriptor's build stage, scan the resulting bundle, and
assemble the runtime tree under .stagehand/runtime.

With --image, additionally render a Dockerfile and build a Docker image
tagged "<project>:<digest prefix>" carrying stagehand management labels.

Examples:
  stagehand build
  stagehand build --image
  stagehand build --dir ./frontend --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.dir, "dir", "", "Project directory (default: current directory)")
	cmd.Flags().BoolVar(&flags.image, "image", false, "Build a Docker image from the result")

	return cmd
}

func runBuild(ctx context.Context, flags *buildFlags) error {
	root, err := resolveRoot(flags.dir)
	if err != nil {
		return err
	}

	plan, err := loadPlan(root)
	if err != nil {
		return err
	}

	store, err := openHistoryStore()
	if err != nil {
		// History is bookkeeping; a broken database should not block
		// builds. Log and continue without it.
		VerboseLog("Warning: history disabled: %v", err)
		store = nil
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	rec := &model.BuildRecord{
		Project:   plan.Project,
		Status:    model.StatusRunning,
		StartedAt: time.Now().UTC(),
	}

	pl := pipeline.New(plan)
	pl.Logf = VerboseLog

	result, err := pl.Run(ctx)
	rec.Duration = time.Since(rec.StartedAt)
	if err != nil {
		rec.Status = model.StatusFailed
		rec.Error = err.Error()
		recordBuild(ctx, store, rec)
		return err
	}

	rec.Status = model.StatusSucceeded
	rec.Digest = result.Manifest.Digest

	if flags.image {
		tag, err := buildImage(ctx, plan, result)
		rec.Duration = time.Since(rec.StartedAt)
		if err != nil {
			rec.Status = model.StatusFailed
			rec.Error = err.Error()
			recordBuild(ctx, store, rec)
			return err
		}
		rec.ImageTag = tag
	}

	recordBuild(ctx, store, rec)
	printBuildResult(rec, result)

	return nil
}

// buildImage renders the Dockerfile into the project's .stagehand
// directory and runs docker build with the project root as context, so
// the build stage's COPY of the source tree resolves.
func buildImage(ctx context.Context, plan *model.BuildPlan, result *pipeline.Result) (string, error) {
	cli, err := docker.NewClient()
	if err != nil {
		return "", err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return "", err
	}
	VerboseLog("Connected to Docker daemon")

	dockerfile, err := render.Dockerfile(plan)
	if err != nil {
		return "", err
	}

	dockerfilePath := filepath.Join(plan.Root, ".stagehand", "Dockerfile")
	if err := os.MkdirAll(filepath.Dir(dockerfilePath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create .stagehand directory: %w", err)
	}
	if err := os.WriteFile(dockerfilePath, []byte(dockerfile), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dockerfilePath, err)
	}

	tag := docker.ImageTag(plan.Project, result.Manifest.Digest)
	labels := docker.BuildLabels(docker.Metadata{
		Project:   plan.Project,
		Digest:    result.Manifest.Digest,
		Port:      plan.Runtime.Expose,
		CreatedAt: time.Now(),
	})

	VerboseLog("Building image %s", tag)
	if err := docker.BuildImage(ctx, plan.Root, dockerfilePath, tag, labels); err != nil {
		return "", err
	}

	return tag, nil
}

// openHistoryStore opens the history database at the configured path.
func openHistoryStore() (*history.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	path := cfg.HistoryDBPath
	if path == "" {
		path, err = history.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	return history.Open(path)
}

// recordBuild inserts the record, tolerating a nil store and logging
// (rather than failing) on insert errors.
func recordBuild(ctx context.Context, store *history.Store, rec *model.BuildRecord) {
	if store == nil {
		return
	}
	if err := store.Insert(ctx, rec); err != nil {
		VerboseLog("Warning: failed to record build: %v", err)
	}
}

func printBuildResult(rec *model.BuildRecord, result *pipeline.Result) {
	if IsJSONOutput() {
		printJSON(map[string]interface{}{
			"record":     rec,
			"stagingDir": result.StagingDir,
			"files":      len(result.Manifest.Files),
			"totalBytes": result.Manifest.TotalBytes,
		})
		return
	}

	fmt.Printf("Build succeeded in %s\n", rec.Duration.Round(time.Millisecond))
	fmt.Printf("  Bundle: %d files, %d bytes, digest %s\n",
		len(result.Manifest.Files), result.Manifest.TotalBytes, result.Manifest.ShortDigest())
	fmt.Printf("  Runtime tree: %s\n", result.StagingDir)
	if rec.ImageTag != "" {
		fmt.Printf("  Image: %s\n", rec.ImageTag)
	}
}
