// Package cli — clean.go implements "stagehand clean", which removes
// stagehand-managed Docker containers and images, the project's staging
// directory, and optionally old history records.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/stagehand-cli/stagehand/internal/docker"
	"github.com/stagehand-cli/stagehand/internal/model"
	"github.com/stagehand-cli/stagehand/internal/pipeline"
)

type cleanFlags struct {
	dir     string
	all     bool
	images  bool
	force   bool
	history string
}

// NewCleanCommand creates the "clean" cobra command.
func NewCleanCommand() *cobra.Command {
	flags := &cleanFlags{}

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove managed containers, images, and build output",
		Long: `Stop and remove stagehand-managed containers for this project and
delete the staging directory. With --images, managed images are removed
too; --all cleans every stagehand-managed resource regardless of
project.

Containers and images are discovered by their stagehand labels, never by
name, so unrelated resources are untouched.

Examples:
  stagehand clean
  stagehand clean --images
  stagehand clean --all --force
  stagehand clean --history 720h`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.dir, "dir", "", "Project directory (default: current directory)")
	cmd.Flags().BoolVar(&flags.all, "all", false, "Clean resources of every project, not just this one")
	cmd.Flags().BoolVar(&flags.images, "images", false, "Also remove managed images")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Force-remove running containers and tagged images")
	cmd.Flags().StringVar(&flags.history, "history", "", "Also prune history records older than this duration")

	return cmd
}

func runClean(ctx context.Context, flags *cleanFlags) error {
	root, err := resolveRoot(flags.dir)
	if err != nil {
		return err
	}

	// Project scoping needs the descriptor; --all does not.
	project := ""
	if !flags.all {
		plan, err := loadPlan(root)
		if err != nil {
			return err
		}
		project = plan.Project
	}

	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return err
	}

	removedContainers, err := cleanContainers(ctx, cli, project, flags.force)
	if err != nil {
		return err
	}

	removedImages := 0
	if flags.images {
		removedImages, err = cleanImages(ctx, cli, project, flags.force)
		if err != nil {
			return err
		}
	}

	// The staging tree is per-project; skip it in --all mode where no
	// descriptor was loaded.
	stagingRemoved := false
	if project != "" {
		staging := filepath.Join(root, pipeline.StagingDirName)
		if _, err := os.Stat(staging); err == nil {
			if err := os.RemoveAll(staging); err != nil {
				return model.WrapCLIError(model.ExitGeneralError,
					fmt.Sprintf("failed to remove %s", staging), err)
			}
			stagingRemoved = true
		}
	}

	prunedRecords := int64(0)
	if flags.history != "" {
		age, err := time.ParseDuration(flags.history)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("invalid --history duration %q", flags.history), err)
		}
		store, err := openHistoryStore()
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to open build history", err)
		}
		defer func() { _ = store.Close() }()

		prunedRecords, err = store.Prune(ctx, time.Now().Add(-age))
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to prune build history", err)
		}
	}

	if IsJSONOutput() {
		printJSON(map[string]interface{}{
			"containersRemoved": removedContainers,
			"imagesRemoved":     removedImages,
			"stagingRemoved":    stagingRemoved,
			"recordsPruned":     prunedRecords,
		})
	} else {
		fmt.Printf("Removed %d container(s), %d image(s)\n", removedContainers, removedImages)
		if stagingRemoved {
			fmt.Printf("Removed %s\n", filepath.Join(root, pipeline.StagingDirName))
		}
		if flags.history != "" {
			fmt.Printf("Pruned %d history record(s)\n", prunedRecords)
		}
	}

	return nil
}

// cleanContainers stops and removes managed containers, optionally
// scoped to one project. Returns how many were removed.
func cleanContainers(ctx context.Context, cli *docker.Client, project string, force bool) (int, error) {
	containers, err := docker.ListManagedContainers(ctx, cli)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, c := range containers {
		if project != "" && c.Labels[docker.LabelProject] != project {
			continue
		}

		if c.Status == "running" {
			if !force {
				VerboseLog("Skipping running container %s (use --force)", c.ContainerName)
				continue
			}
			if err := docker.StopContainer(ctx, cli, c.ContainerID); err != nil {
				return removed, err
			}
		}

		if err := docker.RemoveContainer(ctx, cli, c.ContainerID, force); err != nil {
			return removed, err
		}
		VerboseLog("Removed container %s", c.ContainerName)
		removed++
	}

	return removed, nil
}

// cleanImages removes managed images, optionally scoped to one project.
func cleanImages(ctx context.Context, cli *docker.Client, project string, force bool) (int, error) {
	images, err := docker.ListManagedImages(ctx, cli)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, img := range images {
		if project != "" && img.Labels[docker.LabelProject] != project {
			continue
		}

		if err := docker.RemoveImage(ctx, cli, img.ImageID, force); err != nil {
			return removed, err
		}
		VerboseLog("Removed image %s", img.ImageID)
		removed++
	}

	return removed, nil
}
