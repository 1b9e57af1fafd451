// image.go implements Docker image operations for the stagehand CLI:
// building the runtime image from a rendered Dockerfile, listing managed
// images, and removing them during cleanup.
//
// Image builds shell out to the docker CLI rather than using the SDK's
// ImageBuild endpoint, because the CLI handles build context tar-ing,
// BuildKit progress output, and credential helpers for us. Listing and
// removal use the SDK directly.
package docker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"

	"github.com/stagehand-cli/stagehand/internal/model"
)

// ImageTag returns the canonical image reference for a project build:
// "<project>:<first 12 digest chars>". Tagging by digest prefix makes
// image tags stable across rebuilds of identical bundles.
func ImageTag(project, digest string) string {
	short := digest
	if len(short) > 12 {
		short = short[:12]
	}
	return project + ":" + short
}

// BuildImage builds a Docker image from a rendered Dockerfile.
// It executes "docker build -f <dockerfile> -t <tag> --label k=v ... <contextDir>"
// as a child process.
//
// The labels parameter should come from BuildLabels so the resulting
// image is discoverable via ListManagedImages.
//
// Returns a CLIError with ExitDockerNotRunning if the command fails.
func BuildImage(ctx context.Context, contextDir, dockerfilePath, tag string, labels map[string]string) error {
	args := make([]string, 0, len(labels)*2+6)
	args = append(args, "build", "-f", dockerfilePath, "-t", tag)
	for k, v := range labels {
		args = append(args, "--label", k+"="+v)
	}
	args = append(args, contextDir)

	return runDocker(ctx, contextDir, args)
}

// ListManagedImages queries the Docker daemon for all images that carry
// the "stagehand.managed-by=stagehand" label. Filtering happens
// server-side via the Docker API label filter.
func ListManagedImages(ctx context.Context, cli *Client) ([]model.ImageInfo, error) {
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)

	images, err := cli.Inner().ImageList(ctx, image.ListOptions{
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker images",
			err,
		)
	}

	result := make([]model.ImageInfo, 0, len(images))
	for _, img := range images {
		result = append(result, model.ImageInfo{
			ImageID:   img.ID,
			Tags:      img.RepoTags,
			Labels:    img.Labels,
			CreatedAt: time.Unix(img.Created, 0).UTC(),
		})
	}

	return result, nil
}

// RemoveImage removes an image by ID or reference using the Docker SDK.
// When force is true, the image is removed even if tagged in multiple
// repositories or referenced by stopped containers.
func RemoveImage(ctx context.Context, cli *Client, imageID string, force bool) error {
	_, err := cli.Inner().ImageRemove(ctx, imageID, image.RemoveOptions{
		Force: force,
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove image %q", imageID),
			err,
		)
	}
	return nil
}

// runDocker executes a docker CLI command as a child process in the given
// working directory. It captures combined output for error reporting.
//
// On failure it returns a CLIError with ExitDockerNotRunning, because
// docker CLI failures most commonly indicate Docker daemon problems.
func runDocker(ctx context.Context, dir string, args []string) error {
	_, err := runDockerIn(ctx, dir, args)
	return err
}

// runDockerOutput is runDocker for commands whose stdout the caller needs
// (e.g., the container ID printed by "docker run -d"). Runs in the
// current directory.
func runDockerOutput(ctx context.Context, args []string) (string, error) {
	return runDockerIn(ctx, "", args)
}

func runDockerIn(ctx context.Context, dir string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("docker %s failed: %s", args[0], strings.TrimSpace(string(output))),
			err,
		)
	}

	return string(output), nil
}
