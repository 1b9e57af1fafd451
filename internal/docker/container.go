// container.go implements container lifecycle operations for the
// stagehand CLI: starting a runtime container from a built image,
// discovering managed containers, and stopping or removing them.
//
// All managed containers are identified by the "stagehand.managed-by"
// label, which filters them from unrelated containers on the same host.
package docker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"

	"github.com/stagehand-cli/stagehand/internal/model"
)

// ListManagedContainers queries the Docker daemon for all containers that
// carry the "stagehand.managed-by=stagehand" label. It returns both
// running and stopped containers, because stopped ones still need to be
// tracked for "stagehand clean".
//
// Filtering happens server-side via the Docker API label filter, which is
// more efficient than listing everything and filtering in Go.
func ListManagedContainers(ctx context.Context, cli *Client) ([]model.ContainerInfo, error) {
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)

	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	result := make([]model.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		result = append(result, containerToInfo(c))
	}

	return result, nil
}

// containerToInfo converts a Docker API container struct to the domain
// model. This is a pure mapping function with no side effects.
//
// The Docker API returns container names with a leading "/" prefix
// (e.g., "/my-app"), which we strip for cleaner CLI output.
func containerToInfo(c types.Container) model.ContainerInfo {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	return model.ContainerInfo{
		ContainerID:   c.ID,
		ContainerName: name,
		Image:         c.Image,
		Status:        c.State,
		Labels:        c.Labels,
	}
}

// RunContainer starts a detached runtime container from a built image
// using "docker run -d". The port mapping publishes the runtime stage's
// exposed port on the requested host port, and the labels from
// BuildLabels make the container discoverable via ListManagedContainers.
//
// We shell out rather than use the SDK's ContainerCreate + ContainerStart
// workflow because "docker run" accepts the same flags users know, while
// the SDK requires constructing Config/HostConfig structs by hand.
//
// Returns the trimmed container ID printed by docker run.
func RunContainer(ctx context.Context, imageTag, containerName string, port model.PortSpec, labels map[string]string) (string, error) {
	args := make([]string, 0, len(labels)*2+8)
	args = append(args, "run", "-d", "--name", containerName)
	if port.ContainerPort != 0 {
		args = append(args, "-p",
			strconv.Itoa(port.HostPort)+":"+strconv.Itoa(port.ContainerPort))
	}
	for k, v := range labels {
		args = append(args, "--label", k+"="+v)
	}
	args = append(args, imageTag)

	output, err := runDockerOutput(ctx, args)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(output), nil
}

// StopContainer stops a running container by its ID using the Docker SDK.
// Docker sends SIGTERM and, after its default timeout (typically 10
// seconds), SIGKILL.
func StopContainer(ctx context.Context, cli *Client, containerID string) error {
	err := cli.Inner().ContainerStop(ctx, containerID, container.StopOptions{})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to stop container %q", containerID),
			err,
		)
	}
	return nil
}

// RemoveContainer removes a container by its ID using the Docker SDK.
// The container must be stopped first unless force is true, in which case
// Docker kills it before removal.
func RemoveContainer(ctx context.Context, cli *Client, containerID string, force bool) error {
	err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force: force,
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %q", containerID),
			err,
		)
	}
	return nil
}
