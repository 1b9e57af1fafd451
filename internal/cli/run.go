// Package cli — run.go implements "stagehand run", which starts a
// container from the most recently built image.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stagehand-cli/stagehand/internal/docker"
	"github.com/stagehand-cli/stagehand/internal/model"
	"github.com/stagehand-cli/stagehand/internal/port"
)

type runFlags struct {
	dir      string
	hostPort int
	name     string
}

// NewRunCommand creates the "run" cobra command.
func NewRunCommand() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the built image in a container",
		Long: `Start a detached container from the image the last "stagehand build
--image" produced, publishing the runtime stage's exposed port.

The host port defaults to the container port; the command refuses to
start when the host port is already in use, listing nearby occupied
ports to help pick another.

Examples:
  stagehand run
  stagehand run --host-port 9000
  stagehand run --name my-app-preview`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.dir, "dir", "", "Project directory (default: current directory)")
	cmd.Flags().IntVar(&flags.hostPort, "host-port", 0, "Host port to publish (default: the container port)")
	cmd.Flags().StringVar(&flags.name, "name", "", "Container name (default: <project>)")

	return cmd
}

func runRun(ctx context.Context, flags *runFlags) error {
	root, err := resolveRoot(flags.dir)
	if err != nil {
		return err
	}

	plan, err := loadPlan(root)
	if err != nil {
		return err
	}

	digest := latestDigest(plan)
	if digest == "" {
		return model.NewCLIError(model.ExitBundleInvalid,
			"no built bundle found — run \"stagehand build --image\" first")
	}
	tag := docker.ImageTag(plan.Project, digest)

	hostPort := flags.hostPort
	if hostPort == 0 {
		hostPort = plan.Runtime.Expose
	}

	spec := model.PortSpec{
		ContainerPort: plan.Runtime.Expose,
		HostPort:      hostPort,
		Protocol:      "tcp",
	}
	if err := spec.Validate(); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid port mapping", err)
	}

	// Preflight the host port so docker run fails here with a clear
	// message instead of a daemon bind error.
	scanner := port.NewScanner()
	if !scanner.IsPortAvailable(hostPort, "tcp") {
		used := scanner.GetUsedPorts(hostPort, hostPort+9)
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("host port %d is already in use (occupied nearby: %v)", hostPort, used))
	}

	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return err
	}
	VerboseLog("Connected to Docker daemon")

	name := flags.name
	if name == "" {
		name = plan.Project
	}

	labels := docker.BuildLabels(docker.Metadata{
		Project:   plan.Project,
		Digest:    digest,
		Port:      plan.Runtime.Expose,
		CreatedAt: time.Now(),
	})

	containerID, err := docker.RunContainer(ctx, tag, name, spec, labels)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		printJSON(map[string]interface{}{
			"containerId": containerID,
			"name":        name,
			"image":       tag,
			"url":         fmt.Sprintf("http://localhost:%d", hostPort),
		})
	} else {
		fmt.Printf("Started %s (%s) from %s\n", name, shortID(containerID), tag)
		fmt.Printf("  http://localhost:%d\n", hostPort)
	}

	return nil
}

// shortID truncates a container ID to the familiar 12-char form.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
