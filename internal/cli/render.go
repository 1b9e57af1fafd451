// Package cli — render.go implements "stagehand render", which prints
// the Dockerfile (or Compose file) generated from the descriptor without
// touching Docker.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stagehand-cli/stagehand/internal/docker"
	"github.com/stagehand-cli/stagehand/internal/model"
	"github.com/stagehand-cli/stagehand/internal/render"
)

type renderFlags struct {
	dir     string
	compose bool
	output  string
}

// NewRenderCommand creates the "render" cobra command.
func NewRenderCommand() *cobra.Command {
	flags := &renderFlags{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the Dockerfile or Compose file",
		Long: `Generate the Dockerfile the descriptor describes and print it to
stdout, or write it with --output.

With --compose, render a docker-compose.yml for the runtime image
instead. The Compose service references the image tag "stagehand build
--image" would produce, so a build must have run for the tag to resolve.

Examples:
  stagehand render
  stagehand render --output Dockerfile
  stagehand render --compose`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(flags)
		},
	}

	cmd.Flags().StringVar(&flags.dir, "dir", "", "Project directory (default: current directory)")
	cmd.Flags().BoolVar(&flags.compose, "compose", false, "Render a docker-compose.yml instead of a Dockerfile")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Write to a file instead of stdout")

	return cmd
}

func runRender(flags *renderFlags) error {
	root, err := resolveRoot(flags.dir)
	if err != nil {
		return err
	}

	plan, err := loadPlan(root)
	if err != nil {
		return err
	}

	var content []byte
	if flags.compose {
		// The Compose file references the most recently built image.
		// Without a recorded digest the tag falls back to :latest so the
		// rendered file is still usable after a manual tag.
		digest := latestDigest(plan)
		tag := plan.Project + ":latest"
		if digest != "" {
			tag = docker.ImageTag(plan.Project, digest)
		}

		labels := docker.BuildLabels(docker.Metadata{
			Project:   plan.Project,
			Digest:    digest,
			Port:      plan.Runtime.Expose,
			CreatedAt: time.Now(),
		})

		content, err = render.Compose(plan, tag, labels)
		if err != nil {
			return err
		}
	} else {
		dockerfile, err := render.Dockerfile(plan)
		if err != nil {
			return err
		}
		content = []byte(dockerfile)
	}

	if flags.output != "" {
		if err := os.WriteFile(flags.output, content, 0o644); err != nil {
			return model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("failed to write %s", flags.output), err)
		}
		if !IsJSONOutput() {
			fmt.Printf("Wrote %s\n", flags.output)
		} else {
			printJSON(map[string]string{"output": flags.output})
		}
		return nil
	}

	fmt.Print(string(content))
	return nil
}
