// Package cli — publish.go implements "stagehand publish", which
// uploads the built bundle to the configured S3-compatible bucket.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stagehand-cli/stagehand/internal/bundle"
	"github.com/stagehand-cli/stagehand/internal/config"
	"github.com/stagehand-cli/stagehand/internal/model"
	"github.com/stagehand-cli/stagehand/internal/publish"
)

type publishFlags struct {
	dir string
}

// NewPublishCommand creates the "publish" cobra command.
func NewPublishCommand() *cobra.Command {
	flags := &publishFlags{}

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload the built bundle to object storage",
		Long: `Upload every file of the built bundle to the configured S3 bucket
under "<project>/<digest>/", with a manifest.json alongside.

The target bucket and credentials come from the stagehand config file
or STAGEHAND_S3_* environment variables.

Examples:
  stagehand publish
  STAGEHAND_S3_BUCKET=releases stagehand publish --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.dir, "dir", "", "Project directory (default: current directory)")

	return cmd
}

func runPublish(ctx context.Context, flags *publishFlags) error {
	root, err := resolveRoot(flags.dir)
	if err != nil {
		return err
	}

	plan, err := loadPlan(root)
	if err != nil {
		return err
	}

	manifest, err := bundle.Scan(plan.BundlePath())
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return model.WrapCLIError(model.ExitPublishFailed, "failed to load stagehand config", err)
	}

	client, err := publish.NewS3Client(cfg)
	if err != nil {
		return err
	}

	publisher := publish.NewPublisher(client)
	publisher.Logf = VerboseLog

	if err := publisher.Publish(ctx, plan.Project, plan.BundlePath(), manifest); err != nil {
		return err
	}

	prefix := fmt.Sprintf("%s/%s/", plan.Project, manifest.Digest)
	if IsJSONOutput() {
		printJSON(map[string]interface{}{
			"bucket": cfg.S3Bucket,
			"prefix": prefix,
			"files":  len(manifest.Files),
			"bytes":  manifest.TotalBytes,
		})
	} else {
		fmt.Printf("Published %d file(s) (%d bytes) to s3://%s/%s\n",
			len(manifest.Files), manifest.TotalBytes, cfg.S3Bucket, prefix)
	}

	return nil
}
