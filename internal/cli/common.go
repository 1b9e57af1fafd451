// Package cli — common.go holds helpers shared by multiple subcommands:
// descriptor resolution and plan loading.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stagehand-cli/stagehand/internal/buildfile"
	"github.com/stagehand-cli/stagehand/internal/bundle"
	"github.com/stagehand-cli/stagehand/internal/model"
)

// resolveRoot turns the --dir flag into an absolute project root,
// defaulting to the current working directory.
func resolveRoot(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve working directory: %w", err)
		}
		return wd, nil
	}
	return filepath.Abs(dir)
}

// loadPlan finds the project descriptor under root, parses and validates
// it, and converts it into a build plan. Validation failures are
// collapsed into a single CLIError listing every finding, so users can
// fix all problems in one pass.
func loadPlan(root string) (*model.BuildPlan, error) {
	path, err := buildfile.FindDescriptor(root)
	if err != nil {
		return nil, err
	}
	VerboseLog("Using descriptor %s", path)

	raw, err := buildfile.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if errs := buildfile.ValidateBuildfile(raw); len(errs) > 0 {
		lines := make([]string, 0, len(errs))
		for _, e := range errs {
			lines = append(lines, "  - "+e.Error())
		}
		return nil, model.NewCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("invalid %s:\n%s", buildfile.DescriptorName, strings.Join(lines, "\n")),
		)
	}

	return buildfile.ToPlan(raw, root)
}

// latestDigest scans the built bundle (if present on disk) and returns
// its digest. Commands that only reference a previous build use this
// rather than requiring a fresh pipeline run; an empty string means no
// usable bundle exists.
func latestDigest(plan *model.BuildPlan) string {
	manifest, err := bundle.Scan(plan.BundlePath())
	if err != nil {
		return ""
	}
	return manifest.Digest
}

// printJSON writes a value to stdout as indented JSON. Used by every
// subcommand's --json output path.
func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to encode JSON output: %v\n", err)
		return
	}
	fmt.Println(string(data))
}
