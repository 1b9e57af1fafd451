// Package cli — init.go implements "stagehand init", which scaffolds a
// starter stagehand.json in the current (or given) directory.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stagehand-cli/stagehand/internal/buildfile"
	"github.com/stagehand-cli/stagehand/internal/model"
)

// descriptorTemplate is the scaffold written by "stagehand init". It is
// JSONC, so the comments survive and document each field in place.
const descriptorTemplate = `{
  // Project name: lowercase letters, digits, and hyphens.
  "project": %q,

  // Build stage: runs the frontend toolchain and produces the bundle.
  "build": {
    "baseImage": "node:22-alpine",
    "dir": ".",
    "install": ["npm", "ci"],
    // Manifest files the install layer caches on (Docker COPY globs ok).
    "manifests": ["package*.json"],
    "run": [
      ["npm", "run", "build"]
    ],
    // Directory (relative to "dir") the toolchain writes the bundle to.
    "output": "_build"
  },

  // Runtime stage: serves the bundle.
  "runtime": {
    "baseImage": "python:3.12-slim",
    "copy": [
      // stage:from:to — copy the bundle out of the build stage.
      "build:_build:_build",
      "api:api"
    ],
    "install": ["pip", "install", "-r", "api/requirements.txt"],
    "expose": 8000,
    "command": ["uvicorn", "api.index:app", "--host", "0.0.0.0", "--port", "8000", "--reload"]
  }
}
`

type initFlags struct {
	// dir is the directory to scaffold into.
	dir string

	// force overwrites an existing descriptor.
	force bool
}

// NewInitCommand creates the "init" cobra command.
func NewInitCommand() *cobra.Command {
	flags := &initFlags{}

	cmd := &cobra.Command{
		Use:   "init [project-name]",
		Short: "Scaffold a stagehand.json descriptor",
		Long: `Write a commented starter stagehand.json into the project directory.

The project name defaults to the directory's base name.

Examples:
  stagehand init
  stagehand init my-app
  stagehand init --dir ./frontend my-app`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runInit(flags, name)
		},
	}

	cmd.Flags().StringVar(&flags.dir, "dir", "", "Project directory (default: current directory)")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Overwrite an existing descriptor")

	return cmd
}

func runInit(flags *initFlags, name string) error {
	root, err := resolveRoot(flags.dir)
	if err != nil {
		return err
	}

	if name == "" {
		name = filepath.Base(root)
	}
	if err := model.ValidateName(name); err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("invalid project name %q", name), err)
	}

	path := filepath.Join(root, buildfile.DescriptorName)
	if _, err := os.Stat(path); err == nil && !flags.force {
		return model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("%s already exists (use --force to overwrite)", path))
	}

	if err := os.WriteFile(path, []byte(fmt.Sprintf(descriptorTemplate, name)), 0o644); err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to write %s", path), err)
	}

	if IsJSONOutput() {
		printJSON(map[string]string{"descriptor": path, "project": name})
	} else {
		fmt.Printf("Created %s\n", path)
		fmt.Println("Edit the build and runtime stages, then run: stagehand build")
	}

	return nil
}
