// Package buildfile handles locating, parsing, and normalizing
// stagehand.json build descriptors.
//
// The descriptor format supports JSONC (JSON with Comments), so this
// package uses github.com/tidwall/jsonc to strip comments before parsing
// with the standard encoding/json library.
//
// Key responsibilities:
//   - Locate stagehand.json in its standard paths
//   - Load and parse the descriptor (with JSONC support)
//   - Normalize the raw JSON shape into a model.BuildPlan
//   - Validate the descriptor before any stage runs
package buildfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/stagehand-cli/stagehand/internal/model"
)

// DescriptorName is the canonical filename of the build descriptor.
const DescriptorName = "stagehand.json"

// descriptorSearchPaths lists the locations probed by FindDescriptor,
// relative to the project root, in priority order.
var descriptorSearchPaths = []string{
	DescriptorName,
	filepath.Join(".stagehand", DescriptorName),
}

// RawBuildfile represents the raw JSON structure of a stagehand.json file.
// Only the fields stagehand understands are included; other fields are
// silently ignored during parsing.
type RawBuildfile struct {
	// Project is the project name, doubling as the image repository name.
	Project string `json:"project"`

	// Build describes the bundle-producing stage.
	Build *RawStage `json:"build"`

	// Runtime describes the final serving stage.
	Runtime *RawStage `json:"runtime"`
}

// RawStage is the raw JSON form of a single stage. The Copy field uses
// interface{} elements because a copy step may be written either as an
// object or as a "from:to" shorthand string.
type RawStage struct {
	// BaseImage is the container base image for rendered Dockerfiles.
	BaseImage string `json:"baseImage,omitempty"`

	// Dir is the stage source directory relative to the project root.
	// Defaults to "." when omitted.
	Dir string `json:"dir,omitempty"`

	// Workdir is the working directory inside the rendered image.
	Workdir string `json:"workdir,omitempty"`

	// Env sets environment variables for every run step in this stage.
	Env map[string]string `json:"env,omitempty"`

	// Install is the dependency installation command, executed before Run.
	// Kept separate from Run because renderers place it before the source
	// copy to maximize layer cache hits.
	Install []string `json:"install,omitempty"`

	// Manifests lists the dependency manifest files (relative to Dir) the
	// install layer depends on, e.g. ["package*.json"]. Docker COPY globs
	// are allowed. When omitted, renderers infer them from the install
	// command where they can.
	Manifests []string `json:"manifests,omitempty"`

	// Run lists the stage's commands, each an argv array, executed in order.
	Run [][]string `json:"run,omitempty"`

	// Output is the bundle directory a build stage produces, relative to Dir.
	Output string `json:"output,omitempty"`

	// Copy lists filesystem copies into this stage. Each element is either
	// an object {"fromStage","from","to"} or a shorthand string "from:to"
	// (with an optional "stage:from:to" three-part form).
	Copy []interface{} `json:"copy,omitempty"`

	// Expose is the port the runtime stage serves on.
	Expose int `json:"expose,omitempty"`

	// Command is the startup argv of the runtime stage.
	Command []string `json:"command,omitempty"`
}

// FindDescriptor searches for a stagehand.json file starting from the given
// project root. It checks the standard locations in priority order:
//
//  1. <root>/stagehand.json
//  2. <root>/.stagehand/stagehand.json
//
// Returns the absolute path of the first descriptor found, or a CLIError
// with ExitDescriptorNotFound if none exists.
func FindDescriptor(root string) (string, error) {
	for _, rel := range descriptorSearchPaths {
		candidate := filepath.Join(root, rel)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", model.NewCLIError(
		model.ExitDescriptorNotFound,
		fmt.Sprintf("no %s found in %s (searched %s)",
			DescriptorName, root, strings.Join(descriptorSearchPaths, ", ")),
	)
}

// LoadConfig reads a stagehand.json file, strips JSONC comments, and parses
// it into a RawBuildfile struct.
//
// The function uses github.com/tidwall/jsonc to handle JSONC (JSON with
// Comments) format, so descriptors may carry // and /* */ comments and
// trailing commas. After stripping, the standard encoding/json does the
// actual parsing.
//
// Returns a CLIError with ExitDescriptorNotFound if the file does not exist.
func LoadConfig(path string) (*RawBuildfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitDescriptorNotFound,
				fmt.Sprintf("descriptor not found at %s", path),
				err,
			)
		}
		return nil, model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("failed to read %s", path),
			err,
		)
	}

	// jsonc.ToJSON converts JSONC to plain JSON by replacing comments and
	// trailing commas with whitespace, preserving byte offsets so json
	// syntax errors still point at the right location in the source file.
	var raw RawBuildfile
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return nil, model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("failed to parse %s", path),
			err,
		)
	}

	return &raw, nil
}

// ToPlan normalizes a RawBuildfile into a model.BuildPlan rooted at the
// given project root. The root must be absolute — it is recorded on the
// plan so downstream components can resolve stage paths without knowing
// where the descriptor came from.
//
// Normalization rules:
//   - Stage Dir defaults to "."
//   - Install commands are prepended to the stage's run steps
//   - Copy shorthands ("from:to", "stage:from:to") expand to CopySteps
//
// ToPlan does not validate the descriptor; callers run ValidateBuildfile
// first so users see every problem in one pass rather than the first
// normalization failure.
func ToPlan(raw *RawBuildfile, root string) (*model.BuildPlan, error) {
	if raw.Build == nil || raw.Runtime == nil {
		return nil, fmt.Errorf("descriptor must define both build and runtime stages")
	}

	build, err := toStage(raw.Build, model.StageBuild)
	if err != nil {
		return nil, fmt.Errorf("build stage: %w", err)
	}

	runtime, err := toStage(raw.Runtime, model.StageRuntime)
	if err != nil {
		return nil, fmt.Errorf("runtime stage: %w", err)
	}

	return &model.BuildPlan{
		Project: raw.Project,
		Root:    root,
		Build:   *build,
		Runtime: *runtime,
	}, nil
}

// toStage converts a RawStage into a model.Stage of the given kind.
func toStage(raw *RawStage, kind model.StageKind) (*model.Stage, error) {
	dir := raw.Dir
	if dir == "" {
		dir = "."
	}

	steps := make([]model.RunStep, 0, len(raw.Run))
	for _, argv := range raw.Run {
		steps = append(steps, model.RunStep{Argv: argv})
	}

	copies, err := parseCopySteps(raw.Copy)
	if err != nil {
		return nil, err
	}

	return &model.Stage{
		Kind:      kind,
		BaseImage: raw.BaseImage,
		Dir:       dir,
		Workdir:   raw.Workdir,
		Env:       raw.Env,
		Install:   raw.Install,
		Manifests: raw.Manifests,
		Run:       steps,
		Copy:      copies,
		OutputDir: raw.Output,
		Expose:    raw.Expose,
		Command:   raw.Command,
	}, nil
}

// parseCopySteps expands the polymorphic copy list into CopySteps.
//
// Supported element shapes:
//   - map: {"fromStage": "build", "from": "_build", "to": "_build"}
//   - string "from:to": a plain copy from the project source tree
//   - string "stage:from:to": a copy from another stage's output
func parseCopySteps(entries []interface{}) ([]model.CopyStep, error) {
	steps := make([]model.CopyStep, 0, len(entries))

	for i, entry := range entries {
		switch v := entry.(type) {
		case string:
			step, err := parseCopyShorthand(v)
			if err != nil {
				return nil, fmt.Errorf("copy[%d]: %w", i, err)
			}
			steps = append(steps, step)

		case map[string]interface{}:
			// Round-trip through JSON to reuse struct tags rather than
			// hand-extracting each key from the map.
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("copy[%d]: %w", i, err)
			}
			var step model.CopyStep
			if err := json.Unmarshal(data, &step); err != nil {
				return nil, fmt.Errorf("copy[%d]: %w", i, err)
			}
			if step.From == "" || step.To == "" {
				return nil, fmt.Errorf("copy[%d]: both from and to are required", i)
			}
			steps = append(steps, step)

		default:
			return nil, fmt.Errorf("copy[%d]: expected string or object, got %T", i, entry)
		}
	}

	return steps, nil
}

// parseCopyShorthand expands the "from:to" / "stage:from:to" string forms.
func parseCopyShorthand(s string) (model.CopyStep, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return model.CopyStep{}, fmt.Errorf("invalid copy shorthand %q", s)
		}
		return model.CopyStep{From: parts[0], To: parts[1]}, nil
	case 3:
		if parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return model.CopyStep{}, fmt.Errorf("invalid copy shorthand %q", s)
		}
		return model.CopyStep{FromStage: parts[0], From: parts[1], To: parts[2]}, nil
	default:
		return model.CopyStep{}, fmt.Errorf("invalid copy shorthand %q (expected from:to or stage:from:to)", s)
	}
}
