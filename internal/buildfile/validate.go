// validate.go provides validation for stagehand.json descriptors.
//
// Validation runs before any stage executes so users see every problem in
// a single pass. Each failure is reported with the JSON field path that
// caused it, mirroring how JSON schema validators report errors.
package buildfile

import (
	"fmt"
	"path"
	"strings"

	"github.com/stagehand-cli/stagehand/internal/model"
)

// ValidationError represents a specific validation failure in a
// stagehand.json descriptor.
type ValidationError struct {
	// Field is the JSON field path that failed validation (e.g., "runtime.expose").
	Field string

	// Message describes what's wrong with the field value.
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("stagehand.json validation error: %s: %s", e.Field, e.Message)
}

// ValidateBuildfile performs structural checks on a parsed descriptor.
// It returns a list of validation errors (empty list = valid descriptor).
//
// Checks performed:
//   - project name present and valid (lowercase alphanumeric + hyphens)
//   - both stages present; build has an output dir, runtime has a command
//   - expose port in range; build stages must not expose
//   - run/install/command argv arrays non-empty
//   - copy paths relative and confined (no absolute paths, no ".." escapes)
//   - copy fromStage references limited to "build"
func ValidateBuildfile(raw *RawBuildfile) []ValidationError {
	var errs []ValidationError

	// Check 1: Project name.
	if raw.Project == "" {
		errs = append(errs, ValidationError{
			Field:   "project",
			Message: "project name is required",
		})
	} else if err := model.ValidateName(raw.Project); err != nil {
		errs = append(errs, ValidationError{
			Field:   "project",
			Message: err.Error(),
		})
	}

	// Check 2: Both stages must exist. Per-stage checks only run for
	// stages that are present.
	if raw.Build == nil {
		errs = append(errs, ValidationError{
			Field:   "build",
			Message: "build stage is required",
		})
	} else {
		errs = append(errs, validateBuildStage(raw.Build)...)
	}

	if raw.Runtime == nil {
		errs = append(errs, ValidationError{
			Field:   "runtime",
			Message: "runtime stage is required",
		})
	} else {
		errs = append(errs, validateRuntimeStage(raw.Runtime)...)
	}

	return errs
}

// validateBuildStage checks the fields specific to the bundle-producing stage.
func validateBuildStage(stage *RawStage) []ValidationError {
	var errs []ValidationError

	if stage.Output == "" {
		errs = append(errs, ValidationError{
			Field:   "build.output",
			Message: "build stage must declare an output directory",
		})
	} else if !isConfinedRelPath(stage.Output) {
		errs = append(errs, ValidationError{
			Field:   "build.output",
			Message: fmt.Sprintf("output %q must be a relative path inside the stage directory", stage.Output),
		})
	}

	if len(stage.Install) == 0 && len(stage.Run) == 0 {
		errs = append(errs, ValidationError{
			Field:   "build.run",
			Message: "build stage must declare at least one install or run command",
		})
	}

	// Build stages produce files, they do not serve.
	if stage.Expose != 0 {
		errs = append(errs, ValidationError{
			Field:   "build.expose",
			Message: "expose is only valid on the runtime stage",
		})
	}
	if len(stage.Command) != 0 {
		errs = append(errs, ValidationError{
			Field:   "build.command",
			Message: "command is only valid on the runtime stage",
		})
	}

	errs = append(errs, validateStageCommon("build", stage)...)
	return errs
}

// validateRuntimeStage checks the fields specific to the final serving stage.
func validateRuntimeStage(stage *RawStage) []ValidationError {
	var errs []ValidationError

	if len(stage.Command) == 0 {
		errs = append(errs, ValidationError{
			Field:   "runtime.command",
			Message: "runtime stage must declare a startup command",
		})
	}

	if stage.Expose == 0 {
		errs = append(errs, ValidationError{
			Field:   "runtime.expose",
			Message: "runtime stage must declare the serving port",
		})
	} else if stage.Expose < 1 || stage.Expose > 65535 {
		errs = append(errs, ValidationError{
			Field:   "runtime.expose",
			Message: fmt.Sprintf("port %d out of range (1-65535)", stage.Expose),
		})
	}

	if stage.Output != "" {
		errs = append(errs, ValidationError{
			Field:   "runtime.output",
			Message: "output is only valid on the build stage",
		})
	}

	errs = append(errs, validateStageCommon("runtime", stage)...)
	return errs
}

// validateStageCommon checks the fields shared by both stage kinds.
func validateStageCommon(prefix string, stage *RawStage) []ValidationError {
	var errs []ValidationError

	if stage.Dir != "" && !isConfinedRelPath(stage.Dir) {
		errs = append(errs, ValidationError{
			Field:   prefix + ".dir",
			Message: fmt.Sprintf("dir %q must be a relative path inside the project", stage.Dir),
		})
	}

	if len(stage.Install) > 0 && stage.Install[0] == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".install",
			Message: "command argv must not be empty",
		})
	}

	for i, argv := range stage.Run {
		if len(argv) == 0 || argv[0] == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.run[%d]", prefix, i),
				Message: "command argv must not be empty",
			})
		}
	}

	for i, m := range stage.Manifests {
		if !isConfinedRelPath(m) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.manifests[%d]", prefix, i),
				Message: fmt.Sprintf("manifest %q must be a relative path inside the stage directory", m),
			})
		}
	}

	// Copy steps are validated through the shared parser so the shorthand
	// and object forms get identical treatment, then path-checked.
	steps, err := parseCopySteps(stage.Copy)
	if err != nil {
		errs = append(errs, ValidationError{
			Field:   prefix + ".copy",
			Message: err.Error(),
		})
		return errs
	}

	for i, step := range steps {
		field := fmt.Sprintf("%s.copy[%d]", prefix, i)
		if !isConfinedRelPath(step.From) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("from %q must be a relative path", step.From),
			})
		}
		if !isConfinedRelPath(step.To) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("to %q must be a relative path", step.To),
			})
		}
		if step.FromStage != "" && step.FromStage != string(model.StageBuild) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("unknown fromStage %q (only %q is available)", step.FromStage, model.StageBuild),
			})
		}
	}

	return errs
}

// isConfinedRelPath reports whether p is a relative path that stays inside
// its base directory after cleaning. Rejects absolute paths and any path
// whose cleaned form starts with "..".
func isConfinedRelPath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") {
		return false
	}
	clean := path.Clean(p)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}
