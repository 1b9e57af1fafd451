// Package render turns a BuildPlan into container build artifacts: a
// multi-stage Dockerfile and a Docker Compose file for the runtime image.
//
// Rendering is deterministic — the same plan always produces byte-identical
// output — so generated files can be committed and diffed. Environment
// variables and copy steps are emitted in a stable order.
package render

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/stagehand-cli/stagehand/internal/model"
)

// header is the first line of every generated file. The marker lets the
// clean command (and humans) tell generated files from hand-written ones.
const header = "# Generated by stagehand — do not edit."

// defaultWorkdir is used when a stage does not declare a working directory.
const defaultWorkdir = "/app"

// Dockerfile renders the plan as a two-stage Dockerfile equivalent to
// running the pipeline inside containers:
//
//	FROM <build.baseImage> AS build
//	WORKDIR ...
//	COPY <build.dir>/<manifests> ./
//	RUN <install>
//	COPY <build.dir>/ ./
//	RUN <run steps>
//
//	FROM <runtime.baseImage>
//	WORKDIR ...
//	COPY --from=build ... / COPY ...
//	RUN ..., EXPOSE, CMD
//
// Stage-scoped copy sources resolve against the build stage's workdir,
// matching where the in-container build wrote its output.
func Dockerfile(plan *model.BuildPlan) (string, error) {
	if plan.Build.BaseImage == "" {
		return "", fmt.Errorf("build stage has no baseImage — required for Dockerfile rendering")
	}
	if plan.Runtime.BaseImage == "" {
		return "", fmt.Errorf("runtime stage has no baseImage — required for Dockerfile rendering")
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")

	writeBuildStage(&b, &plan.Build)
	b.WriteString("\n")
	writeRuntimeStage(&b, plan)

	return b.String(), nil
}

// writeBuildStage emits the bundle-producing stage.
func writeBuildStage(b *strings.Builder, stage *model.Stage) {
	fmt.Fprintf(b, "FROM %s AS %s\n", stage.BaseImage, model.StageBuild)
	fmt.Fprintf(b, "WORKDIR %s\n", stageWorkdir(stage))

	writeEnv(b, stage.Env)

	// The stage directory becomes the build context content. Trailing
	// slash on the source keeps Docker's copy-contents semantics.
	srcDir := stage.Dir
	if srcDir == "" || srcDir == "." {
		srcDir = "."
	}

	// Dependency install gets its own layer ahead of the source copy,
	// keyed on the manifest files, so source edits do not invalidate the
	// installed dependencies.
	manifests := stage.Manifests
	if len(manifests) == 0 && len(stage.Install) > 0 {
		manifests = inferManifests(stage.Install[0])
	}
	if len(stage.Install) > 0 && len(manifests) > 0 {
		sources := make([]string, len(manifests))
		for i, m := range manifests {
			sources[i] = path.Join(srcDir, m)
		}
		fmt.Fprintf(b, "COPY %s ./\n", strings.Join(sources, " "))
		fmt.Fprintf(b, "RUN %s\n", model.RunStep{Argv: stage.Install}.String())
		fmt.Fprintf(b, "COPY %s/ ./\n", srcDir)
	} else {
		// No manifests to key the install layer on; the source copy has
		// to come first for the install command to see its inputs.
		fmt.Fprintf(b, "COPY %s/ ./\n", srcDir)
		if len(stage.Install) > 0 {
			fmt.Fprintf(b, "RUN %s\n", model.RunStep{Argv: stage.Install}.String())
		}
	}

	for _, step := range stage.Run {
		fmt.Fprintf(b, "RUN %s\n", step.String())
	}
}

// inferManifests maps well-known install tools to their dependency
// manifest files. Returns nil for tools it does not recognize; the
// descriptor's explicit manifests field overrides this entirely.
func inferManifests(tool string) []string {
	switch path.Base(tool) {
	case "npm", "pnpm", "bun":
		return []string{"package*.json"}
	case "yarn":
		return []string{"package.json"}
	case "pip", "pip3":
		return []string{"requirements*.txt"}
	case "poetry", "uv":
		return []string{"pyproject.toml"}
	default:
		return nil
	}
}

// writeRuntimeStage emits the final serving stage.
func writeRuntimeStage(b *strings.Builder, plan *model.BuildPlan) {
	stage := &plan.Runtime

	fmt.Fprintf(b, "FROM %s\n", stage.BaseImage)
	fmt.Fprintf(b, "WORKDIR %s\n", stageWorkdir(stage))

	writeEnv(b, stage.Env)

	buildWorkdir := stageWorkdir(&plan.Build)
	for _, step := range stage.Copy {
		if step.FromStage != "" {
			// In-container stage output lives under the build stage's
			// workdir, not the host filesystem.
			src := path.Join(buildWorkdir, step.From)
			fmt.Fprintf(b, "COPY --from=%s %s ./%s\n", step.FromStage, src, step.To)
			continue
		}
		fmt.Fprintf(b, "COPY %s ./%s\n", step.From, step.To)
	}

	if len(stage.Install) > 0 {
		fmt.Fprintf(b, "RUN %s\n", model.RunStep{Argv: stage.Install}.String())
	}

	for _, step := range stage.Run {
		fmt.Fprintf(b, "RUN %s\n", step.String())
	}

	if stage.Expose != 0 {
		fmt.Fprintf(b, "EXPOSE %d\n", stage.Expose)
	}

	if len(stage.Command) > 0 {
		fmt.Fprintf(b, "CMD %s\n", jsonArgv(stage.Command))
	}
}

// writeEnv emits ENV lines in sorted key order for deterministic output.
func writeEnv(b *strings.Builder, env map[string]string) {
	if len(env) == 0 {
		return
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "ENV %s=%q\n", k, env[k])
	}
}

// stageWorkdir returns the stage's workdir, defaulting to /app.
func stageWorkdir(stage *model.Stage) string {
	if stage.Workdir != "" {
		return stage.Workdir
	}
	return defaultWorkdir
}

// jsonArgv renders an argv as a Dockerfile exec-form array:
// ["cmd", "arg1", "arg2"]. Exec form avoids an intermediate shell,
// so signals reach the server process directly.
func jsonArgv(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = fmt.Sprintf("%q", a)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
