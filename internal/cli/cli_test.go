// Package cli — cli_test.go contains unit tests for the helper logic
// used by the CLI commands: descriptor loading, the init scaffold, and
// pure formatting functions. These tests do not require a Docker daemon.
package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-cli/stagehand/internal/buildfile"
	"github.com/stagehand-cli/stagehand/internal/model"
)

// TestInitScaffoldValidates verifies that the descriptor written by
// "stagehand init" parses and passes validation as-is.
func TestInitScaffoldValidates(t *testing.T) {
	dir := t.TempDir()

	err := runInit(&initFlags{dir: dir}, "my-app")
	require.NoError(t, err)

	path := filepath.Join(dir, buildfile.DescriptorName)
	raw, err := buildfile.LoadConfig(path)
	require.NoError(t, err)

	errs := buildfile.ValidateBuildfile(raw)
	assert.Empty(t, errs, "scaffolded descriptor should be valid")

	plan, err := buildfile.ToPlan(raw, dir)
	require.NoError(t, err)
	assert.Equal(t, "my-app", plan.Project)
	assert.Equal(t, 8000, plan.Runtime.Expose)

	// The scaffold carries the install/manifests split so the rendered
	// Dockerfile gets a cached dependency layer, and the runtime command
	// serves with automatic reload.
	assert.Equal(t, []string{"npm", "ci"}, plan.Build.Install)
	assert.Equal(t, []string{"package*.json"}, plan.Build.Manifests)
	assert.NotEmpty(t, plan.Runtime.Install)
	assert.Contains(t, plan.Runtime.Command, "--reload")
}

// TestServeReloadDefault verifies bundle watching is on unless disabled.
func TestServeReloadDefault(t *testing.T) {
	cmd := NewServeCommand()
	flag := cmd.Flags().Lookup("reload")
	require.NotNil(t, flag)
	assert.Equal(t, "true", flag.DefValue)
}

// TestInitRefusesOverwrite verifies init does not clobber an existing
// descriptor unless --force is given.
func TestInitRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, buildfile.DescriptorName)
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	err := runInit(&initFlags{dir: dir}, "my-app")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	// --force overwrites.
	err = runInit(&initFlags{dir: dir, force: true}, "my-app")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"project": "my-app"`)
}

// TestInitRejectsInvalidProjectName covers the name guard.
func TestInitRejectsInvalidProjectName(t *testing.T) {
	err := runInit(&initFlags{dir: t.TempDir()}, "My App!")
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitGeneralError, cliErr.Code)
}

// TestLoadPlan_CollectsValidationErrors verifies loadPlan reports every
// validation finding in one error.
func TestLoadPlan_CollectsValidationErrors(t *testing.T) {
	dir := t.TempDir()
	descriptor := `{
		"project": "my-app",
		"build": {
			"baseImage": "node:22-alpine",
			"run": [["npm", "run", "build"]]
			// no output directory
		},
		"runtime": {
			"baseImage": "python:3.12-slim"
			// no expose, no command
		}
	}`
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, buildfile.DescriptorName), []byte(descriptor), 0o644))

	_, err := loadPlan(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build.output")
	assert.Contains(t, err.Error(), "runtime.expose")
	assert.Contains(t, err.Error(), "runtime.command")
}

// TestLoadPlan_MissingDescriptor verifies the descriptor-not-found exit
// code is preserved.
func TestLoadPlan_MissingDescriptor(t *testing.T) {
	_, err := loadPlan(t.TempDir())
	require.Error(t, err)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitDescriptorNotFound, cliErr.Code)
}

func TestShortID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "long id truncated", in: "0123456789abcdef0123456789abcdef", want: "0123456789ab"},
		{name: "short id unchanged", in: "abc", want: "abc"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shortID(tt.in))
		})
	}
}

func TestShortDigest(t *testing.T) {
	assert.Equal(t, "aabbccddeeff",
		shortDigest("aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899"))
	assert.Equal(t, "abc", shortDigest("abc"))
}
