package buildfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-cli/stagehand/internal/model"
)

// writeDescriptor writes content to <dir>/stagehand.json and returns the path.
func writeDescriptor(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DescriptorName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// sampleDescriptor is a complete two-stage descriptor matching the shape
// of a frontend-build + backend-serve project. JSONC comments and a
// trailing comma are included deliberately.
const sampleDescriptor = `{
	// frontend bundle + api server
	"project": "my-app",
	"build": {
		"baseImage": "node:20-alpine",
		"dir": "ui",
		"workdir": "/app",
		"install": ["npm", "ci"],
		"run": [["npm", "run", "build"]],
		"output": "_build",
	},
	"runtime": {
		"baseImage": "python:3.12-slim",
		"workdir": "/app",
		"copy": [
			{"fromStage": "build", "from": "_build", "to": "_build"},
			"requirements.txt:requirements.txt",
			"api:api"
		],
		"install": ["pip", "install", "-r", "requirements.txt"],
		"expose": 8000,
		"command": ["uvicorn", "api.index:app", "--host", "0.0.0.0", "--port", "8000", "--reload"]
	}
}`

// TestFindDescriptor verifies the search order: project root first,
// then the .stagehand subdirectory.
func TestFindDescriptor(t *testing.T) {
	t.Run("at project root", func(t *testing.T) {
		dir := t.TempDir()
		path := writeDescriptor(t, dir, sampleDescriptor)

		found, err := FindDescriptor(dir)
		require.NoError(t, err)
		assert.Equal(t, path, found)
	})

	t.Run("in .stagehand dir", func(t *testing.T) {
		dir := t.TempDir()
		sub := filepath.Join(dir, ".stagehand")
		require.NoError(t, os.Mkdir(sub, 0o755))
		path := writeDescriptor(t, sub, sampleDescriptor)

		found, err := FindDescriptor(dir)
		require.NoError(t, err)
		assert.Equal(t, path, found)
	})

	t.Run("root wins over .stagehand", func(t *testing.T) {
		dir := t.TempDir()
		sub := filepath.Join(dir, ".stagehand")
		require.NoError(t, os.Mkdir(sub, 0o755))
		writeDescriptor(t, sub, sampleDescriptor)
		rootPath := writeDescriptor(t, dir, sampleDescriptor)

		found, err := FindDescriptor(dir)
		require.NoError(t, err)
		assert.Equal(t, rootPath, found)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := FindDescriptor(t.TempDir())
		require.Error(t, err)

		var cliErr *model.CLIError
		require.True(t, errors.As(err, &cliErr))
		assert.Equal(t, model.ExitDescriptorNotFound, cliErr.Code)
	})

	t.Run("directory named stagehand.json is skipped", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, DescriptorName), 0o755))

		_, err := FindDescriptor(dir)
		assert.Error(t, err)
	})
}

// TestLoadConfig verifies JSONC parsing including comments and
// trailing commas, plus error classification.
func TestLoadConfig(t *testing.T) {
	t.Run("full descriptor", func(t *testing.T) {
		path := writeDescriptor(t, t.TempDir(), sampleDescriptor)

		raw, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, "my-app", raw.Project)
		require.NotNil(t, raw.Build)
		assert.Equal(t, "node:20-alpine", raw.Build.BaseImage)
		assert.Equal(t, "ui", raw.Build.Dir)
		assert.Equal(t, []string{"npm", "ci"}, raw.Build.Install)
		assert.Equal(t, "_build", raw.Build.Output)
		require.NotNil(t, raw.Runtime)
		assert.Equal(t, 8000, raw.Runtime.Expose)
		assert.Len(t, raw.Runtime.Copy, 3)
		assert.Equal(t, "uvicorn", raw.Runtime.Command[0])
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)

		var cliErr *model.CLIError
		require.True(t, errors.As(err, &cliErr))
		assert.Equal(t, model.ExitDescriptorNotFound, cliErr.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := writeDescriptor(t, t.TempDir(), `{"project": `)

		_, err := LoadConfig(path)
		require.Error(t, err)

		var cliErr *model.CLIError
		require.True(t, errors.As(err, &cliErr))
		assert.Equal(t, model.ExitGeneralError, cliErr.Code)
	})
}

// TestToPlan verifies normalization: dir defaults, install/run separation,
// and copy shorthand expansion.
func TestToPlan(t *testing.T) {
	path := writeDescriptor(t, t.TempDir(), sampleDescriptor)
	raw, err := LoadConfig(path)
	require.NoError(t, err)

	plan, err := ToPlan(raw, "/proj")
	require.NoError(t, err)

	assert.Equal(t, "my-app", plan.Project)
	assert.Equal(t, "/proj", plan.Root)

	// Build stage: install stays a separate field so the renderer can give
	// it its own layer; Steps() puts it first for executors.
	assert.Equal(t, model.StageBuild, plan.Build.Kind)
	assert.Equal(t, []string{"npm", "ci"}, plan.Build.Install)
	require.Len(t, plan.Build.Run, 1)
	assert.Equal(t, []string{"npm", "run", "build"}, plan.Build.Run[0].Argv)

	steps := plan.Build.Steps()
	require.Len(t, steps, 2)
	assert.Equal(t, []string{"npm", "ci"}, steps[0].Argv)
	assert.Equal(t, []string{"npm", "run", "build"}, steps[1].Argv)

	// Runtime stage: dir defaults to ".", copy shorthand forms expanded.
	assert.Equal(t, ".", plan.Runtime.Dir)
	require.Len(t, plan.Runtime.Copy, 3)
	assert.Equal(t, model.CopyStep{FromStage: "build", From: "_build", To: "_build"}, plan.Runtime.Copy[0])
	assert.Equal(t, model.CopyStep{From: "requirements.txt", To: "requirements.txt"}, plan.Runtime.Copy[1])
	assert.Equal(t, model.CopyStep{From: "api", To: "api"}, plan.Runtime.Copy[2])

	assert.Equal(t, filepath.Join("/proj", "ui", "_build"), plan.BundlePath())
}

// TestToPlan_MissingStages verifies both stages are required.
func TestToPlan_MissingStages(t *testing.T) {
	_, err := ToPlan(&RawBuildfile{Project: "x", Build: &RawStage{}}, "/proj")
	assert.Error(t, err)

	_, err = ToPlan(&RawBuildfile{Project: "x", Runtime: &RawStage{}}, "/proj")
	assert.Error(t, err)
}

// TestParseCopySteps covers the polymorphic copy element shapes.
func TestParseCopySteps(t *testing.T) {
	tests := []struct {
		name     string
		entries  []interface{}
		expected []model.CopyStep
		hasError bool
	}{
		{
			name:     "two-part shorthand",
			entries:  []interface{}{"api:api"},
			expected: []model.CopyStep{{From: "api", To: "api"}},
		},
		{
			name:     "three-part shorthand",
			entries:  []interface{}{"build:_build:_build"},
			expected: []model.CopyStep{{FromStage: "build", From: "_build", To: "_build"}},
		},
		{
			name: "object form",
			entries: []interface{}{
				map[string]interface{}{"fromStage": "build", "from": "dist", "to": "static"},
			},
			expected: []model.CopyStep{{FromStage: "build", From: "dist", To: "static"}},
		},
		{
			name:     "empty list",
			entries:  nil,
			expected: []model.CopyStep{},
		},
		{
			name:     "too many parts",
			entries:  []interface{}{"a:b:c:d"},
			hasError: true,
		},
		{
			name:     "empty segment",
			entries:  []interface{}{":to"},
			hasError: true,
		},
		{
			name:     "object missing to",
			entries:  []interface{}{map[string]interface{}{"from": "x"}},
			hasError: true,
		},
		{
			name:     "wrong type",
			entries:  []interface{}{42},
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, err := parseCopySteps(tt.entries)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, steps)
		})
	}
}
