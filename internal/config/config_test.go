package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResolveDir verifies the configuration directory is created under
// the user config root.
func TestResolveDir(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	dir, err := resolveDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "stagehand"), dir)
	assert.DirExists(t, dir)
}

// TestResolveDir_NoUserConfigDir verifies resolution fails cleanly when
// no user config root can be determined, returning an empty path with a
// non-nil error rather than the other way around.
func TestResolveDir_NoUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")
	t.Setenv("AppData", "")

	dir, err := resolveDir()
	require.Error(t, err)
	assert.Empty(t, dir)
}

// TestDir_Stable verifies repeat calls return the same cached result.
func TestDir_Stable(t *testing.T) {
	first, firstErr := Dir()
	second, secondErr := Dir()
	assert.Equal(t, first, second)
	assert.Equal(t, firstErr, secondErr)
	if firstErr == nil {
		assert.NotEmpty(t, first)
	}
}
