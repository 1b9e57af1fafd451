package model

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStageKind_String verifies that StageKind values produce the expected
// string representations for CLI output and JSON serialization.
func TestStageKind_String(t *testing.T) {
	assert.Equal(t, "build", StageBuild.String())
	assert.Equal(t, "runtime", StageRuntime.String())
}

// TestStageKind_IsValid checks that only defined kinds pass validation.
func TestStageKind_IsValid(t *testing.T) {
	assert.True(t, StageBuild.IsValid())
	assert.True(t, StageRuntime.IsValid())
	assert.False(t, StageKind("invalid").IsValid())
	assert.False(t, StageKind("").IsValid())
}

// TestParseStageKind verifies string-to-kind conversion,
// including case normalization and error cases.
func TestParseStageKind(t *testing.T) {
	tests := []struct {
		input    string
		expected StageKind
		hasError bool
	}{
		{"build", StageBuild, false},
		{"runtime", StageRuntime, false},
		{"Build", StageBuild, false},     // case insensitive
		{"RUNTIME", StageRuntime, false}, // case insensitive
		{"deploy", "", true},             // unknown value
		{"", "", true},                   // empty string
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseStageKind(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

// TestParseBuildStatus verifies string-to-status conversion.
func TestParseBuildStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected BuildStatus
		hasError bool
	}{
		{"succeeded", StatusSucceeded, false},
		{"failed", StatusFailed, false},
		{"running", StatusRunning, false},
		{"Succeeded", StatusSucceeded, false}, // case insensitive
		{"invalid", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseBuildStatus(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

// TestValidateName covers the project naming rules that keep names usable
// as Docker repository names.
func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "myapp", false},
		{"with hyphens", "my-app-v2", false},
		{"single char", "a", false},
		{"digits", "app2", false},
		{"empty", "", true},
		{"uppercase", "MyApp", true},
		{"leading hyphen", "-app", true},
		{"trailing hyphen", "app-", true},
		{"underscore", "my_app", true},
		{"slash", "my/app", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestCopyStep_String verifies display formatting with and without a
// source stage.
func TestCopyStep_String(t *testing.T) {
	plain := CopyStep{From: "api", To: "api"}
	assert.Equal(t, "api → api", plain.String())

	staged := CopyStep{FromStage: "build", From: "_build", To: "_build"}
	assert.Equal(t, "build:_build → _build", staged.String())
}

// TestPortSpec_Validate verifies port ranges, the host-port default,
// and protocol normalization.
func TestPortSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    PortSpec
		wantErr bool
	}{
		{"valid tcp", PortSpec{ContainerPort: 8000, HostPort: 8000, Protocol: "tcp"}, false},
		{"valid udp", PortSpec{ContainerPort: 53, HostPort: 5353, Protocol: "udp"}, false},
		{"zero host port allowed", PortSpec{ContainerPort: 8000}, false},
		{"empty protocol defaults", PortSpec{ContainerPort: 3000, HostPort: 3000}, false},
		{"container port zero", PortSpec{ContainerPort: 0, HostPort: 8000}, true},
		{"container port too high", PortSpec{ContainerPort: 70000}, true},
		{"host port too high", PortSpec{ContainerPort: 8000, HostPort: 70000}, true},
		{"bad protocol", PortSpec{ContainerPort: 8000, Protocol: "sctp"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestPortSpec_Validate_DefaultsProtocol checks that validation fills in
// the tcp default in place.
func TestPortSpec_Validate_DefaultsProtocol(t *testing.T) {
	spec := PortSpec{ContainerPort: 8000}
	require.NoError(t, spec.Validate())
	assert.Equal(t, "tcp", spec.Protocol)
}

// TestPortSpec_String verifies the display format, including the implicit
// host port when HostPort is zero.
func TestPortSpec_String(t *testing.T) {
	explicit := PortSpec{ContainerPort: 8000, HostPort: 18000, Protocol: "tcp"}
	assert.Equal(t, "18000 → 8000/tcp", explicit.String())

	implicit := PortSpec{ContainerPort: 8000}
	assert.Equal(t, "8000 → 8000/tcp", implicit.String())
}

// TestBuildPlan_BundlePath verifies bundle path resolution against the
// project root, including collapsed "." segments.
func TestBuildPlan_BundlePath(t *testing.T) {
	plan := &BuildPlan{
		Root:  "/proj",
		Build: Stage{Kind: StageBuild, Dir: "ui", OutputDir: "_build"},
	}
	assert.Equal(t, filepath.Join("/proj", "ui", "_build"), plan.BundlePath())

	rootStage := &BuildPlan{
		Root:  "/proj",
		Build: Stage{Kind: StageBuild, Dir: ".", OutputDir: "_build"},
	}
	assert.Equal(t, filepath.Join("/proj", "_build"), rootStage.BundlePath())
}

// TestBundleManifest_ShortDigest verifies truncation behavior.
func TestBundleManifest_ShortDigest(t *testing.T) {
	m := &BundleManifest{Digest: "abcdef0123456789abcdef"}
	assert.Equal(t, "abcdef012345", m.ShortDigest())

	short := &BundleManifest{Digest: "abc"}
	assert.Equal(t, "abc", short.ShortDigest())
}

// TestCLIError verifies message formatting, unwrapping, and the
// constructor helpers.
func TestCLIError(t *testing.T) {
	base := errors.New("connection refused")

	wrapped := WrapCLIError(ExitDockerNotRunning, "Docker daemon unreachable", base)
	assert.Equal(t, ExitDockerNotRunning, wrapped.Code)
	assert.Equal(t, "Docker daemon unreachable: connection refused", wrapped.Error())
	assert.True(t, errors.Is(wrapped, base))

	plain := NewCLIError(ExitBundleInvalid, "bundle has no index.html")
	assert.Equal(t, "bundle has no index.html", plain.Error())
	assert.Nil(t, plain.Unwrap())
}
