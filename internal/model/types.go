// Package model defines the domain types for the stagehand CLI.
//
// All entities in this package represent the build descriptor and its
// derived artifacts. These types are used throughout the application for
// passing data between components.
//
// Key design decision: image-side state is persisted via Docker image
// labels, and build history is persisted in a local SQLite database.
// The types here are transient representations of both.
package model

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// StageKind identifies the role of a stage within a build plan.
// Every plan has exactly one stage of each kind, executed in order:
//
//	build → runtime
type StageKind string

const (
	// StageBuild is the toolchain stage that produces the static asset
	// bundle (e.g., by running a frontend bundler).
	StageBuild StageKind = "build"

	// StageRuntime is the final stage whose filesystem and entrypoint
	// make up the runnable image.
	StageRuntime StageKind = "runtime"
)

// String returns the string representation of StageKind.
func (k StageKind) String() string {
	return string(k)
}

// IsValid checks whether the StageKind value is one of the predefined kinds.
func (k StageKind) IsValid() bool {
	switch k {
	case StageBuild, StageRuntime:
		return true
	default:
		return false
	}
}

// ParseStageKind converts a string to a StageKind.
// Returns an error if the string does not match any valid kind.
func ParseStageKind(s string) (StageKind, error) {
	kind := StageKind(strings.ToLower(s))
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid stage kind: %q (valid: build, runtime)", s)
	}
	return kind, nil
}

// BuildStatus represents the outcome of a pipeline run as stored in the
// build history database.
type BuildStatus string

const (
	// StatusSucceeded indicates every stage completed without error.
	StatusSucceeded BuildStatus = "succeeded"

	// StatusFailed indicates a stage aborted the pipeline. The failing
	// step's error message is preserved on the BuildRecord.
	StatusFailed BuildStatus = "failed"

	// StatusRunning indicates the pipeline has started but not yet
	// finished. Records in this state after process exit indicate an
	// interrupted build.
	StatusRunning BuildStatus = "running"
)

// String returns the string representation of BuildStatus.
func (s BuildStatus) String() string {
	return string(s)
}

// IsValid checks whether the BuildStatus value is one of the
// predefined valid states.
func (s BuildStatus) IsValid() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusRunning:
		return true
	default:
		return false
	}
}

// ParseBuildStatus converts a string to a BuildStatus.
// Returns an error if the string does not match any valid status.
func ParseBuildStatus(s string) (BuildStatus, error) {
	status := BuildStatus(strings.ToLower(s))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid build status: %q (valid: succeeded, failed, running)", s)
	}
	return status, nil
}

// CopyStep describes a single filesystem copy from one stage (or the
// project source tree) into the runtime stage's filesystem.
//
// Paths are always relative: From is resolved against the source stage's
// output (or the project root when FromStage is empty), To against the
// runtime stage's working directory.
type CopyStep struct {
	// FromStage names the stage whose output the source path is resolved
	// against. Empty means the project source tree (a plain COPY).
	FromStage string `json:"fromStage,omitempty"`

	// From is the relative source path.
	From string `json:"from"`

	// To is the relative destination path inside the runtime filesystem.
	To string `json:"to"`
}

// String returns a human-readable representation of the copy step.
func (c CopyStep) String() string {
	if c.FromStage != "" {
		return fmt.Sprintf("%s:%s → %s", c.FromStage, c.From, c.To)
	}
	return fmt.Sprintf("%s → %s", c.From, c.To)
}

// RunStep is a single command executed inside a stage. Commands are opaque
// to stagehand — they are handed to the toolchain runner (or rendered as
// Dockerfile RUN lines) verbatim, and their failure aborts the pipeline.
type RunStep struct {
	// Argv is the command and its arguments. Must be non-empty.
	Argv []string `json:"argv"`

	// Dir is the working directory relative to the stage directory.
	// Empty means the stage directory itself.
	Dir string `json:"dir,omitempty"`
}

// String returns the command as a shell-style line for display.
func (r RunStep) String() string {
	return strings.Join(r.Argv, " ")
}

// Stage is one step of the two-stage build plan.
//
// A build stage produces an asset bundle in OutputDir; a runtime stage
// assembles the final filesystem from copy steps and declares the serving
// port and startup command.
type Stage struct {
	// Kind is the stage's role (build or runtime).
	Kind StageKind `json:"kind"`

	// BaseImage is the container base image rendered into FROM lines.
	// Unused when the pipeline runs natively on the host.
	BaseImage string `json:"baseImage,omitempty"`

	// Dir is the stage's source directory relative to the project root.
	Dir string `json:"dir"`

	// Workdir is the working directory inside the container image.
	Workdir string `json:"workdir,omitempty"`

	// Env holds environment variables applied to every run step.
	Env map[string]string `json:"env,omitempty"`

	// Install is the dependency installation command, executed before Run.
	// It is kept apart from Run so the Dockerfile renderer can place it in
	// its own layer, keyed on Manifests, ahead of the source copy.
	Install []string `json:"install,omitempty"`

	// Manifests lists the dependency manifest files (relative to Dir,
	// Docker COPY globs allowed) that the install layer depends on.
	Manifests []string `json:"manifests,omitempty"`

	// Run lists the commands executed in declaration order, after Install.
	Run []RunStep `json:"run,omitempty"`

	// Copy lists the filesystem copies into this stage.
	Copy []CopyStep `json:"copy,omitempty"`

	// OutputDir is the bundle directory a build stage produces,
	// relative to Dir. Empty for runtime stages.
	OutputDir string `json:"outputDir,omitempty"`

	// Expose is the port the runtime stage serves on. Zero for build stages.
	Expose int `json:"expose,omitempty"`

	// Command is the startup argv of the runtime stage.
	Command []string `json:"command,omitempty"`
}

// IsBuild reports whether this is the bundle-producing stage.
func (s *Stage) IsBuild() bool {
	return s.Kind == StageBuild
}

// Steps returns the stage's commands in execution order: the install
// command first, then the run steps.
func (s *Stage) Steps() []RunStep {
	var steps []RunStep
	if len(s.Install) > 0 {
		steps = append(steps, RunStep{Argv: s.Install})
	}
	return append(steps, s.Run...)
}

// BuildPlan is the in-memory form of a stagehand.json descriptor — the
// primary aggregate entity in the domain. It is produced by the buildfile
// package and consumed by the pipeline, renderer, and docker packages.
type BuildPlan struct {
	// Project is the unique project name. Must contain only lowercase
	// alphanumeric characters and hyphens; it doubles as the image
	// repository name.
	Project string `json:"project"`

	// Root is the absolute path to the project root (the directory
	// containing the descriptor).
	Root string `json:"root"`

	// Build is the bundle-producing stage.
	Build Stage `json:"build"`

	// Runtime is the final serving stage.
	Runtime Stage `json:"runtime"`
}

// BundlePath returns the absolute path of the build stage's output
// directory, resolved against the project root.
func (p *BuildPlan) BundlePath() string {
	return filepath.Join(p.Root, p.Build.Dir, p.Build.OutputDir)
}

// nameRegex validates project names: lowercase alphanumeric + hyphens only,
// must start and end with alphanumeric. The lowercase restriction exists
// because the project name becomes a Docker repository name.
var nameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$|^[a-z0-9]$`)

// ValidateName checks if the given name is a valid project name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("project name must not be empty")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid project name %q: must contain only lowercase alphanumeric characters and hyphens, and start/end with alphanumeric", name)
	}
	return nil
}

// PortSpec represents a declared port mapping for the runtime stage.
type PortSpec struct {
	// ContainerPort is the port number inside the container (1-65535).
	ContainerPort int `json:"containerPort"`

	// HostPort is the port published on the host machine. Zero means
	// "same as ContainerPort".
	HostPort int `json:"hostPort,omitempty"`

	// Protocol is the network protocol for the mapping.
	// Defaults to "tcp". Also supports "udp".
	Protocol string `json:"protocol,omitempty"`
}

// Validate checks whether the PortSpec has valid field values.
func (p *PortSpec) Validate() error {
	if p.ContainerPort < 1 || p.ContainerPort > 65535 {
		return fmt.Errorf("port spec: container port %d out of range (1-65535)", p.ContainerPort)
	}
	if p.HostPort != 0 && (p.HostPort < 1 || p.HostPort > 65535) {
		return fmt.Errorf("port spec: host port %d out of range (1-65535)", p.HostPort)
	}
	if p.Protocol == "" {
		p.Protocol = "tcp"
	}
	if p.Protocol != "tcp" && p.Protocol != "udp" {
		return fmt.Errorf("port spec: invalid protocol %q (valid: tcp, udp)", p.Protocol)
	}
	return nil
}

// String returns a human-readable representation of the port spec.
// Format: "hostPort → containerPort/protocol".
func (p *PortSpec) String() string {
	proto := p.Protocol
	if proto == "" {
		proto = "tcp"
	}
	host := p.HostPort
	if host == 0 {
		host = p.ContainerPort
	}
	return fmt.Sprintf("%d → %d/%s", host, p.ContainerPort, proto)
}

// BundleFile describes a single file inside a built asset bundle.
type BundleFile struct {
	// Path is the file path relative to the bundle root, using forward
	// slashes regardless of platform.
	Path string `json:"path"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// SHA256 is the lowercase hex digest of the file contents.
	SHA256 string `json:"sha256"`
}

// BundleManifest is the inventory of a built asset bundle: every file with
// its size and digest, plus an aggregate digest that identifies the bundle
// as a whole. The aggregate digest is used for image tags, history records,
// and publish key prefixes.
type BundleManifest struct {
	// Entrypoint is the bundle-relative path of the HTML entry document.
	// Always "index.html" for bundles stagehand accepts.
	Entrypoint string `json:"entrypoint"`

	// Files lists every regular file in the bundle, sorted by path.
	Files []BundleFile `json:"files"`

	// TotalBytes is the sum of all file sizes.
	TotalBytes int64 `json:"totalBytes"`

	// Digest is the aggregate SHA-256 over the sorted per-file digests,
	// lowercase hex. Two bundles with identical contents share a digest.
	Digest string `json:"digest"`
}

// ShortDigest returns the first 12 hex characters of the bundle digest,
// the form used in image tags and CLI output. Returns the full digest if
// it is shorter than 12 characters (only possible with malformed input).
func (m *BundleManifest) ShortDigest() string {
	if len(m.Digest) < 12 {
		return m.Digest
	}
	return m.Digest[:12]
}

// BuildRecord is one row of the build history database: a single pipeline
// run with its outcome.
type BuildRecord struct {
	// ID is the opaque unique record identifier.
	ID string `json:"id"`

	// Project is the descriptor's project name at build time.
	Project string `json:"project"`

	// Digest is the bundle digest the run produced. Empty for failed runs
	// that aborted before the bundle was scanned.
	Digest string `json:"digest,omitempty"`

	// ImageTag is the Docker image tag when --image was used, empty otherwise.
	ImageTag string `json:"imageTag,omitempty"`

	// Status is the run outcome.
	Status BuildStatus `json:"status"`

	// Error holds the failing step's message for failed runs.
	Error string `json:"error,omitempty"`

	// StartedAt and Duration describe the run's timing.
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

// ContainerInfo describes one Docker container managed by stagehand.
// It is a projection of the Docker API container struct carrying only
// the fields the CLI displays, which decouples the rest of the
// application from the Docker SDK types.
type ContainerInfo struct {
	// ContainerID is the full Docker container ID.
	ContainerID string `json:"containerId"`

	// ContainerName is the container name without the leading "/" the
	// Docker API prepends.
	ContainerName string `json:"containerName"`

	// Image is the image reference the container was created from.
	Image string `json:"image"`

	// Status is the short Docker state string ("running", "exited", "created").
	Status string `json:"status"`

	// Labels holds all Docker labels on the container, including the
	// stagehand management labels.
	Labels map[string]string `json:"labels,omitempty"`
}

// ImageInfo describes one Docker image built by stagehand.
type ImageInfo struct {
	// ImageID is the full Docker image ID.
	ImageID string `json:"imageId"`

	// Tags lists the repo:tag references pointing at this image.
	Tags []string `json:"tags"`

	// Labels holds the image's Docker labels.
	Labels map[string]string `json:"labels,omitempty"`

	// CreatedAt is when the image was built.
	CreatedAt time.Time `json:"createdAt"`
}

// ExitCode defines standard CLI exit codes. These codes allow scripts and
// CI systems to programmatically determine the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitDescriptorNotFound indicates stagehand.json was not found
	// in the expected locations.
	ExitDescriptorNotFound ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 3

	// ExitToolchainFailed indicates an external build tool exited non-zero.
	ExitToolchainFailed ExitCode = 4

	// ExitBundleInvalid indicates the build stage's output directory is
	// missing, empty, or lacks an index.html entrypoint.
	ExitBundleInvalid ExitCode = 5

	// ExitPublishFailed indicates an object storage upload failed.
	ExitPublishFailed ExitCode = 6

	// ExitRecordNotFound indicates the referenced build record
	// does not exist in the history database.
	ExitRecordNotFound ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
// This follows Go's error wrapping convention introduced in Go 1.13.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
