// Package model defines the domain types and value objects for the
// stagehand CLI.
//
// This package contains pure data structures with no external dependencies.
// The central aggregate is the BuildPlan — the in-memory form of a
// stagehand.json descriptor — together with the Stage, CopyStep, and
// PortSpec value objects it is composed of. BuildRecord and BundleManifest
// describe the outputs of a pipeline run.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
