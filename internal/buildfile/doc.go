// Package buildfile handles parsing, normalization, and validation of
// stagehand.json build descriptors for the stagehand CLI.
//
// A descriptor declares the two stages of the build recipe:
//
//   - build: runs the frontend toolchain and produces a static asset bundle
//   - runtime: assembles the final filesystem from copy steps and declares
//     the serving port and startup command
//
// The descriptor is the single source of truth: the pipeline executes it,
// the render package turns it into Dockerfiles and Compose files, and the
// serve command reads its exposed port.
//
// JSONC (JSON with Comments) is supported via github.com/tidwall/jsonc,
// so descriptors may carry comments and trailing commas.
package buildfile
