// Package docker wraps the Docker Engine SDK client for building and
// running stagehand runtime images.
//
// The package abstracts Docker API interactions and provides
// stagehand-specific functionality: automatic Docker socket detection,
// label-based discovery of managed containers and images, and image
// builds driven by rendered Dockerfiles.
package docker
